// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package patchclass

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openchami/linbo-dc/internal/fsutil"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/pathsafe"
)

// MapVersion is the current driver-map.json schema version.
const MapVersion = 1

// ErrNotFound is returned when a named patchclass does not exist on disk.
var ErrNotFound = errors.New("patchclass not found")

// ErrExists is returned when creating a patchclass that already exists.
var ErrExists = errors.New("patchclass already exists")

func mapPath(baseDir, name string) string {
	return filepath.Join(baseDir, name, "driver-map.json")
}

// LoadDriverMap reads <baseDir>/<name>/driver-map.json. A file missing
// deviceRules/ignoredCategories is read as if both were empty, so maps
// written before those fields existed keep working. A missing file yields an empty version-1 map.
func LoadDriverMap(baseDir, name string) (model.DriverMap, error) {
	if !pathsafe.SanitizeName(name) {
		return model.DriverMap{}, fmt.Errorf("invalid patchclass name %q", name)
	}
	raw, err := os.ReadFile(mapPath(baseDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return model.DriverMap{Version: MapVersion}, nil
		}
		return model.DriverMap{}, fmt.Errorf("reading driver map: %w", err)
	}
	var m model.DriverMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.DriverMap{}, fmt.Errorf("parsing driver map: %w", err)
	}
	if m.Version == 0 {
		m.Version = MapVersion
	}
	return m, nil
}

// SaveDriverMap writes the map atomically and regenerates
// driver-rules.sh in the same pass, since the script must track every
// map change deterministically. It
// returns the map-content hash written into the rule script's header.
func SaveDriverMap(baseDir, name string, m model.DriverMap) (string, error) {
	if !pathsafe.SanitizeName(name) {
		return "", fmt.Errorf("invalid patchclass name %q", name)
	}
	if m.Version == 0 {
		m.Version = MapVersion
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding driver map: %w", err)
	}
	if err := fsutil.WriteFileAtomic(mapPath(baseDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing driver map: %w", err)
	}
	return RegenerateRules(baseDir, model.Patchclass{Name: name, Map: m})
}

// Create makes an empty patchclass directory with a version-1 map and an
// initial rule script.
func Create(baseDir, name string) error {
	if !pathsafe.SanitizeName(name) {
		return fmt.Errorf("invalid patchclass name %q", name)
	}
	dir := filepath.Join(baseDir, name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating patchclass directory: %w", err)
	}
	_, err := SaveDriverMap(baseDir, name, model.DriverMap{Version: MapVersion})
	return err
}

// Delete removes a patchclass with all of its contents (driver sets, map,
// rule script).
func Delete(baseDir, name string) error {
	if !pathsafe.SanitizeName(name) {
		return fmt.Errorf("invalid patchclass name %q", name)
	}
	dir := filepath.Join(baseDir, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return os.RemoveAll(dir)
}

// List returns the names of every patchclass under baseDir.
func List(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", baseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && pathsafe.SanitizeName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
