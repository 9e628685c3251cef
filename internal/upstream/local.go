// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openchami/linbo-dc/internal/model"
)

// LocalFile is the on-disk shape of the offline/local authority.
type LocalFile struct {
	Version     string              `yaml:"version"`
	Hosts       []model.Host        `yaml:"hosts"`
	Configs     []model.BootConfig  `yaml:"configs"`
	StartConfs  map[string]string   `yaml:"startConfs"`
	Cursor      string              `yaml:"cursor"`
}

// LocalAuthority is a YAML-file-backed Authority for offline development
// and tests: a mutex-guarded in-memory index with optional auto-reload
// on every read.
type LocalAuthority struct {
	path       string
	autoReload bool
	logger     *log.Logger

	mu   sync.RWMutex
	data LocalFile
}

// NewLocalAuthority loads path once and returns a LocalAuthority.
func NewLocalAuthority(path string, autoReload bool, logger *log.Logger) (*LocalAuthority, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "upstream-local: ", log.LstdFlags)
	}
	a := &LocalAuthority{path: path, autoReload: autoReload, logger: logger}
	if err := a.reload(); err != nil {
		return nil, fmt.Errorf("failed to load initial data from %s: %w", path, err)
	}
	a.logger.Printf("local authority initialized with %d hosts, %d configs from %s", len(a.data.Hosts), len(a.data.Configs), path)
	return a, nil
}

func (a *LocalAuthority) reload() error {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("reading YAML file: %w", err)
	}
	var file LocalFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	a.mu.Lock()
	a.data = file
	a.mu.Unlock()
	return nil
}

func (a *LocalAuthority) maybeReload() {
	if a.autoReload {
		if err := a.reload(); err != nil {
			a.logger.Printf("warning: failed to reload %s: %v", a.path, err)
		}
	}
}

// GetChanges returns the entire file as a single delta when cursor
// differs from the stored cursor, and an empty delta otherwise. This is
// sufficient for local development: the offline file has no real
// incremental history.
func (a *LocalAuthority) GetChanges(ctx context.Context, cursor string) (Delta, error) {
	a.maybeReload()
	a.mu.RLock()
	defer a.mu.RUnlock()

	if cursor == a.data.Cursor && cursor != "" {
		return Delta{NextCursor: cursor}, nil
	}

	delta := Delta{NextCursor: a.data.Cursor, DHCPChanged: true}
	for _, h := range a.data.Hosts {
		delta.HostsChanged = append(delta.HostsChanged, h.MACAddress)
	}
	for _, c := range a.data.Configs {
		delta.ConfigsChanged = append(delta.ConfigsChanged, c.Name)
	}
	for name := range a.data.StartConfs {
		delta.StartConfsChanged = append(delta.StartConfsChanged, name)
	}
	return delta, nil
}

// BatchGetHosts looks up hosts by MAC address.
func (a *LocalAuthority) BatchGetHosts(ctx context.Context, macs []string) ([]model.Host, error) {
	a.maybeReload()
	a.mu.RLock()
	defer a.mu.RUnlock()

	want := make(map[string]bool, len(macs))
	for _, m := range macs {
		want[strings.ToLower(m)] = true
	}
	var out []model.Host
	for _, h := range a.data.Hosts {
		if want[strings.ToLower(h.MACAddress)] {
			out = append(out, h)
		}
	}
	return out, nil
}

// BatchGetStartConfs looks up raw start.conf bodies by config name.
func (a *LocalAuthority) BatchGetStartConfs(ctx context.Context, names []string) (map[string]string, error) {
	a.maybeReload()
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]string, len(names))
	for _, n := range names {
		if body, ok := a.data.StartConfs[n]; ok {
			out[n] = body
		}
	}
	return out, nil
}

// BatchGetConfigs looks up BootConfigs by name.
func (a *LocalAuthority) BatchGetConfigs(ctx context.Context, names []string) ([]model.BootConfig, error) {
	a.maybeReload()
	a.mu.RLock()
	defer a.mu.RUnlock()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []model.BootConfig
	for _, c := range a.data.Configs {
		if want[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetDHCPExport returns status 200, an empty body, and a fresh ETag on
// every call: no DHCP export body is modeled in the YAML file.
func (a *LocalAuthority) GetDHCPExport(ctx context.Context) (DHCPExport, error) {
	return DHCPExport{Status: 200, Content: nil, ETag: fmt.Sprintf("local-%d", time.Now().UnixNano())}, nil
}

// CheckHealth verifies the backing file is still readable.
func (a *LocalAuthority) CheckHealth(ctx context.Context) error {
	if _, err := os.Stat(a.path); err != nil {
		return fmt.Errorf("local authority health check failed: %w", err)
	}
	return nil
}

var _ Authority = (*LocalAuthority)(nil)
var _ Authority = (*HTTPAuthority)(nil)
