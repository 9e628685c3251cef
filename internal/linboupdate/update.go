// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package linboupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/store"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// Status is one point in the update lifecycle: idle -> downloading -> verifying -> extracting -> merging ->
// rebuilding-linbofs -> done|failed.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusDownloading        Status = "downloading"
	StatusVerifying          Status = "verifying"
	StatusExtracting         Status = "extracting"
	StatusMerging            Status = "merging"
	StatusRebuildingLinboFS  Status = "rebuilding-linbofs"
	StatusDone               Status = "done"
	StatusFailed             Status = "failed"
)

// LockTTL bounds how long the update single-writer lock survives a crash.
const LockTTL = 30 * time.Minute

// StatusKey is the store hash holding the most recent update-run status
// record.
const StatusKey = "linbo:update:status"

// Updater drives one LINBO self-update pass.
type Updater struct {
	store    *store.Store
	bus      *eventbus.Bus
	client   *http.Client
	linboDir string
	runID    string
	version  string
}

// New constructs an Updater.
func New(st *store.Store, bus *eventbus.Bus, linboDir string) *Updater {
	return &Updater{store: st, bus: bus, client: &http.Client{Timeout: 5 * time.Minute}, linboDir: linboDir}
}

// SetVersion records the target version stamped into subsequent status
// records.
func (u *Updater) SetVersion(v string) { u.version = v }

// publish records the transition as a hash record in the store and
// broadcasts linbo.update.status.
func (u *Updater) publish(status Status, detail string) {
	record := map[string]any{
		"status":    string(status),
		"message":   detail,
		"version":   u.version,
		"runId":     u.runID,
		"updatedAt": time.Now().Format(time.RFC3339),
	}
	_ = u.store.HSet(context.Background(), StatusKey, record)
	u.bus.Publish(eventbus.TopicLinboUpdateStatus, record)
}

// Manifest is the kernel-variant manifest written alongside extracted
// kernels.
type Manifest struct {
	Version  string                   `json:"version"`
	Variants map[string]VariantEntry  `json:"variants"`
}

// VariantEntry describes one extracted kernel variant.
type VariantEntry struct {
	Linbo64          HashedFile `json:"linbo64"`
	Version          string     `json:"version"`
	ModulesTarSHA256 string     `json:"modulesTarSha256"`
}

// HashedFile pairs a file's checksum with its manifest entry.
type HashedFile struct {
	SHA256 string `json:"sha256"`
}

// Download fetches the package at url into memory, reporting progress
// via the status stream, and returns the bytes alongside their sha256.
func (u *Updater) Download(ctx context.Context, url string) ([]byte, string, error) {
	u.publish(StatusDownloading, url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building download request: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading package: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("downloading package: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading package body: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// Verify checks a downloaded package's sha256 against the expected value
// from the Packages index.
func (u *Updater) Verify(data []byte, expectedSHA256 string) error {
	u.publish(StatusVerifying, "")
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != expectedSHA256 {
		return fmt.Errorf("sha256 mismatch: expected %s, got %s", expectedSHA256, actual)
	}
	return nil
}

// ErrLinboFSDirectWrite guards a critical safety rule:
// linbofs64.xz from the package must never be written directly to
// <LINBO_DIR>/linbofs64.xz.
var ErrLinboFSDirectWrite = errors.New("refusing to write linbofs64.xz directly to the active LINBO_DIR path")

// linboFSDirectPath reproduces the exact forbidden destination so callers
// can check their own write targets against it.
func linboFSDirectPath(linboDir string) string {
	return filepath.Join(linboDir, "linbofs64.xz")
}

// WriteLinboFSReference writes the package's linbofs64.xz content only
// to the reference path kernels/linbofs64.xz.pkg, refusing any caller
// that names the forbidden direct path.
func (u *Updater) WriteLinboFSReference(destPath string, data []byte) error {
	if destPath == linboFSDirectPath(u.linboDir) {
		return ErrLinboFSDirectWrite
	}
	expected := filepath.Join(u.linboDir, "kernels", "linbofs64.xz.pkg")
	if destPath != expected {
		return fmt.Errorf("unexpected linbofs64 reference path: %s (want %s)", destPath, expected)
	}
	return fsutil.WriteFileAtomic(destPath, data, 0o644)
}

// WriteManifest writes the kernel-variant manifest for a provisioned
// update.
func (u *Updater) WriteManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(u.linboDir, "kernels", "manifest.json")
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// RunWithLock acquires the single-writer lock, runs fn, and always
// releases the lock and publishes a terminal status.
func (u *Updater) RunWithLock(ctx context.Context, fn func(context.Context) error) error {
	if err := u.store.AcquireFlag(ctx, store.LinboUpdateLockKey(), LockTTL); err != nil {
		return fmt.Errorf("acquiring update lock: %w", err)
	}
	u.runID = uuid.NewString()
	defer func() {
		_ = u.store.ReleaseFlag(context.Background(), store.LinboUpdateLockKey())
	}()

	u.publish(StatusIdle, "starting")
	if err := fn(ctx); err != nil {
		u.publish(StatusFailed, err.Error())
		return err
	}
	u.publish(StatusDone, "")
	return nil
}
