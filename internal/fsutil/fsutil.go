// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package fsutil provides the atomic filesystem primitives every
// generator shares: tmp+rename file writes and no-gap symlink
// replacement. Readers of a destination path always observe either the
// old content or the new content, never a partial write.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via a tmp file in the same
// directory followed by rename, so readers never observe a partial
// write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// ReplaceSymlink (re)creates a symlink at linkPath pointing to target,
// using create-then-rename so there is never a window with no link
// present.
func ReplaceSymlink(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if existing, err := os.Readlink(linkPath); err == nil {
		if existing == target {
			return nil
		}
	}

	tmpName := filepath.Join(dir, fmt.Sprintf(".tmp-symlink-%d", os.Getpid()))
	os.Remove(tmpName)
	if err := os.Symlink(target, tmpName); err != nil {
		return fmt.Errorf("creating temp symlink: %w", err)
	}
	if err := os.Rename(tmpName, linkPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming symlink into place: %w", err)
	}
	return nil
}
