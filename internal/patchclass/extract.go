// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package patchclass

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openchami/linbo-dc/internal/pathsafe"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// MaxZipEntries and MaxZipUncompressed bound driver-set uploads against
// zip-bomb and resource-exhaustion attacks.
const (
	MaxZipEntries      = 1000
	MaxZipUncompressed = 500 * 1024 * 1024 // 500MiB
)

var (
	// ErrTooManyEntries is returned when a zip archive exceeds MaxZipEntries.
	ErrTooManyEntries = errors.New("zip archive has too many entries")
	// ErrTooLarge is returned when a zip archive's uncompressed size exceeds MaxZipUncompressed.
	ErrTooLarge = errors.New("zip archive exceeds the uncompressed size limit")
	// ErrUnsafePath is returned when an entry name fails path sanitization.
	ErrUnsafePath = errors.New("zip entry has an unsafe path")
)

// ExtractDriverSetZip extracts a driver set archive into
// <baseDir>/<setName>/, rejecting archives that are too large, have too
// many entries, or contain path-traversal entries. It returns
// the list of relative file paths written.
func ExtractDriverSetZip(r *zip.Reader, baseDir, setName string) ([]string, error) {
	if !pathsafe.SanitizeName(setName) {
		return nil, fmt.Errorf("%w: invalid driver set name %q", ErrUnsafePath, setName)
	}
	if len(r.File) > MaxZipEntries {
		return nil, fmt.Errorf("%w: %d entries (max %d)", ErrTooManyEntries, len(r.File), MaxZipEntries)
	}
	// Check the whole index before anything is written.
	var declared uint64
	for _, f := range r.File {
		if _, ok := pathsafe.SanitizeRelativePath(f.Name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
		declared += f.UncompressedSize64
		if declared > MaxZipUncompressed {
			return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, MaxZipUncompressed)
		}
	}

	destRoot := filepath.Join(baseDir, setName)
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating driver set directory: %w", err)
	}

	var totalUncompressed uint64
	var written []string

	for _, f := range r.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > MaxZipUncompressed {
			return written, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, MaxZipUncompressed)
		}

		rel, ok := pathsafe.SanitizeRelativePath(f.Name)
		if !ok {
			return written, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(destRoot, rel)
		if !pathsafe.WithinRoot(destRoot, rel) {
			return written, fmt.Errorf("%w: %q escapes driver set root", ErrUnsafePath, f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", rel, err)
		}

		data, err := readZipEntry(f, MaxZipUncompressed-totalUncompressed+f.UncompressedSize64)
		if err != nil {
			return written, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if err := fsutil.WriteFileAtomic(destPath, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", destPath, err)
		}
		written = append(written, rel)
	}

	return written, nil
}

// readZipEntry reads a single zip entry's content, refusing to read past
// limit bytes even if the archive's declared size lied.
func readZipEntry(f *zip.File, limit uint64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limited := io.LimitReader(rc, int64(limit)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
