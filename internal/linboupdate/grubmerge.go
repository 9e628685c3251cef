// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package linboupdate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openchami/linbo-dc/internal/fsutil"
)

// protectedDirs are merged additively only: existing files under these
// directories are never overwritten, only new files are added.
var protectedDirs = map[string]bool{
	"x86_64-efi": true,
	"i386-pc":    true,
}

// MergeGrubModules copies every regular file from srcDir into destDir,
// recursively. Files under a protected top-level directory are skipped
// if they already exist at the destination; every other file is always
// overwritten.
func MergeGrubModules(srcDir, destDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}

		destPath := filepath.Join(destDir, rel)
		if isProtected(rel) {
			if _, statErr := os.Stat(destPath); statErr == nil {
				return nil // preserve existing file under a protected directory
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := fsutil.WriteFileAtomic(destPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", destPath, err)
		}
		return nil
	})
}

func isProtected(rel string) bool {
	top := rel
	if idx := indexOfSeparator(rel); idx >= 0 {
		top = rel[:idx]
	}
	return protectedDirs[top]
}

func indexOfSeparator(s string) int {
	for i, c := range s {
		if c == os.PathSeparator || c == '/' {
			return i
		}
	}
	return -1
}
