// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package pathsafe holds the single set of name and path sanitizers
// shared by the patchclass, theme, and orchestrator subsystems.
// model.ValidateHostname applies the same hostname rule as
// SanitizeHostname (plus a 253-character limit) for the data model.
package pathsafe

import (
	"path/filepath"
	"regexp"
	"strings"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// SanitizeName validates a patchclass/driver-set name: first char
// alphanumeric, remainder in [A-Za-z0-9._-], length 1..100, no ".."
// segment.
func SanitizeName(s string) bool {
	if len(s) < 1 || len(s) > 100 {
		return false
	}
	if !nameRe.MatchString(s) {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	return true
}

// SanitizeHostname validates the hostname form accepted by the
// orchestrator's target resolution.
func SanitizeHostname(s string) bool {
	if s == "" {
		return false
	}
	if !isAlnum(rune(s[0])) {
		return false
	}
	for _, c := range s {
		if !isAlnum(c) && c != '.' && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// SanitizeRelativePath rejects absolute paths, backslashes, NUL bytes,
// any ".." segment, and collapses double slashes, returning the cleaned
// path and whether it is safe.
func SanitizeRelativePath(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	if strings.ContainsRune(p, 0) {
		return "", false
	}
	if strings.Contains(p, "\\") {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		return "", false
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	return p, true
}

// WithinRoot reports whether the cleaned relative path, joined onto root,
// stays a strict descendant of root. Callers must have already validated
// rel with SanitizeRelativePath.
func WithinRoot(root, rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return false
	}
	r, err := filepath.Rel(filepath.Clean(root), filepath.Join(root, rel))
	return err == nil && r != "." && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}
