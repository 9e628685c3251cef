// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package linboupdate implements the LINBO self-update probe/provision
// flow: an APT-style version check against a Packages index, followed by
// download, verification, kernel-variant extraction, and a protected
// GRUB-module merge.
package linboupdate

import (
	"strconv"
	"strings"
)

// ParseInstalledVersion extracts the version from a linbo-version.txt
// body of the form "LINBO <ver>[: codename]".
func ParseInstalledVersion(body string) (string, bool) {
	line := strings.TrimSpace(strings.SplitN(body, "\n", 2)[0])
	if !strings.HasPrefix(line, "LINBO ") {
		return "", false
	}
	rest := strings.TrimPrefix(line, "LINBO ")
	ver, _, _ := strings.Cut(rest, ":")
	ver = strings.TrimSpace(ver)
	if ver == "" {
		return "", false
	}
	return ver, true
}

// versionPart splits a Debian version string into upstream epoch,
// numeric/alpha runs for comparison. This is a simplified comparator
// covering the epoch:upstream-revision shape the LINBO packages actually
// use; it does not implement every corner of Debian policy's full
// algorithm (e.g. arbitrary tilde-prerelease ordering beyond simple
// numeric/alpha runs), which this project doesn't need.
type versionPart struct {
	numeric bool
	num     int
	str     string
}

func splitVersionParts(s string) []versionPart {
	var parts []versionPart
	i := 0
	for i < len(s) {
		if isDigit(s[i]) {
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			n, _ := strconv.Atoi(s[i:j])
			parts = append(parts, versionPart{numeric: true, num: n})
			i = j
		} else {
			j := i
			for j < len(s) && !isDigit(s[j]) {
				j++
			}
			parts = append(parts, versionPart{str: s[i:j]})
			i = j
		}
	}
	return parts
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// CompareVersions implements a Debian-style version comparator: epoch,
// then upstream version, then revision, each compared part-by-part with
// numeric runs compared numerically and non-numeric runs compared
// lexically, "~" sorting before everything including the empty string.
func CompareVersions(a, b string) int {
	ea, ua := splitEpoch(a)
	eb, ub := splitEpoch(b)
	if ea != eb {
		if ea < eb {
			return -1
		}
		return 1
	}
	return compareUpstream(ua, ub)
}

func splitEpoch(v string) (int, string) {
	if idx := strings.Index(v, ":"); idx >= 0 {
		n, err := strconv.Atoi(v[:idx])
		if err == nil {
			return n, v[idx+1:]
		}
	}
	return 0, v
}

func compareUpstream(a, b string) int {
	pa := splitVersionParts(a)
	pb := splitVersionParts(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y versionPart
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x.numeric || y.numeric {
			if x.num != y.num {
				if x.num < y.num {
					return -1
				}
				return 1
			}
			continue
		}
		if x.str != y.str {
			if tildeLess(x.str, y.str) {
				return -1
			}
			return 1
		}
	}
	return 0
}

// tildeLess orders "~" before everything, including the empty string,
// per Debian policy's tilde-prerelease convention.
func tildeLess(a, b string) bool {
	aT := strings.HasPrefix(a, "~")
	bT := strings.HasPrefix(b, "~")
	if aT && !bT {
		return true
	}
	if !aT && bT {
		return false
	}
	return a < b
}
