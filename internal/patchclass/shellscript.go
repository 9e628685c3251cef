// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package patchclass manages driver sets and the device-rule map, and
// emits the driver-rules.sh script LINBO runs during the sync step.
package patchclass

import (
	"crypto/md5" //nolint:gosec // integrity hint only, not security-sensitive
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// escapeGlob backslash-escapes the POSIX shell case-pattern
// metacharacters \*?[] so a value can appear literally inside an
// unquoted case arm.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '*', '?', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// shellEscapeExact escapes s for a literal (non-wildcard) case-pattern
// comparison.
func shellEscapeExact(s string) string {
	return escapeGlob(s)
}

// shellEscapeContains escapes s for use inside a glob-style `case`
// pattern where the caller wraps it in "*...*".
func shellEscapeContains(s string) string {
	return escapeGlob(s)
}

// GenerateDriverRulesScript renders the POSIX-sh driver-rules.sh body for
// one patchclass: match_drivers() is a `case
// "$sys_vendor|$product_name"` whose arms are the ModelMatches in
// insertion order, and match_device_drivers() is a `case "$pci_id"`
// whose arms are the filtered DeviceRules, subsystem-carrying rules
// first (model.DriverMap.FilteredDeviceRules already orders them this
// way). match_device_drivers() is omitted entirely when there are no
// DeviceRules left after filtering by IgnoredCategories.
func GenerateDriverRulesScript(pc model.Patchclass) string {
	var b strings.Builder

	hash := md5.Sum([]byte(canonicalMapJSON(pc.Map))) //nolint:gosec // integrity hint only, not security-sensitive
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# Hash: %s\n", hex.EncodeToString(hash[:]))
	b.WriteString("# Generated driver-rules script. Do not edit by hand.\n\n")

	b.WriteString("match_drivers() {\n")
	b.WriteString("  case \"$sys_vendor|$product_name\" in\n")
	for _, m := range pc.Map.Models {
		var pattern string
		if m.ProductNameContains != "" {
			pattern = shellEscapeExact(m.SysVendor) + "|*" + shellEscapeContains(m.ProductNameContains) + "*"
		} else {
			pattern = shellEscapeExact(m.SysVendor) + "|" + shellEscapeExact(m.ProductName)
		}
		fmt.Fprintf(&b, "    %s)\n", pattern)
		fmt.Fprintf(&b, "      DRIVER_SETS=%q\n", strings.Join(m.Drivers, " "))
		b.WriteString("      ;;\n")
	}
	b.WriteString("    *)\n")
	fmt.Fprintf(&b, "      DRIVER_SETS=%q\n", strings.Join(pc.Map.DefaultDrivers, " "))
	b.WriteString("      ;;\n")
	b.WriteString("  esac\n")
	b.WriteString("}\n")

	rules := pc.Map.FilteredDeviceRules()
	if len(rules) > 0 {
		b.WriteString("\nmatch_device_drivers() {\n")
		b.WriteString("  case \"$pci_id\" in\n")
		for _, r := range rules {
			var pattern string
			if r.HasSubsystem() {
				pattern = fmt.Sprintf("%s:%s:%s:%s", r.Vendor, r.Device, r.Subvendor, r.Subdevice)
			} else {
				pattern = fmt.Sprintf("%s:%s", r.Vendor, r.Device)
			}
			fmt.Fprintf(&b, "    %s)\n", pattern)
			fmt.Fprintf(&b, "      DRIVER_SETS=%q\n", strings.Join(r.Drivers, " "))
			b.WriteString("      ;;\n")
		}
		b.WriteString("  esac\n")
		b.WriteString("}\n")
	}

	return b.String()
}

// canonicalMapJSON renders pc.Map in a stable field order so the
// script-header hash only changes when the map's content actually
// changes.
func canonicalMapJSON(m model.DriverMap) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"version":%d,"defaultDrivers":%s,"models":[`, m.Version, jsonStrings(m.DefaultDrivers))
	for i, mm := range m.Models {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"name":%q,"sys_vendor":%q,"product_name":%q,"product_name_contains":%q,"drivers":%s}`,
			mm.Name, mm.SysVendor, mm.ProductName, mm.ProductNameContains, jsonStrings(mm.Drivers))
	}
	b.WriteString(`],"deviceRules":[`)
	for i, r := range m.DeviceRules {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"name":%q,"category":%q,"type":%q,"vendor":%q,"device":%q,"subvendor":%q,"subdevice":%q,"drivers":%s}`,
			r.Name, r.Category, r.Type, r.Vendor, r.Device, r.Subvendor, r.Subdevice, jsonStrings(r.Drivers))
	}
	fmt.Fprintf(&b, `],"ignoredCategories":%s}`, jsonStrings(m.IgnoredCategories))
	return b.String()
}

// RegenerateRules writes driver-rules.sh for pc under baseDir atomically
// and returns the map-content hash from the script header, so callers
// can detect an unchanged regeneration.
func RegenerateRules(baseDir string, pc model.Patchclass) (string, error) {
	script := GenerateDriverRulesScript(pc)
	hash := md5.Sum([]byte(canonicalMapJSON(pc.Map))) //nolint:gosec // integrity hint only, not security-sensitive
	path := filepath.Join(baseDir, pc.Name, "driver-rules.sh")
	if err := fsutil.WriteFileAtomic(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("writing driver-rules.sh: %w", err)
	}
	return hex.EncodeToString(hash[:]), nil
}

func jsonStrings(ss []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q", s)
	}
	b.WriteByte(']')
	return b.String()
}
