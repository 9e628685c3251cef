// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package grubgen produces the self-contained GRUB configuration tree
// rooted at <LINBO_DIR>/boot/grub/.
package grubgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	sdRe     = regexp.MustCompile(`^/dev/sd([a-z])(\d+)$`)
	nvmeRe   = regexp.MustCompile(`^/dev/nvme(\d+)n1p(\d+)$`)
	mmcRe    = regexp.MustCompile(`^/dev/mmcblk(\d+)p(\d+)$`)
	vdRe     = regexp.MustCompile(`^/dev/vd([a-z])(\d+)$`)
	diskRe   = regexp.MustCompile(`^/dev/disk(\d+)p(\d+)$`)
	fallback = "(hd0,1)"
)

// GetGrubPart maps a Linux device path to its GRUB (hdN,M) form. It is
// total: every input, including
// unparseable or empty strings, returns a valid (hdN,M) string.
func GetGrubPart(device string) string {
	if m := sdRe.FindStringSubmatch(device); m != nil {
		disk := int(m[1][0] - 'a')
		return fmt.Sprintf("(hd%d,%s)", disk, m[2])
	}
	if m := vdRe.FindStringSubmatch(device); m != nil {
		disk := int(m[1][0] - 'a')
		return fmt.Sprintf("(hd%d,%s)", disk, m[2])
	}
	if m := nvmeRe.FindStringSubmatch(device); m != nil {
		return fmt.Sprintf("(hd%s,%s)", m[1], m[2])
	}
	if m := mmcRe.FindStringSubmatch(device); m != nil {
		return fmt.Sprintf("(hd%s,%s)", m[1], m[2])
	}
	if m := diskRe.FindStringSubmatch(device); m != nil {
		part, err := strconv.Atoi(m[2])
		if err != nil || part < 1 {
			return fallback
		}
		return fmt.Sprintf("(hd%s,%s)", m[1], m[2])
	}
	return fallback
}

// osTypeOrder is checked in this order so win11 beats win10 beats win8
// beats win7 beats bare "windows".
var osTypeOrder = []struct {
	substr string
	osType string
}{
	{"win11", "win11"},
	{"windows 11", "win11"},
	{"win10", "win10"},
	{"windows 10", "win10"},
	{"win8", "win8"},
	{"windows 8", "win8"},
	{"win7", "win7"},
	{"windows 7", "win7"},
	{"windows", "windows"},
	{"ubuntu", "ubuntu"},
	{"debian", "debian"},
	{"linuxmint", "linuxmint"},
	{"linux mint", "linuxmint"},
	{"fedora", "fedora"},
	{"opensuse", "opensuse"},
	{"arch", "arch"},
	{"manjaro", "manjaro"},
	{"centos", "centos"},
	{"rhel", "rhel"},
}

// GetGrubOstype maps an OS entry's name to one of the canonical
// os-type tags via case-insensitive substring match. Unknown names return
// "unknown".
func GetGrubOstype(osName string) string {
	lower := strings.ToLower(osName)
	for _, candidate := range osTypeOrder {
		if strings.Contains(lower, candidate.substr) {
			return candidate.osType
		}
	}
	return "unknown"
}
