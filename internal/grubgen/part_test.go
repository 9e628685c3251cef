// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package grubgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var grubPartShape = regexp.MustCompile(`^\(hd\d+,\d+\)$`)

func TestGetGrubPart(t *testing.T) {
	cases := []struct {
		name   string
		device string
		want   string
	}{
		{"sata first disk", "/dev/sda1", "(hd0,1)"},
		{"sata third disk", "/dev/sdc2", "(hd2,2)"},
		{"nvme", "/dev/nvme0n1p1", "(hd0,1)"},
		{"nvme second controller", "/dev/nvme1n1p3", "(hd1,3)"},
		{"mmc", "/dev/mmcblk0p2", "(hd0,2)"},
		{"virtio", "/dev/vdb1", "(hd1,1)"},
		{"disk convention", "/dev/disk0p1", "(hd0,1)"},
		{"empty", "", "(hd0,1)"},
		{"garbage", "not-a-device", "(hd0,1)"},
		{"disk partition zero rejected", "/dev/disk0p0", "(hd0,1)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := GetGrubPart(tc.device)
			assert.Equal(t, tc.want, got)
			assert.Regexp(t, grubPartShape, got, "GetGrubPart must be total")
		})
	}
}

func TestGetGrubOstype(t *testing.T) {
	cases := []struct {
		name   string
		osName string
		want   string
	}{
		{"windows 11 beats windows 10 substring", "Windows 11 Pro", "win11"},
		{"windows 10", "Windows 10 Education", "win10"},
		{"windows 8", "Windows 8.1", "win8"},
		{"windows 7", "Windows 7 Enterprise", "win7"},
		{"bare windows", "Windows Server", "windows"},
		{"ubuntu", "Ubuntu 22.04 LTS", "ubuntu"},
		{"debian", "Debian 12", "debian"},
		{"linux mint", "Linux Mint 21", "linuxmint"},
		{"fedora", "Fedora Workstation 40", "fedora"},
		{"opensuse", "openSUSE Leap", "opensuse"},
		{"arch", "Arch Linux", "arch"},
		{"manjaro", "Manjaro XFCE", "manjaro"},
		{"centos", "CentOS Stream", "centos"},
		{"rhel", "RHEL 9", "rhel"},
		{"unknown", "FreeBSD 14", "unknown"},
		{"case insensitive", "WINDOWS 11", "win11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GetGrubOstype(tc.osName))
		})
	}
}

func TestSubstitute(t *testing.T) {
	tmpl := "server=@@server@@ port=@@port@@ again=@@server@@ keep=@@unknown@@"
	out := Substitute(tmpl, map[string]string{"server": "10.0.0.13", "port": ""})
	assert.Equal(t, "server=10.0.0.13 port= again=10.0.0.13 keep=@@unknown@@", out)
}
