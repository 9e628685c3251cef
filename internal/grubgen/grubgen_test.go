// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package grubgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchami/linbo-dc/internal/model"
)

func testFixture() ([]model.BootConfig, []model.Host) {
	cfg := model.BootConfig{
		ID:   "cfg-1",
		Name: "win11_efi_sata",
		Partitions: []model.Partition{
			{Device: "/dev/sda1", Label: "cache", FSType: "cache", Position: 1},
			{Device: "/dev/sda2", Label: "win11", FSType: "ntfs", Position: 2},
		},
		OSEntries: []model.OSEntry{
			{Name: "Windows 11", RootDevice: "/dev/sda2"},
		},
	}
	hosts := []model.Host{
		{
			ID:         "h1",
			Hostname:   "r100-pc01",
			MACAddress: "aa:bb:cc:dd:ee:01",
			ConfigID:   "cfg-1",
			Metadata:   map[string]string{"pxeFlag": "1"},
		},
	}
	return []model.BootConfig{cfg}, hosts
}

func TestRegenerateAllCreatesHostcfgSymlinks(t *testing.T) {
	dir := t.TempDir()
	g := New(Config{LinboDir: dir, LinboServerIP: "10.0.0.13", WebPort: "8000"}, nil)

	configs, hosts := testFixture()
	result, err := g.RegenerateAll(configs, hosts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Configs)
	assert.Equal(t, 1, result.Hosts)
	assert.Equal(t, 1, result.HostcfgMAC)

	hostcfgDir := filepath.Join(dir, "boot", "grub", "hostcfg")

	hostLink := filepath.Join(hostcfgDir, "r100-pc01.cfg")
	target, err := os.Readlink(hostLink)
	require.NoError(t, err)
	assert.Equal(t, "../win11_efi_sata.cfg", target)

	macLink := filepath.Join(hostcfgDir, "01-aa-bb-cc-dd-ee-01.cfg")
	target, err = os.Readlink(macLink)
	require.NoError(t, err)
	assert.Equal(t, "../win11_efi_sata.cfg", target)

	_, err = os.Stat(filepath.Join(dir, "boot", "grub", "win11_efi_sata.cfg"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "boot", "grub", "grub.cfg"))
	require.NoError(t, err)
}

func TestRegenerateAllPrunesStaleHostcfgEntries(t *testing.T) {
	dir := t.TempDir()
	g := New(Config{LinboDir: dir, LinboServerIP: "10.0.0.13", WebPort: "8000"}, nil)

	configs, hosts := testFixture()
	_, err := g.RegenerateAll(configs, hosts)
	require.NoError(t, err)

	// Remove the host from the fleet and regenerate: its hostcfg entries
	// must be pruned.
	result, err := g.RegenerateAll(configs, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Hosts)

	hostcfgDir := filepath.Join(dir, "boot", "grub", "hostcfg")
	entries, err := os.ReadDir(hostcfgDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegenerateAllIsDeterministic(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	configs, hosts := testFixture()

	g1 := New(Config{LinboDir: dir1, LinboServerIP: "10.0.0.13", WebPort: "8000"}, nil)
	g2 := New(Config{LinboDir: dir2, LinboServerIP: "10.0.0.13", WebPort: "8000"}, nil)

	_, err := g1.RegenerateAll(configs, hosts)
	require.NoError(t, err)
	_, err = g2.RegenerateAll(configs, hosts)
	require.NoError(t, err)

	body1, err := os.ReadFile(filepath.Join(dir1, "boot", "grub", "win11_efi_sata.cfg"))
	require.NoError(t, err)
	body2, err := os.ReadFile(filepath.Join(dir2, "boot", "grub", "win11_efi_sata.cfg"))
	require.NoError(t, err)
	assert.Equal(t, body1, body2, "identical inputs must produce byte-identical artifacts")
}

func TestRegenerateAllBacksUpExistingRegularFile(t *testing.T) {
	dir := t.TempDir()
	hostcfgDir := filepath.Join(dir, "boot", "grub", "hostcfg")
	require.NoError(t, os.MkdirAll(hostcfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hostcfgDir, "r100-pc01.cfg"), []byte("legacy"), 0o644))

	g := New(Config{LinboDir: dir, LinboServerIP: "10.0.0.13", WebPort: "8000"}, nil)
	configs, hosts := testFixture()
	_, err := g.RegenerateAll(configs, hosts)
	require.NoError(t, err)

	entries, err := os.ReadDir(hostcfgDir)
	require.NoError(t, err)
	var sawBackup bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".cfg" {
			sawBackup = true
		}
	}
	assert.True(t, sawBackup, "pre-existing regular file should be backed up, not clobbered in place")
}
