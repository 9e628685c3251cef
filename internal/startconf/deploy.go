// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package startconf

import (
	"crypto/md5" //nolint:gosec // MD5 used only as a non-security integrity hint
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// MD5Hex returns the lowercase 32-hex-char MD5 of data.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// DeployConfig renders cfg and deploys it like DeployRaw.
func DeployConfig(linboDir string, cfg *model.BootConfig) error {
	return DeployRaw(linboDir, cfg.Name, []byte(GenerateStartConf(cfg)))
}

// DeployRaw writes a pre-rendered start.conf body atomically alongside
// its .md5 sidecar, and renames any pre-existing same-named file to .bak
// first. The sync engine uses this path so the upstream body
// survives byte-for-byte apart from the Server rewrite.
func DeployRaw(linboDir, name string, body []byte) error {
	path := filepath.Join(linboDir, "start.conf."+name)
	md5Path := path + ".md5"

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("backing up existing %s: %w", path, err)
		}
	}

	if err := fsutil.WriteFileAtomic(path, body, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := fsutil.WriteFileAtomic(md5Path, []byte(MD5Hex(body)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", md5Path, err)
	}
	return nil
}

// CreateHostSymlinks creates start.conf-<ipv4> -> start.conf.<configName>
// relative symlinks for every host that references cfg.
func CreateHostSymlinks(linboDir string, cfg *model.BootConfig, hosts []model.Host) error {
	target := "start.conf." + cfg.Name
	for _, h := range hosts {
		if h.ConfigID != cfg.ID || h.IPAddress == "" {
			continue
		}
		linkPath := filepath.Join(linboDir, "start.conf-"+h.IPAddress)
		if err := fsutil.ReplaceSymlink(linkPath, target); err != nil {
			return fmt.Errorf("creating symlink for host %s: %w", h.Hostname, err)
		}
	}
	return nil
}

// CleanupOrphanedSymlinks removes start.conf-* symlinks whose host is no
// longer present in liveHosts (keyed by IP address).
func CleanupOrphanedSymlinks(linboDir string, liveHosts map[string]model.Host) error {
	entries, err := os.ReadDir(linboDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", linboDir, err)
	}

	for _, e := range entries {
		name := e.Name()
		const prefix = "start.conf-"
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		ip := name[len(prefix):]
		fullPath := filepath.Join(linboDir, name)
		info, err := os.Lstat(fullPath)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if _, ok := liveHosts[ip]; !ok {
			if err := os.Remove(fullPath); err != nil {
				return fmt.Errorf("removing orphaned symlink %s: %w", fullPath, err)
			}
		}
	}
	return nil
}

// RemoveConfig deletes the config body, its md5 sidecar, and any symlink
// whose target is the config's basename.
func RemoveConfig(linboDir, configName string) error {
	basename := "start.conf." + configName
	for _, suffix := range []string{"", ".md5"} {
		p := filepath.Join(linboDir, basename+suffix)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}

	entries, err := os.ReadDir(linboDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", linboDir, err)
	}
	for _, e := range entries {
		fullPath := filepath.Join(linboDir, e.Name())
		target, err := os.Readlink(fullPath)
		if err != nil {
			continue
		}
		if target == basename {
			if err := os.Remove(fullPath); err != nil {
				return fmt.Errorf("removing symlink %s: %w", fullPath, err)
			}
		}
	}
	return nil
}
