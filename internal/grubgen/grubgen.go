// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package grubgen

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// Config holds the network settings GRUB's main config needs for the
// direct-HTTP netboot fallback branch.
type Config struct {
	LinboDir       string
	LinboServerIP  string
	WebPort        string
}

// Generator emits the GRUB configuration tree.
type Generator struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a Generator.
func New(cfg Config, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(log.Writer(), "grubgen: ", log.LstdFlags)
	}
	return &Generator{cfg: cfg, logger: logger}
}

func (g *Generator) grubRoot() string       { return filepath.Join(g.cfg.LinboDir, "boot", "grub") }
func (g *Generator) hostcfgDir() string     { return filepath.Join(g.grubRoot(), "hostcfg") }
func (g *Generator) configPath(name string) string {
	return filepath.Join(g.grubRoot(), name+".cfg")
}

// RegenerateResult reports what RegenerateAll produced.
type RegenerateResult struct {
	Configs    int
	Hosts      int
	HostcfgMAC int
}

// RegenerateAll performs a full regeneration:
// emit every per-config file, emit both symlinks for every host whose
// configId names one of configs (pxeFlag is not consulted), prune stale
// hostcfg entries, and emit the main grub.cfg.
func (g *Generator) RegenerateAll(configs []model.BootConfig, hosts []model.Host) (RegenerateResult, error) {
	result := RegenerateResult{}

	byID := make(map[string]model.BootConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
		if err := g.writeConfigFile(c); err != nil {
			return result, fmt.Errorf("emitting config %s: %w", c.Name, err)
		}
		result.Configs++
	}

	produced := make(map[string]bool)
	for _, h := range hosts {
		if h.ConfigID == "" {
			continue
		}
		cfg, ok := byID[h.ConfigID]
		if !ok {
			continue
		}
		if err := g.writeHostSymlinks(h, cfg); err != nil {
			return result, fmt.Errorf("emitting hostcfg for %s: %w", h.Hostname, err)
		}
		produced[h.Hostname+".cfg"] = true
		produced["01-"+model.DashedMAC(h.MACAddress)+".cfg"] = true
		result.Hosts++
		result.HostcfgMAC++
	}

	if err := g.pruneHostcfg(produced); err != nil {
		return result, fmt.Errorf("pruning hostcfg: %w", err)
	}

	if err := g.writeMainConfig(); err != nil {
		return result, fmt.Errorf("emitting grub.cfg: %w", err)
	}

	return result, nil
}

// writeConfigFile emits <configName>.cfg with four menu entries per OS
// entry plus the bare LINBO entry.
func (g *Generator) writeConfigFile(cfg model.BootConfig) error {
	var b strings.Builder

	b.WriteString("set default=0\n")
	b.WriteString("set timeout=5\n\n")
	b.WriteString("search --no-floppy --set=cacheroot --file /.linbo-cache-marker\n")
	b.WriteString(`if [ -z "$cacheroot" -a -n "$linbo_initrd" ]; then` + "\n")
	b.WriteString("  search --no-floppy --set=cacheroot --file /$linbo_initrd\n")
	b.WriteString("fi\n\n")

	for _, osEntry := range cfg.OSEntries {
		n := cfg.RootPartitionIndex(osEntry)
		entries := []struct {
			suffix   string
			linbocmd string
		}{
			{"Start", fmt.Sprintf("start:%d", n)},
			{"Linbo-Start", fmt.Sprintf("start:%d", n)},
			{"Sync+Start", fmt.Sprintf("sync:%d,start:%d", n, n)},
			{"Neu+Start", fmt.Sprintf("format:%d,sync:%d,start:%d", n, n, n)},
		}
		for _, e := range entries {
			fmt.Fprintf(&b, "menuentry \"%s - %s\" {\n", osEntry.Name, e.suffix)
			fmt.Fprintf(&b, "  linbocmd=\"%s\"\n", e.linbocmd)
			fmt.Fprintf(&b, "  set root=%s\n", GetGrubPart(osEntry.RootDevice))
			b.WriteString("}\n\n")
		}
	}

	b.WriteString("menuentry \"LINBO\" {\n")
	b.WriteString("  linux16 /linbofs64/linbo64\n")
	b.WriteString("  initrd16 /linbofs64/linbofs64\n")
	b.WriteString("}\n\n")
	b.WriteString("set cfg_loaded=1\n")

	return fsutil.WriteFileAtomic(g.configPath(cfg.Name), []byte(b.String()), 0o644)
}

// writeHostSymlinks creates hostcfg/<hostname>.cfg and
// hostcfg/01-<mac>.cfg, both relative symlinks to ../<configName>.cfg.
// An existing regular file is backed up before replacement;
// an existing symlink with the wrong target is atomically re-pointed.
func (g *Generator) writeHostSymlinks(h model.Host, cfg model.BootConfig) error {
	target := "../" + cfg.Name + ".cfg"

	hostnamePath := filepath.Join(g.hostcfgDir(), h.Hostname+".cfg")
	if err := g.backupIfRegularFile(hostnamePath); err != nil {
		return err
	}
	if err := fsutil.ReplaceSymlink(hostnamePath, target); err != nil {
		return err
	}

	macPath := filepath.Join(g.hostcfgDir(), "01-"+model.DashedMAC(h.MACAddress)+".cfg")
	if err := g.backupIfRegularFile(macPath); err != nil {
		return err
	}
	return fsutil.ReplaceSymlink(macPath, target)
}

func (g *Generator) backupIfRegularFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil // doesn't exist yet
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil // symlinks are handled by ReplaceSymlink
	}
	backup := fmt.Sprintf("%s.bak.%d", path, time.Now().Unix())
	return os.Rename(path, backup)
}

// pruneHostcfg removes every regular file or symlink under hostcfg/ that
// was not produced in this regeneration pass.
func (g *Generator) pruneHostcfg(produced map[string]bool) error {
	entries, err := os.ReadDir(g.hostcfgDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), ".bak.") {
			continue // backups are not pruned automatically
		}
		if !produced[e.Name()] {
			if err := os.Remove(filepath.Join(g.hostcfgDir(), e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMainConfig emits boot/grub/grub.cfg.
func (g *Generator) writeMainConfig() error {
	var b strings.Builder
	b.WriteString("set timeout=0\n")
	b.WriteString("set default=0\n\n")

	candidates := []string{
		"hostcfg/$net_default_hostname.cfg",
		"hostcfg/$net_pxe_hostname.cfg",
		"hostcfg/$hostname.cfg",
		"$group.cfg",
	}
	b.WriteString("set cfg_loaded=0\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "if [ \"$cfg_loaded\" = 0 ]; then\n")
		fmt.Fprintf(&b, "  if [ -f (tftp)/%s ]; then\n", c)
		fmt.Fprintf(&b, "    source (tftp)/%s\n", c)
		b.WriteString("    set cfg_loaded=1\n")
		b.WriteString("  fi\n")
		b.WriteString("fi\n")
	}

	b.WriteString("if [ \"$cfg_loaded\" = 0 ]; then\n")
	fmt.Fprintf(&b, "  linux16 (http,%s:%s)/linbofs64/linbo64\n", g.cfg.LinboServerIP, g.cfg.WebPort)
	fmt.Fprintf(&b, "  initrd16 (http,%s:%s)/linbofs64/linbofs64\n", g.cfg.LinboServerIP, g.cfg.WebPort)
	b.WriteString("fi\n")

	return fsutil.WriteFileAtomic(filepath.Join(g.grubRoot(), "grub.cfg"), []byte(b.String()), 0o644)
}
