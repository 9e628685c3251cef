// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package dhcpgen produces ISC-DHCP and dnsmasq (full/proxy) boot
// configuration text from the current host table.
package dhcpgen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
)

// NetworkSettings carries the small set of network parameters the
// generators need.
type NetworkSettings struct {
	ServerIP      string
	Subnet        string
	Netmask       string
	Gateway       string
	DNS           string
	Domain        string
	PoolStart     string
	PoolEnd       string
	DefaultLease  int
	MaxLease      int
	Interface     string
	LinboDir      string
}

// Options controls optional sections shared by all three generators.
type Options struct {
	IncludeHeader bool
	IncludeSubnet bool
	PXEOnly       bool
	Interface     string
}

var sanitizeTagRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeTag replaces any character outside [A-Za-z0-9_-] with '_'.
func SanitizeTag(s string) string {
	return sanitizeTagRe.ReplaceAllString(s, "_")
}

const noConfigSentinel = "no-config"

// GroupHostsByConfig groups hosts by their BootConfig name, using the
// "no-config" sentinel for hosts with no configId.
func GroupHostsByConfig(hosts []model.Host, configNames map[string]string) map[string][]model.Host {
	groups := make(map[string][]model.Host)
	for _, h := range hosts {
		name := noConfigSentinel
		if h.ConfigID != "" {
			if n, ok := configNames[h.ConfigID]; ok {
				name = n
			}
		}
		groups[name] = append(groups[name], h)
	}
	return groups
}

func sortedConfigNames(groups map[string][]model.Host) []string {
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortHostsByHostname(hosts []model.Host) []model.Host {
	out := make([]model.Host, len(hosts))
	copy(out, hosts)
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// GenerateISCDHCP emits an ISC-DHCP configuration fragment.
func GenerateISCDHCP(hosts []model.Host, configNames map[string]string, net NetworkSettings, opt Options) string {
	var b strings.Builder

	if opt.IncludeHeader {
		b.WriteString("# Generated ISC-DHCP configuration\n")
		b.WriteString(`option architecture-type code 93 = unsigned integer 16;` + "\n\n")
	}

	if opt.IncludeSubnet {
		fmt.Fprintf(&b, "subnet %s netmask %s {\n", net.Subnet, net.Netmask)
		fmt.Fprintf(&b, "  option routers %s;\n", net.Gateway)
		fmt.Fprintf(&b, "  option domain-name-servers %s;\n", net.DNS)
		fmt.Fprintf(&b, "  option domain-name \"%s\";\n", net.Domain)
		b.WriteString("}\n\n")
	}

	groups := GroupHostsByConfig(hosts, configNames)
	for _, configName := range sortedConfigNames(groups) {
		if opt.PXEOnly && configName == noConfigSentinel {
			continue
		}
		fmt.Fprintf(&b, "# Config: %s\n", configName)
		for _, h := range sortHostsByHostname(groups[configName]) {
			fmt.Fprintf(&b, "host %s {\n", h.Hostname)
			fmt.Fprintf(&b, "  hardware ethernet %s;\n", h.MACAddress)
			if h.IPAddress != "" {
				fmt.Fprintf(&b, "  fixed-address %s;\n", h.IPAddress)
			}
			fmt.Fprintf(&b, "  option host-name \"%s\";\n", h.Hostname)
			if h.IsPXEBootable() {
				fmt.Fprintf(&b, "  option nis-domain \"%s\";\n", configName)
				fmt.Fprintf(&b, "  option extensions-path \"%s\";\n", configName)
			}
			b.WriteString("}\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

var archRules = []struct {
	tag string
	id  int
}{
	{"bios", 0},
	{"efi32", 6},
	{"efi64", 7},
}

func writeArchRules(b *strings.Builder) {
	for _, r := range archRules {
		fmt.Fprintf(b, "dhcp-match=set:%s,option:client-arch,%d\n", r.tag, r.id)
	}
}

func writeBootLines(b *strings.Builder, net NetworkSettings) {
	paths := map[string]string{
		"bios":  "linbo/pxelinux.0",
		"efi32": "linbo/bootia32.efi",
		"efi64": "linbo/bootx64.efi",
	}
	for _, r := range archRules {
		fmt.Fprintf(b, "dhcp-boot=tag:%s,%s,%s\n", r.tag, paths[r.tag], net.ServerIP)
	}
}

// GenerateDnsmasqFull emits a dnsmasq full-mode configuration fragment.
func GenerateDnsmasqFull(hosts []model.Host, configNames map[string]string, net NetworkSettings, opt Options) string {
	var b strings.Builder

	iface := opt.Interface
	if iface == "" {
		iface = net.Interface
	}

	if opt.IncludeHeader {
		fmt.Fprintf(&b, "domain=%s\n", net.Domain)
		fmt.Fprintf(&b, "interface=%s\n", iface)
		b.WriteString("bind-interfaces\n")
	}

	writeArchRules(&b)
	writeBootLines(&b, net)

	for _, h := range sortHostsByHostname(hosts) {
		if opt.PXEOnly && !h.IsPXEBootable() {
			continue
		}
		if h.IsPXEBootable() {
			configName := configNames[h.ConfigID]
			tag := SanitizeTag(configName)
			ip := h.IPAddress
			fmt.Fprintf(&b, "dhcp-host=%s,%s,%s,set:%s\n", h.MACAddress, ip, h.Hostname, tag)
			fmt.Fprintf(&b, "dhcp-option=tag:%s,40,%s\n", tag, configName)
		} else if !opt.PXEOnly {
			fmt.Fprintf(&b, "dhcp-host=%s,%s,%s\n", h.MACAddress, h.IPAddress, h.Hostname)
		}
	}

	if net.PoolStart != "" && net.PoolEnd != "" {
		fmt.Fprintf(&b, "dhcp-range=%s,%s,%s,%ds\n", net.PoolStart, net.PoolEnd, net.Netmask, net.DefaultLease)
	} else {
		b.WriteString("#dhcp-range=192.168.0.50,192.168.0.150,12h\n")
	}

	return b.String()
}

// GenerateDnsmasqProxy emits a dnsmasq proxy-DHCP configuration fragment
//: only PXE hosts are listed, without IP addresses.
func GenerateDnsmasqProxy(hosts []model.Host, configNames map[string]string, net NetworkSettings, opt Options) string {
	var b strings.Builder

	b.WriteString("port=0\n")
	fmt.Fprintf(&b, "dhcp-range=%s,proxy\n", net.Subnet)

	writeArchRules(&b)
	writeBootLines(&b, net)

	for _, h := range sortHostsByHostname(hosts) {
		if !h.IsPXEBootable() {
			continue
		}
		configName := configNames[h.ConfigID]
		tag := SanitizeTag(configName)
		fmt.Fprintf(&b, "dhcp-host=%s,set:%s\n", h.MACAddress, tag)
	}

	fmt.Fprintf(&b, "tftp-root=%s\n", net.LinboDir)
	b.WriteString("enable-tftp\n")

	return b.String()
}

// Summary reports DHCP export staleness.
type Summary struct {
	Total          int
	PXE            int
	StaticIP       int
	DHCPIP         int
	IsStale        bool
}

// GetDHCPSummary computes counts and the staleness flag: stale iff the
// latest host or config update is newer than lastExportedAt (or the
// latter is zero).
func GetDHCPSummary(hosts []model.Host, latestUpdatedAtUnix int64, lastExportedAtUnix int64) Summary {
	s := Summary{Total: len(hosts)}
	for _, h := range hosts {
		if h.IsPXEBootable() {
			s.PXE++
		}
		if h.IPAddress != "" {
			s.StaticIP++
		} else {
			s.DHCPIP++
		}
	}
	s.IsStale = lastExportedAtUnix == 0 || latestUpdatedAtUnix > lastExportedAtUnix
	return s
}
