// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package dhcpgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openchami/linbo-dc/internal/model"
)

// fixture is a small three-host fleet with one non-PXE printer.
func fixture() ([]model.Host, map[string]string) {
	hosts := []model.Host{
		{Hostname: "pc-r101-01", MACAddress: "aa:bb:cc:00:00:01", IPAddress: "10.0.1.1", ConfigID: "c1"},
		{Hostname: "pc-r202-01", MACAddress: "aa:bb:cc:00:00:02", IPAddress: "10.0.2.1", ConfigID: "c2"},
		{Hostname: "printer-01", MACAddress: "aa:bb:cc:00:00:03", IPAddress: "10.0.1.100"},
	}
	names := map[string]string{"c1": "pc-raum-101", "c2": "pc-raum-202"}
	return hosts, names
}

func TestGenerateISCDHCP(t *testing.T) {
	hosts, names := fixture()
	net := NetworkSettings{Subnet: "10.0.0.0", Netmask: "255.0.0.0", Gateway: "10.0.0.1", DNS: "10.0.0.1", Domain: "school.local"}

	out := GenerateISCDHCP(hosts, names, net, Options{IncludeHeader: true, IncludeSubnet: true})

	assert.Contains(t, out, `host pc-r101-01 {`)
	assert.Contains(t, out, `hardware ethernet aa:bb:cc:00:00:01;`)
	assert.Contains(t, out, `fixed-address 10.0.1.1;`)
	assert.Contains(t, out, `option host-name "pc-r101-01";`)
	assert.Contains(t, out, `option nis-domain "pc-raum-101";`)
	assert.Contains(t, out, `option extensions-path "pc-raum-101";`)

	// printer-01 has no configId: no PXE options at all.
	printerIdx := indexOf(out, "host printer-01")
	nextBraceIdx := indexOf(out[printerIdx:], "}")
	printerBlock := out[printerIdx : printerIdx+nextBraceIdx]
	assert.NotContains(t, printerBlock, "nis-domain")
	assert.NotContains(t, printerBlock, "extensions-path")
}

func TestGenerateDnsmasqProxyOmitsNonPXEHosts(t *testing.T) {
	hosts, names := fixture()
	net := NetworkSettings{Subnet: "10.0.0.0/8", LinboDir: "/srv/linbo"}

	out := GenerateDnsmasqProxy(hosts, names, net, Options{})

	assert.Contains(t, out, "aa:bb:cc:00:00:01")
	assert.Contains(t, out, "aa:bb:cc:00:00:02")
	assert.NotContains(t, out, "printer-01")
	assert.NotContains(t, out, "aa:bb:cc:00:00:03")
	assert.Contains(t, out, "tftp-root=/srv/linbo")
	assert.Contains(t, out, "enable-tftp")
	// Proxy-mode PXE host lines carry no IP address field.
	assert.NotContains(t, out, "dhcp-host=aa:bb:cc:00:00:01,10.0.1.1")
}

func TestGenerateDnsmasqFullIncludesNonPXEHostsWithoutTag(t *testing.T) {
	hosts, names := fixture()
	net := NetworkSettings{Interface: "eth0", Domain: "school.local", ServerIP: "10.0.0.13"}

	out := GenerateDnsmasqFull(hosts, names, net, Options{IncludeHeader: true})

	assert.Contains(t, out, "dhcp-host=aa:bb:cc:00:00:03,10.0.1.100,printer-01")
	assert.Contains(t, out, "dhcp-host=aa:bb:cc:00:00:01,10.0.1.1,pc-r101-01,set:pc-raum-101")
	assert.Contains(t, out, `dhcp-option=tag:pc-raum-101,40,pc-raum-101`)
}

func TestSanitizeTag(t *testing.T) {
	assert.Equal(t, "pc-raum-101_x", SanitizeTag("pc-raum-101_x"))
	assert.Equal(t, "a_b", SanitizeTag("a b"))
}

func TestGroupHostsByConfigUsesNoConfigSentinel(t *testing.T) {
	hosts, names := fixture()
	groups := GroupHostsByConfig(hosts, names)
	assert.Len(t, groups["no-config"], 1)
	assert.Equal(t, "printer-01", groups["no-config"][0].Hostname)
}

func TestGetDHCPSummary(t *testing.T) {
	hosts, _ := fixture()
	s := GetDHCPSummary(hosts, 100, 50)
	assert.True(t, s.IsStale)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.PXE)
	assert.Equal(t, 3, s.StaticIP)

	s2 := GetDHCPSummary(hosts, 100, 200)
	assert.False(t, s2.IsStale)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
