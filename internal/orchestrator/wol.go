// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"fmt"
	"net"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
)

// BuildMagicPacket constructs the standard Wake-on-LAN magic packet: six
// 0xFF bytes followed by the target MAC repeated sixteen times.
func BuildMagicPacket(mac string) ([]byte, error) {
	norm, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	var macBytes [6]byte
	for i, part := range strings.Split(norm, ":") {
		var b int
		if _, err := fmt.Sscanf(part, "%02x", &b); err != nil {
			return nil, fmt.Errorf("parsing mac byte %q: %w", part, err)
		}
		macBytes[i] = byte(b)
	}

	packet := make([]byte, 0, 6+16*6)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, macBytes[:]...)
	}
	return packet, nil
}

// WakeHost broadcasts a magic packet to the subnet broadcast address on
// UDP port 9.
func WakeHost(mac, broadcastAddr string) error {
	packet, err := BuildMagicPacket(mac)
	if err != nil {
		return fmt.Errorf("building magic packet: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(broadcastAddr, "9"))
	if err != nil {
		return fmt.Errorf("resolving broadcast address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dialing broadcast address: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("sending magic packet: %w", err)
	}
	return nil
}

// WakeHosts sends a magic packet to every host in hosts, collecting
// per-host errors rather than aborting on the first failure.
func WakeHosts(hosts []model.Host, broadcastAddr string) map[string]error {
	results := make(map[string]error, len(hosts))
	for _, h := range hosts {
		results[h.Hostname] = WakeHost(h.MACAddress, broadcastAddr)
	}
	return results
}
