// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package orchestrator fans out administrator commands over SSH to
// fleets of hosts, tracking per-host Sessions under one Operation.
package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/pathsafe"
)

// TargetSpec is the raw target selection an API caller supplies: explicit
// MACs, explicit hostnames, a boot-config group name, or a room filter.
// Exactly one of them must be non-empty.
type TargetSpec struct {
	MACs      []string
	Hostnames []string
	Group     string
	Room      string
}

// ExtractIdentifier resolves a single free-form target string to a host,
// trying hostname match, then MAC match, then bare id match, in that
// order.
func ExtractIdentifier(identifier string, byHostname, byMAC, byID map[string]model.Host) (model.Host, bool) {
	if h, ok := byHostname[identifier]; ok {
		return h, true
	}
	if mac, err := model.NormalizeMAC(identifier); err == nil {
		if h, ok := byMAC[mac]; ok {
			return h, true
		}
	}
	if h, ok := byID[identifier]; ok {
		return h, true
	}
	return model.Host{}, false
}

// ErrInvalidFilter is returned when a TargetSpec names zero or more than
// one filter type.
var ErrInvalidFilter = errors.New("target selection must specify exactly one of macs, hostnames, hostgroup, room")

// ErrNoMatch is returned when a non-empty filter matched no hosts.
var ErrNoMatch = errors.New("target selection matched no hosts")

// ErrHostnameConflict is returned when a requested hostname maps to more
// than one MAC address in the host index.
var ErrHostnameConflict = errors.New("hostname maps to more than one mac address")

// ResolveHosts expands a TargetSpec into the concrete set of hosts a
// command will run against. Exactly one
// of MACs, Hostnames, Group, Room must be set. Hostnames and MACs are
// matched against the live host table; Group matches the BootConfig name
// referenced by Host.ConfigID; Room matches Host.RoomID.
func ResolveHosts(spec TargetSpec, hosts []model.Host, configNameByID map[string]string) ([]model.Host, error) {
	filterCount := 0
	if len(spec.MACs) > 0 {
		filterCount++
	}
	if len(spec.Hostnames) > 0 {
		filterCount++
	}
	if spec.Group != "" {
		filterCount++
	}
	if spec.Room != "" {
		filterCount++
	}
	if filterCount != 1 {
		return nil, ErrInvalidFilter
	}

	byHostname := make(map[string][]model.Host, len(hosts))
	byMAC := make(map[string]model.Host, len(hosts))
	for _, h := range hosts {
		byHostname[h.Hostname] = append(byHostname[h.Hostname], h)
		if mac, err := model.NormalizeMAC(h.MACAddress); err == nil {
			byMAC[mac] = h
		}
	}

	var out []model.Host
	switch {
	case len(spec.Hostnames) > 0:
		for _, hn := range spec.Hostnames {
			if !pathsafe.SanitizeHostname(hn) {
				return nil, fmt.Errorf("invalid hostname in target list: %q", hn)
			}
			matches, ok := byHostname[hn]
			if !ok {
				continue
			}
			if len(matches) > 1 {
				return nil, fmt.Errorf("%w: %q", ErrHostnameConflict, hn)
			}
			out = append(out, matches[0])
		}
	case len(spec.MACs) > 0:
		for _, mac := range spec.MACs {
			norm, err := model.NormalizeMAC(mac)
			if err != nil {
				return nil, fmt.Errorf("invalid mac in target list: %w", err)
			}
			if h, ok := byMAC[norm]; ok {
				out = append(out, h)
			}
		}
	case spec.Group != "":
		for _, h := range hosts {
			if strings.EqualFold(configNameByID[h.ConfigID], spec.Group) {
				out = append(out, h)
			}
		}
	case spec.Room != "":
		for _, h := range hosts {
			if h.RoomID == spec.Room {
				out = append(out, h)
			}
		}
	}

	out = dedupeByID(out)
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}

func dedupeByID(hosts []model.Host) []model.Host {
	seen := make(map[string]bool, len(hosts))
	out := make([]model.Host, 0, len(hosts))
	for _, h := range hosts {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	return out
}
