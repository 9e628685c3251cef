// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package upstream defines the upstream inventory authority the sync
// engine pulls from, with an HTTP implementation for production and a
// YAML-file implementation for offline development and tests.
package upstream

import (
	"context"

	"github.com/openchami/linbo-dc/internal/model"
)

// Delta is the cursor-based change set returned by GetChanges.
type Delta struct {
	NextCursor        string   `json:"nextCursor"`
	HostsChanged      []string `json:"hostsChanged"`      // MAC addresses
	StartConfsChanged []string `json:"startConfsChanged"` // config names
	ConfigsChanged    []string `json:"configsChanged"`    // config names
	DeletedHosts      []string `json:"deletedHosts"`      // MAC addresses
	DeletedStartConfs []string `json:"deletedStartConfs"` // config names
	DHCPChanged       bool     `json:"dhcpChanged"`
}

// DHCPExport is the upstream DHCP export body plus its ETag.
type DHCPExport struct {
	Status  int
	Content []byte
	ETag    string
}

// Authority is the upstream inventory authority the sync engine pulls
// from.
type Authority interface {
	GetChanges(ctx context.Context, cursor string) (Delta, error)
	BatchGetHosts(ctx context.Context, macs []string) ([]model.Host, error)
	BatchGetStartConfs(ctx context.Context, names []string) (map[string]string, error)
	BatchGetConfigs(ctx context.Context, names []string) ([]model.BootConfig, error)
	GetDHCPExport(ctx context.Context) (DHCPExport, error)
	CheckHealth(ctx context.Context) error
}
