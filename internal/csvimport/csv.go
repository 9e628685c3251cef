// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package csvimport implements the semicolon-separated host
// import/export format consumed by the legacy school-server tooling.
package csvimport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
)

// Column indices for the canonical 11-column import layout.
const (
	ColRoom         = 0
	ColHostname     = 1
	ColConfig       = 2
	ColMAC          = 3
	ColIP           = 4
	ColMSOfficeKey  = 5
	ColMSWindowsKey = 6
	ColUnused       = 7
	ColRole         = 8
	ColUnused2      = 9
	ColPXEFlag      = 10
)

// ExportColumns is the fixed column count every export always emits,
// even when trailing columns are empty, to match the downstream parser.
const ExportColumns = 15

// Col0Source selects how column 0 is interpreted on import, driven by
// the CSV_COL0_SOURCE environment knob.
type Col0Source string

const (
	Col0AsRoom   Col0Source = "room"
	Col0Ignored  Col0Source = "ignore"
)

// ParseCol0Source maps the CSV_COL0_SOURCE env value to a Col0Source,
// defaulting to Col0AsRoom for an empty/unrecognized value.
func ParseCol0Source(env string) Col0Source {
	if strings.EqualFold(env, "ignore") {
		return Col0Ignored
	}
	return Col0AsRoom
}

// Row is one parsed CSV host row.
type Row struct {
	Room         string
	Hostname     string
	ConfigName   string
	MAC          string
	IP           string // "" when DHCP
	MSOfficeKey  string
	MSWindowsKey string
	Role         string
	PXEFlag      bool
}

// ParseCSV parses a semicolon-separated host import body, skipping blank
// lines and lines beginning with '#'.
func ParseCSV(body string, col0 Col0Source) ([]Row, error) {
	var rows []Row
	for lineNo, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) <= ColMAC {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", lineNo+1, ColMAC+1, len(fields))
		}

		mac, err := model.NormalizeMAC(field(fields, ColMAC))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		hostname := field(fields, ColHostname)
		if !model.ValidateHostname(hostname) {
			return nil, fmt.Errorf("line %d: invalid hostname %q", lineNo+1, hostname)
		}

		row := Row{
			Hostname:     hostname,
			ConfigName:   field(fields, ColConfig),
			MAC:          mac,
			MSOfficeKey:  field(fields, ColMSOfficeKey),
			MSWindowsKey: field(fields, ColMSWindowsKey),
			Role:         field(fields, ColRole),
			PXEFlag:      true,
		}
		if col0 == Col0AsRoom {
			row.Room = field(fields, ColRoom)
		}
		if ip := field(fields, ColIP); !strings.EqualFold(ip, "DHCP") {
			row.IP = ip
		}
		if pxe := field(fields, ColPXEFlag); pxe != "" {
			n, err := strconv.Atoi(pxe)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid pxeFlag %q", lineNo+1, pxe)
			}
			row.PXEFlag = n != 0
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func field(fields []string, idx int) string {
	if idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// ExportCSV renders hosts to the 15-column export format, always padding
// to ExportColumns regardless of how many trailing fields are actually
// populated.
func ExportCSV(hosts []model.Host, configNames map[string]string) string {
	var b strings.Builder
	for _, h := range hosts {
		cols := make([]string, ExportColumns)
		cols[ColRoom] = h.RoomID
		cols[ColHostname] = h.Hostname
		cols[ColConfig] = configNames[h.ConfigID]
		cols[ColMAC] = h.MACAddress
		if h.IPAddress == "" {
			cols[ColIP] = "DHCP"
		} else {
			cols[ColIP] = h.IPAddress
		}
		cols[ColMSOfficeKey] = h.Metadata["msOfficeKey"]
		cols[ColMSWindowsKey] = h.Metadata["msWindowsKey"]
		cols[ColRole] = h.Metadata["role"]
		if h.PXEFlag() {
			cols[ColPXEFlag] = "1"
		} else {
			cols[ColPXEFlag] = "0"
		}
		b.WriteString(strings.Join(cols, ";"))
		b.WriteString("\n")
	}
	return b.String()
}
