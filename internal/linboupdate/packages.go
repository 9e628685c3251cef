// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package linboupdate

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
)

// PackageStanza is one parsed Debian control stanza from a Packages
// index.
type PackageStanza struct {
	Fields map[string]string
}

func (s PackageStanza) get(key string) string { return s.Fields[key] }

// ParsePackagesIndex parses an APT Packages index body. Stanzas are separated by blank lines; a continuation line
// starts with a space or tab and is appended to the previous field's
// value with a newline.
func ParsePackagesIndex(body string) ([]PackageStanza, error) {
	var stanzas []PackageStanza
	cur := PackageStanza{Fields: map[string]string{}}
	lastKey := ""

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(cur.Fields) > 0 {
				stanzas = append(stanzas, cur)
			}
			cur = PackageStanza{Fields: map[string]string{}}
			lastKey = ""
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			cur.Fields[lastKey] += "\n" + strings.TrimPrefix(line, " ")
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		cur.Fields[key] = strings.TrimSpace(value)
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning packages index: %w", err)
	}
	if len(cur.Fields) > 0 {
		stanzas = append(stanzas, cur)
	}
	return stanzas, nil
}

// DecodePackagesBody decompresses a gzip-encoded Packages index if the
// magic bytes indicate gzip, else returns data as-is.
func DecodePackagesBody(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		gr, err := gzip.NewReader(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("opening gzip packages index: %w", err)
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("decompressing packages index: %w", err)
		}
		return out, nil
	}
	return data, nil
}

// Candidate is the version, size, checksum and filename of the winning
// package stanza.
type Candidate struct {
	Version     string
	PackageSize int64
	SHA256      string
	Filename    string
}

var allowedArch = map[string]bool{"amd64": true, "all": true}

// SelectCandidate filters stanzas to those matching packageName and an
// allowed architecture, then returns the newest by Debian version
// comparison. ok is false if no stanza matches.
func SelectCandidate(stanzas []PackageStanza, packageName string) (Candidate, bool) {
	var best Candidate
	found := false
	for _, s := range stanzas {
		if s.get("Package") != packageName {
			continue
		}
		if !allowedArch[s.get("Architecture")] {
			continue
		}
		ver := s.get("Version")
		if !found || CompareVersions(ver, best.Version) > 0 {
			best = Candidate{
				Version:     ver,
				Filename:    s.get("Filename"),
				SHA256:      s.get("SHA256"),
				PackageSize: parseSize(s.get("Size")),
			}
			found = true
		}
	}
	return best, found
}

func parseSize(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// ProbeResult is the full probe response.
type ProbeResult struct {
	Installed       string
	Available       string
	UpdateAvailable bool
	PackageSize     int64
	SHA256          string
	Filename        string
}

// Probe combines the installed version with the best available
// candidate. If stanzas is nil (repo unreachable), Available is empty
// and UpdateAvailable is false.
func Probe(installed string, stanzas []PackageStanza, packageName string) ProbeResult {
	result := ProbeResult{Installed: installed}
	cand, ok := SelectCandidate(stanzas, packageName)
	if !ok {
		return result
	}
	result.Available = cand.Version
	result.PackageSize = cand.PackageSize
	result.SHA256 = cand.SHA256
	result.Filename = cand.Filename
	result.UpdateAvailable = CompareVersions(cand.Version, installed) > 0
	return result
}
