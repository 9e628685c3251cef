// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchami/linbo-dc/internal/model"
)

func fixtureHosts() []model.Host {
	return []model.Host{
		{ID: "h1", Hostname: "pc01", MACAddress: "aa:bb:cc:dd:ee:01", ConfigID: "c1", RoomID: "r101"},
		{ID: "h2", Hostname: "pc02", MACAddress: "aa:bb:cc:dd:ee:02", ConfigID: "c1", RoomID: "r101"},
		{ID: "h3", Hostname: "pc03", MACAddress: "aa:bb:cc:dd:ee:03", ConfigID: "c2", RoomID: "r202"},
	}
}

func TestExtractIdentifierPrecedence(t *testing.T) {
	byHostname := map[string]model.Host{"pc01": {ID: "h1"}}
	byMAC := map[string]model.Host{"aa:bb:cc:dd:ee:02": {ID: "h2"}}
	byID := map[string]model.Host{"h3": {ID: "h3"}}

	h, ok := ExtractIdentifier("pc01", byHostname, byMAC, byID)
	require.True(t, ok)
	assert.Equal(t, "h1", h.ID)

	h, ok = ExtractIdentifier("AA:BB:CC:DD:EE:02", byHostname, byMAC, byID)
	require.True(t, ok)
	assert.Equal(t, "h2", h.ID)

	h, ok = ExtractIdentifier("h3", byHostname, byMAC, byID)
	require.True(t, ok)
	assert.Equal(t, "h3", h.ID)

	_, ok = ExtractIdentifier("nope", byHostname, byMAC, byID)
	assert.False(t, ok)
}

func TestResolveHostsRequiresExactlyOneFilter(t *testing.T) {
	_, err := ResolveHosts(TargetSpec{}, fixtureHosts(), nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = ResolveHosts(TargetSpec{Hostnames: []string{"pc01"}, Room: "r101"}, fixtureHosts(), nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestResolveHostsByHostname(t *testing.T) {
	out, err := ResolveHosts(TargetSpec{Hostnames: []string{"pc01", "pc02"}}, fixtureHosts(), nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestResolveHostsByHostnameConflict(t *testing.T) {
	hosts := fixtureHosts()
	hosts = append(hosts, model.Host{ID: "h4", Hostname: "pc01", MACAddress: "aa:bb:cc:dd:ee:04"})
	_, err := ResolveHosts(TargetSpec{Hostnames: []string{"pc01"}}, hosts, nil)
	assert.ErrorIs(t, err, ErrHostnameConflict)
}

func TestResolveHostsByHostnameRejectsUnsafeName(t *testing.T) {
	_, err := ResolveHosts(TargetSpec{Hostnames: []string{"-bad"}}, fixtureHosts(), nil)
	assert.Error(t, err)
}

func TestResolveHostsByMAC(t *testing.T) {
	out, err := ResolveHosts(TargetSpec{MACs: []string{"AA:BB:CC:DD:EE:03"}}, fixtureHosts(), nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "h3", out[0].ID)
}

func TestResolveHostsByGroupMatchesConfigName(t *testing.T) {
	names := map[string]string{"c1": "win11_efi_sata", "c2": "ubuntu22"}
	out, err := ResolveHosts(TargetSpec{Group: "WIN11_EFI_SATA"}, fixtureHosts(), names)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestResolveHostsByRoom(t *testing.T) {
	out, err := ResolveHosts(TargetSpec{Room: "r202"}, fixtureHosts(), nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "h3", out[0].ID)
}

func TestResolveHostsNoMatchReturnsError(t *testing.T) {
	_, err := ResolveHosts(TargetSpec{Room: "r999"}, fixtureHosts(), nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestDedupeByID(t *testing.T) {
	hosts := []model.Host{{ID: "h1"}, {ID: "h1"}, {ID: "h2"}}
	out := dedupeByID(hosts)
	assert.Len(t, out, 2)
}
