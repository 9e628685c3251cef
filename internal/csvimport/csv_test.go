// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package csvimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchami/linbo-dc/internal/model"
)

func TestParseCSVSkipsBlankAndCommentLines(t *testing.T) {
	body := "\n# a comment\nr101;pc01;win11_efi_sata;aa:bb:cc:dd:ee:01;10.0.1.1;;;;student;;1\n"
	rows, err := ParseCSV(body, Col0AsRoom)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r101", rows[0].Room)
	assert.Equal(t, "pc01", rows[0].Hostname)
	assert.Equal(t, "win11_efi_sata", rows[0].ConfigName)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", rows[0].MAC)
	assert.Equal(t, "10.0.1.1", rows[0].IP)
	assert.Equal(t, "student", rows[0].Role)
	assert.True(t, rows[0].PXEFlag)
}

func TestParseCSVDHCPSentinelLeavesIPEmpty(t *testing.T) {
	body := "r101;pc01;cfg;aa:bb:cc:dd:ee:01;DHCP;;;;;;1"
	rows, err := ParseCSV(body, Col0AsRoom)
	require.NoError(t, err)
	assert.Equal(t, "", rows[0].IP)
}

func TestParseCSVCol0IgnoredSkipsRoomColumn(t *testing.T) {
	body := "unused-room-value;pc01;cfg;aa:bb:cc:dd:ee:01;10.0.1.1;;;;;;1"
	rows, err := ParseCSV(body, Col0Ignored)
	require.NoError(t, err)
	assert.Equal(t, "", rows[0].Room)
}

func TestParseCSVDefaultsPXEFlagTrueWhenColumnEmpty(t *testing.T) {
	body := "r101;pc01;cfg;aa:bb:cc:dd:ee:01;10.0.1.1"
	rows, err := ParseCSV(body, Col0AsRoom)
	require.NoError(t, err)
	assert.True(t, rows[0].PXEFlag)
}

func TestParseCSVRejectsInvalidMAC(t *testing.T) {
	body := "r101;pc01;cfg;not-a-mac;10.0.1.1"
	_, err := ParseCSV(body, Col0AsRoom)
	assert.Error(t, err)
}

func TestParseCSVRejectsInvalidHostname(t *testing.T) {
	body := "r101;-bad;cfg;aa:bb:cc:dd:ee:01;10.0.1.1"
	_, err := ParseCSV(body, Col0AsRoom)
	assert.Error(t, err)
}

func TestParseCSVRejectsTooFewColumns(t *testing.T) {
	body := "r101;pc01"
	_, err := ParseCSV(body, Col0AsRoom)
	assert.Error(t, err)
}

func TestParseCol0Source(t *testing.T) {
	assert.Equal(t, Col0Ignored, ParseCol0Source("ignore"))
	assert.Equal(t, Col0Ignored, ParseCol0Source("IGNORE"))
	assert.Equal(t, Col0AsRoom, ParseCol0Source(""))
	assert.Equal(t, Col0AsRoom, ParseCol0Source("room"))
}

func TestExportCSVAlwaysPads15Columns(t *testing.T) {
	hosts := []model.Host{
		{Hostname: "pc01", MACAddress: "aa:bb:cc:dd:ee:01", RoomID: "r101", ConfigID: "c1"},
		{Hostname: "pc02", MACAddress: "aa:bb:cc:dd:ee:02", IPAddress: "10.0.1.2"},
	}
	hosts[1].SetPXEFlag(false)
	names := map[string]string{"c1": "win11_efi_sata"}

	out := ExportCSV(hosts, names)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)

	for _, line := range lines {
		assert.Len(t, strings.Split(line, ";"), ExportColumns)
	}
	assert.Contains(t, lines[0], "DHCP")
	assert.Contains(t, lines[0], "win11_efi_sata")
	assert.Equal(t, "1", strings.Split(lines[0], ";")[ColPXEFlag])
	assert.Equal(t, "0", strings.Split(lines[1], ";")[ColPXEFlag])
}
