// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPXEFlagDefaultsTrueWhenAbsent(t *testing.T) {
	h := Host{}
	assert.True(t, h.PXEFlag())

	h.SetPXEFlag(false)
	assert.False(t, h.PXEFlag())
	assert.Equal(t, "0", h.Metadata["pxeFlag"])

	h.SetPXEFlag(true)
	assert.True(t, h.PXEFlag())
	assert.Equal(t, "1", h.Metadata["pxeFlag"])
}

func TestIsPXEBootableRequiresFlagAndConfig(t *testing.T) {
	cases := []struct {
		name     string
		h        Host
		wantPXE  bool
	}{
		{"default flag with config", Host{ConfigID: "c1"}, true},
		{"default flag without config", Host{}, false},
		{"explicit off with config", Host{ConfigID: "c1", Metadata: map[string]string{"pxeFlag": "0"}}, false},
		{"explicit on without config", Host{Metadata: map[string]string{"pxeFlag": "1"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantPXE, tc.h.IsPXEBootable())
		})
	}
}

func TestNormalizeMAC(t *testing.T) {
	got, err := NormalizeMAC("AA:BB:CC:DD:EE:FF")
	assert.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got)

	_, err = NormalizeMAC("aa:bb:cc:dd:ee")
	assert.Error(t, err)

	_, err = NormalizeMAC("aa:bb:cc:dd:ee:zz")
	assert.Error(t, err)
}

func TestDashedMAC(t *testing.T) {
	assert.Equal(t, "aa-bb-cc-dd-ee-ff", DashedMAC("AA:BB:CC:DD:EE:FF"))
}

func TestHostValidate(t *testing.T) {
	t.Run("missing hostname", func(t *testing.T) {
		h := Host{MACAddress: "aa:bb:cc:dd:ee:ff"}
		assert.Error(t, h.Validate())
	})

	t.Run("invalid hostname", func(t *testing.T) {
		h := Host{Hostname: "-bad", MACAddress: "aa:bb:cc:dd:ee:ff"}
		assert.Error(t, h.Validate())
	})

	t.Run("invalid mac", func(t *testing.T) {
		h := Host{Hostname: "pc01", MACAddress: "not-a-mac"}
		assert.Error(t, h.Validate())
	})

	t.Run("pxe flag without config", func(t *testing.T) {
		h := Host{Hostname: "pc01", MACAddress: "aa:bb:cc:dd:ee:ff"}
		assert.Error(t, h.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		h := Host{Hostname: "pc01", MACAddress: "aa:bb:cc:dd:ee:ff", ConfigID: "c1"}
		assert.NoError(t, h.Validate())
	})

	t.Run("valid non-pxe without config", func(t *testing.T) {
		h := Host{Hostname: "printer01", MACAddress: "aa:bb:cc:dd:ee:ff"}
		h.SetPXEFlag(false)
		assert.NoError(t, h.Validate())
	})
}

func TestValidateHostname(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"ok", "pc-r101-01.school.local", true},
		{"empty", "", false},
		{"leading dash", "-pc01", false},
		{"leading digit ok", "101pc", true},
		{"contains space", "pc 01", false},
		{"underscore ok", "pc_01", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateHostname(tc.in))
		})
	}
}
