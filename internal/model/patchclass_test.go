// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceRuleHasSubsystem(t *testing.T) {
	assert.True(t, DeviceRule{Subvendor: "1028", Subdevice: "0123"}.HasSubsystem())
	assert.False(t, DeviceRule{Subvendor: "1028"}.HasSubsystem())
	assert.False(t, DeviceRule{}.HasSubsystem())
}

func TestIgnoredCategorySet(t *testing.T) {
	m := DriverMap{IgnoredCategories: []string{"bluetooth", "usb"}}
	set := m.IgnoredCategorySet()
	assert.True(t, set["bluetooth"])
	assert.True(t, set["usb"])
	assert.False(t, set["nic"])
}

func TestFilteredDeviceRulesOrdersSubsystemFirstAndDropsIgnored(t *testing.T) {
	m := DriverMap{
		IgnoredCategories: []string{"bluetooth"},
		DeviceRules: []DeviceRule{
			{Name: "nic-generic", Category: "nic", Vendor: "8086", Device: "1533"},
			{Name: "nic-specific", Category: "nic", Vendor: "8086", Device: "1533", Subvendor: "1028", Subdevice: "0600"},
			{Name: "bt", Category: "bluetooth", Vendor: "0a5c", Device: "21e8"},
			{Name: "gpu-specific", Category: "gpu", Vendor: "10de", Device: "1c03", Subvendor: "1458", Subdevice: "3679"},
		},
	}

	out := m.FilteredDeviceRules()
	require := assert.New(t)
	require.Len(out, 3)
	require.True(out[0].HasSubsystem())
	require.True(out[1].HasSubsystem())
	require.False(out[2].HasSubsystem())
	require.ElementsMatch([]string{"nic-specific", "gpu-specific"}, []string{out[0].Name, out[1].Name})
	require.Equal("nic-generic", out[2].Name)
}
