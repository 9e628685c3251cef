// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package theme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openchami/linbo-dc/internal/model"
)

func TestGenerateThemeTxtIncludesEveryFieldOnce(t *testing.T) {
	c := model.DefaultThemeConfig()
	out := GenerateThemeTxt(c)

	for _, want := range []string{
		`desktop-color: "#2a4457"`,
		`title-font: "DejaVu Sans Bold 16"`,
		`id = "__logo__"`,
		`file = "logo.png"`,
		`item_color = "#cccccc"`,
		`selected_item_color = "#ffffff"`,
		`icon_width = 36`,
		`icon_height = 36`,
		`item_height = 32`,
		`id = "__timeout__"`,
		`text = "Booting in %d seconds"`,
		`bottom = 10`,
	} {
		assert.Contains(t, out, want)
		assert.Equal(t, 1, strings.Count(out, want), "field %q should appear exactly once", want)
	}
}

func TestValidateIconFilename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"bare", "win11.png", true},
		{"start suffix", "win11_start.png", true},
		{"syncstart suffix", "win11_syncstart.png", true},
		{"newstart suffix", "win11_newstart.png", true},
		{"uppercase rejected", "Win11.png", false},
		{"path traversal rejected", "../win11.png", false},
		{"backslash rejected", "win11\\x.png", false},
		{"missing extension", "win11", false},
		{"wrong extension", "win11.jpg", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateIconFilename(tc.in))
		})
	}
}

func TestValidateBaseName(t *testing.T) {
	assert.True(t, ValidateBaseName("win11"))
	assert.False(t, ValidateBaseName("../etc"))
	assert.False(t, ValidateBaseName("a/b"))
	assert.False(t, ValidateBaseName("a..b"))
}

func TestIconFilenames(t *testing.T) {
	got := IconFilenames("win11")
	assert.Equal(t, []string{"win11.png", "win11_start.png", "win11_syncstart.png", "win11_newstart.png"}, got)
}

func TestIsDefaultIcon(t *testing.T) {
	assert.True(t, IsDefaultIcon("ubuntu"))
	assert.True(t, IsDefaultIcon("WIN10"))
	assert.False(t, IsDefaultIcon("win11"))
}

func TestSanitizeTimeoutText(t *testing.T) {
	assert.Equal(t, model.DefaultThemeConfig().TimeoutText, SanitizeTimeoutText(""))

	dirty := "line1\r\nline2\x00 with \"quotes\" and \\backslash and %d"
	clean := SanitizeTimeoutText(dirty)
	assert.NotContains(t, clean, "\r")
	assert.NotContains(t, clean, "\n")
	assert.NotContains(t, clean, "\x00")
	assert.NotContains(t, clean, `"`)
	assert.NotContains(t, clean, `\`)
	assert.Contains(t, clean, "%d")

	long := strings.Repeat("a", 300)
	assert.Len(t, SanitizeTimeoutText(long), 200)
}
