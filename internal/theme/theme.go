// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package theme manages the LINBO boot-menu theme: theme.txt emission,
// icon/logo PNG validation, and filename sanitization.
package theme

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// GenerateThemeTxt renders theme.txt deterministically: all 13
// ThemeConfig fields appear exactly once, with the fixed keys and
// formatting GRUB's theme loader expects (e.g. `desktop-color: "#2a4457"`,
// `item_color = "#cccccc"`, `icon_width = 36`), plus the structural
// `+ image { ... }`, `+ boot_menu { ... }`, and `+ label { id =
// "__timeout__" ... }` blocks.
func GenerateThemeTxt(c model.ThemeConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "desktop-color: %q\n", c.DesktopColor)
	fmt.Fprintf(&b, "title-font: %q\n", c.TitleFont)
	b.WriteString("\n")

	b.WriteString("+ image {\n")
	b.WriteString("  id = \"__logo__\"\n")
	fmt.Fprintf(&b, "  top = %d\n", c.TopMargin)
	fmt.Fprintf(&b, "  left = %d\n", c.LeftMargin)
	fmt.Fprintf(&b, "  file = %q\n", c.LogoFilename)
	b.WriteString("}\n\n")

	b.WriteString("+ boot_menu {\n")
	b.WriteString("  left = 15%\n")
	b.WriteString("  top = 30%\n")
	b.WriteString("  width = 70%\n")
	b.WriteString("  height = 50%\n")
	fmt.Fprintf(&b, "  item_font = %q\n", c.ItemFont)
	fmt.Fprintf(&b, "  item_color = %q\n", c.ItemColor)
	fmt.Fprintf(&b, "  selected_item_color = %q\n", c.SelectedColor)
	fmt.Fprintf(&b, "  icon_width = %d\n", c.IconWidth)
	fmt.Fprintf(&b, "  icon_height = %d\n", c.IconHeight)
	fmt.Fprintf(&b, "  item_height = %d\n", c.ItemHeight)
	b.WriteString("}\n\n")

	b.WriteString("+ label {\n")
	b.WriteString("  id = \"__timeout__\"\n")
	fmt.Fprintf(&b, "  text = %q\n", c.TimeoutText)
	fmt.Fprintf(&b, "  bottom = %d\n", c.BottomMargin)
	b.WriteString("  align = \"center\"\n")
	b.WriteString("}\n")

	return b.String()
}

// iconFilenameRe matches the accepted icon-filename form: a
// lowercase DNS-safe body followed by an optional "_start", "_syncstart",
// or "_newstart" suffix, ending in ".png".
var iconFilenameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(|_start|_syncstart|_newstart)\.png$`)

// iconBaseNameRe matches the same body without the required suffix
// variants, used to validate an icon's base name before any of the four
// suffixed files are derived from it.
var iconBaseNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateIconFilename reports whether name is an acceptable icon
// filename. Path separators are rejected
// first so "../x.png" never reaches the regex.
func ValidateIconFilename(name string) bool {
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return iconFilenameRe.MatchString(name)
}

// ValidateBaseName reports whether name is an acceptable icon base name
// (the filename body with no ".png" suffix and none of the four upload
// suffixes).
func ValidateBaseName(name string) bool {
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return iconBaseNameRe.MatchString(name)
}

// IconFilenames returns the four filenames an upload writes for base.
func IconFilenames(base string) []string {
	return []string{
		base + ".png",
		base + "_start.png",
		base + "_syncstart.png",
		base + "_newstart.png",
	}
}

// defaultIcons may never be deleted via the theme API.
var defaultIcons = map[string]bool{"ubuntu": true, "win10": true}

// IsDefaultIcon reports whether baseName is a protected built-in icon.
func IsDefaultIcon(baseName string) bool {
	return defaultIcons[strings.ToLower(baseName)]
}

// SanitizeTimeoutText strips CR, LF, NUL, `"`, and `\`, truncates to 200
// characters, and returns the default countdown text on empty input.
// Any "%d" placeholder in the input is preserved since none of the
// stripped characters can appear inside it.
func SanitizeTimeoutText(s string) string {
	if s == "" {
		return model.DefaultThemeConfig().TimeoutText
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\r', '\n', 0, '"', '\\':
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if r := []rune(out); len(r) > 200 {
		out = string(r[:200])
	}
	return out
}

// DeployThemeTxt writes theme.txt atomically under the LINBO theme
// directory.
func DeployThemeTxt(linboDir string, c model.ThemeConfig) error {
	path := filepath.Join(linboDir, "boot", "grub", "themes", "linbo", "theme.txt")
	return fsutil.WriteFileAtomic(path, []byte(GenerateThemeTxt(c)), 0o644)
}
