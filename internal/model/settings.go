// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package model

// SettingKind tags the validation/redaction behavior of a Setting: one
// tagged union of kinds instead of per-key polymorphism.
type SettingKind string

const (
	KindString       SettingKind = "string"
	KindInt          SettingKind = "int"
	KindURL          SettingKind = "url"
	KindIPv4         SettingKind = "ipv4"
	KindPasswordHash SettingKind = "password-bcrypt"
	KindDerivedHash  SettingKind = "derived-hash"
)

// SettingVisibility controls how a Setting's value is displayed.
type SettingVisibility string

const (
	VisibilityPlain     SettingVisibility = "plain"
	VisibilityMasked    SettingVisibility = "masked"
	VisibilityWriteOnly SettingVisibility = "writeOnly"
	VisibilityReadOnly  SettingVisibility = "readOnly"
)

// SettingSource reports where a resolved setting value came from.
type SettingSource string

const (
	SourceDefault SettingSource = "default"
	SourceEnv     SettingSource = "env"
	SourceStore   SettingSource = "store"
)

// SettingDescriptor declares a setting's kind, visibility, default, and
// backing environment variable.
type SettingDescriptor struct {
	Key        string
	Kind       SettingKind
	Visibility SettingVisibility
	EnvVar     string
	Default    string
}

// SettingRow is one row of the getAll display.
type SettingRow struct {
	Key          string        `json:"key"`
	Source       SettingSource `json:"source"`
	IsSet        bool          `json:"isSet"`
	Value        string        `json:"value,omitempty"`
	ValueMasked  string        `json:"valueMasked,omitempty"`
}

// ThemeConfig is the bounded theme.txt mapping.
type ThemeConfig struct {
	DesktopColor   string `json:"desktopColor"`
	ItemColor      string `json:"itemColor"`
	SelectedColor  string `json:"selectedColor"`
	IconWidth      int    `json:"iconWidth"`
	IconHeight     int    `json:"iconHeight"`
	TitleFont      string `json:"titleFont"`
	ItemFont       string `json:"itemFont"`
	TimeoutText    string `json:"timeoutText"`
	LogoFilename   string `json:"logoFilename"`
	TopMargin      int    `json:"topMargin"`
	BottomMargin   int    `json:"bottomMargin"`
	LeftMargin     int    `json:"leftMargin"`
	ItemHeight     int    `json:"itemHeight"`
}

// DefaultThemeConfig returns the built-in theme defaults.
func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{
		DesktopColor:  "#2a4457",
		ItemColor:     "#cccccc",
		SelectedColor: "#ffffff",
		IconWidth:     36,
		IconHeight:    36,
		TitleFont:     "DejaVu Sans Bold 16",
		ItemFont:      "DejaVu Sans 12",
		TimeoutText:   "Booting in %d seconds",
		LogoFilename:  "logo.png",
		TopMargin:     10,
		BottomMargin:  10,
		LeftMargin:    10,
		ItemHeight:    32,
	}
}
