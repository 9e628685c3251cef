// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// Manager serializes every theme.txt and icon/logo write behind one
// mutex, since LINBO reads theme.txt and the icon tree as a unit and a
// torn combination of old/new files would be visible otherwise.
type Manager struct {
	mu       sync.Mutex
	linboDir string
}

// NewManager constructs a theme Manager rooted at linboDir.
func NewManager(linboDir string) *Manager {
	return &Manager{linboDir: linboDir}
}

func (m *Manager) iconDir() string {
	return filepath.Join(m.linboDir, "boot", "grub", "themes", "linbo", "icons")
}

// UpdateThemeConfig validates and writes a full theme configuration
// replacement, holding the manager's mutex for the whole operation.
func (m *Manager) UpdateThemeConfig(c model.ThemeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidateIconFilename(c.LogoFilename) {
		return fmt.Errorf("invalid logo filename %q", c.LogoFilename)
	}
	c.TimeoutText = SanitizeTimeoutText(c.TimeoutText)

	return DeployThemeTxt(m.linboDir, c)
}

// UpdateIcon validates image data and writes it, byte-identical, under
// all four suffixed filenames derived from base, holding the manager's
// mutex so a concurrent theme.txt write can never observe a
// half-written icon set.
func (m *Manager) UpdateIcon(base string, data []byte, isLogo bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidateBaseName(base) {
		return fmt.Errorf("invalid icon base name %q", base)
	}
	var err error
	if isLogo {
		_, err = ValidateLogo(data)
	} else {
		_, err = ValidateIcon(data)
	}
	if err != nil {
		return fmt.Errorf("validating %s: %w", base, err)
	}

	for _, filename := range IconFilenames(base) {
		path := filepath.Join(m.iconDir(), filename)
		if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", filename, err)
		}
	}
	return nil
}

// DeleteIcon removes all four suffixed files for base, refusing to
// delete any default icon.
func (m *Manager) DeleteIcon(base string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if IsDefaultIcon(base) {
		return fmt.Errorf("%q is a default icon and cannot be deleted", base)
	}
	if !ValidateBaseName(base) {
		return fmt.Errorf("invalid icon base name %q", base)
	}
	for _, filename := range IconFilenames(base) {
		path := filepath.Join(m.iconDir(), filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}
