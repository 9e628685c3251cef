// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package patchclass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidImageName(t *testing.T) {
	valid := []string{"win11.qcow2", "ubuntu-22.04.img", "base_v2.raw"}
	for _, name := range valid {
		assert.True(t, ValidImageName(name), name)
	}
	invalid := []string{"", "win11", "win11.iso", "../win11.qcow2", "a b.qcow2", "win11.qcow2.extra"}
	for _, name := range invalid {
		assert.False(t, ValidImageName(name), name)
	}
}

func TestGeneratePostsyncScriptSubstitution(t *testing.T) {
	script := GeneratePostsyncScript("office", "win11.qcow2")

	assert.Contains(t, script, "/srv/linbo/patchclass/office")
	assert.Contains(t, script, "win11.qcow2")
	assert.NotContains(t, script, "{{PATCHCLASS}}")
	assert.NotContains(t, script, "{{IMAGENAME}}")
}

func TestDeployPostsyncToImage(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, DeployPostsyncToImage(dir, "win11.qcow2", "office"))

	body, err := os.ReadFile(filepath.Join(dir, "win11.postsync"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "office")

	assert.Error(t, DeployPostsyncToImage(dir, "../../etc/passwd.raw", "office"))
	assert.Error(t, DeployPostsyncToImage(dir, "win11.iso", "office"))
}
