// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "file.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("hello"), 0o644))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "f"), []byte("x"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Name())
}

func TestReplaceSymlinkCreatesAndRepoints(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")

	require.NoError(t, ReplaceSymlink(link, "target-a"))
	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "target-a", got)

	require.NoError(t, ReplaceSymlink(link, "target-b"))
	got, err = os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "target-b", got)
}

func TestReplaceSymlinkIdempotent(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")

	require.NoError(t, ReplaceSymlink(link, "target"))
	require.NoError(t, ReplaceSymlink(link, "target"))

	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "target", got)
}
