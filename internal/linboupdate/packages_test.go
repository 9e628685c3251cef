// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package linboupdate

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureIndex = `Package: linbo
Version: 19.04.1-1
Architecture: amd64
Filename: pool/linbo_19.04.1-1_amd64.deb
Size: 123456
SHA256: abc123
Description: LINBO client
 continuation line one
 continuation line two

Package: linbo
Version: 19.10.0-1
Architecture: amd64
Filename: pool/linbo_19.10.0-1_amd64.deb
Size: 200000
SHA256: def456

Package: linbo
Version: 99.0
Architecture: i386
Filename: pool/linbo_99.0_i386.deb
Size: 1
SHA256: ignored

Package: other-pkg
Version: 5.0
Architecture: amd64
Filename: pool/other.deb
Size: 1
SHA256: zzz
`

func TestParsePackagesIndexParsesContinuationLines(t *testing.T) {
	stanzas, err := ParsePackagesIndex(fixtureIndex)
	require.NoError(t, err)
	require.Len(t, stanzas, 4)

	assert.Equal(t, "linbo", stanzas[0].get("Package"))
	assert.Equal(t, "19.04.1-1", stanzas[0].get("Version"))
	assert.Contains(t, stanzas[0].get("Description"), "continuation line one")
	assert.Contains(t, stanzas[0].get("Description"), "continuation line two")
}

func TestDecodePackagesBodyPassesThroughPlainText(t *testing.T) {
	out, err := DecodePackagesBody([]byte(fixtureIndex))
	require.NoError(t, err)
	assert.Equal(t, fixtureIndex, string(out))
}

func TestDecodePackagesBodyDecompressesGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(fixtureIndex))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	out, err := DecodePackagesBody(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, fixtureIndex, string(out))
}

func TestSelectCandidatePicksNewestAllowedArch(t *testing.T) {
	stanzas, err := ParsePackagesIndex(fixtureIndex)
	require.NoError(t, err)

	cand, ok := SelectCandidate(stanzas, "linbo")
	require.True(t, ok)
	assert.Equal(t, "19.10.0-1", cand.Version, "i386 stanza with a higher version must be excluded")
	assert.EqualValues(t, 200000, cand.PackageSize)
	assert.Equal(t, "def456", cand.SHA256)
}

func TestSelectCandidateNoMatch(t *testing.T) {
	stanzas, err := ParsePackagesIndex(fixtureIndex)
	require.NoError(t, err)

	_, ok := SelectCandidate(stanzas, "does-not-exist")
	assert.False(t, ok)
}

func TestProbeUpdateAvailable(t *testing.T) {
	stanzas, err := ParsePackagesIndex(fixtureIndex)
	require.NoError(t, err)

	result := Probe("19.04.1-1", stanzas, "linbo")
	assert.True(t, result.UpdateAvailable)
	assert.Equal(t, "19.10.0-1", result.Available)
	assert.Equal(t, "19.04.1-1", result.Installed)
}

func TestProbeAlreadyUpToDate(t *testing.T) {
	stanzas, err := ParsePackagesIndex(fixtureIndex)
	require.NoError(t, err)

	result := Probe("19.10.0-1", stanzas, "linbo")
	assert.False(t, result.UpdateAvailable)
}

func TestProbeUnreachableRepoHasNoAvailableVersion(t *testing.T) {
	result := Probe("19.04.1-1", nil, "linbo")
	assert.False(t, result.UpdateAvailable)
	assert.Equal(t, "", result.Available)
}
