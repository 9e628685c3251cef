// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMagicPacketShape(t *testing.T) {
	packet, err := BuildMagicPacket("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.Len(t, packet, 6+16*6)

	for i := 0; i < 6; i++ {
		assert.Equal(t, byte(0xFF), packet[i])
	}

	mac := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	for rep := 0; rep < 16; rep++ {
		offset := 6 + rep*6
		assert.Equal(t, mac, packet[offset:offset+6])
	}
}

func TestBuildMagicPacketRejectsInvalidMAC(t *testing.T) {
	_, err := BuildMagicPacket("not-a-mac")
	assert.Error(t, err)
}
