// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationStatusIsTerminal(t *testing.T) {
	terminal := []OperationStatus{OpCompleted, OpCompletedWithErrors, OpFailed, OpCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	nonTerminal := []OperationStatus{OpPending, OpRunning, OpCancelling, OpRetrying}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}
