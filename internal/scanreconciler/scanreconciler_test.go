// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package scanreconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openchami/linbo-dc/internal/model"
)

func TestDecideOfflineObservationNeverWrites(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, LastOnlineAt: now.Add(-10 * time.Minute)}
	obs := Observation{IsOnline: false, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionNoUpdate, Decide(h, obs, DefaultTimeoutSeconds, now))
}

// A host currently online with detectedOs=linbo seen again 30s later
// must produce no write and no event.
func TestDecideHostScanNoOp(t *testing.T) {
	now := time.Now()
	h := model.Host{
		Status:       model.HostOnline,
		DetectedOS:   "linbo",
		LastOnlineAt: now.Add(-30 * time.Second),
	}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionNoUpdate, Decide(h, obs, 600, now))
}

func TestDecideOfflineToOnlineTransitionChangesStatus(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOffline}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionStatusChanged, Decide(h, obs, DefaultTimeoutSeconds, now))
}

func TestDecideUnknownToOnlineTransitionChangesStatus(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostUnknown}
	obs := Observation{IsOnline: true, ObservedAt: now}
	assert.Equal(t, DecisionStatusChanged, Decide(h, obs, DefaultTimeoutSeconds, now))
}

func TestDecideDetectedOSChangeWhileOnlineChangesStatus(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, DetectedOS: "win11", LastOnlineAt: now.Add(-5 * time.Second)}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionStatusChanged, Decide(h, obs, DefaultTimeoutSeconds, now))
}

func TestDecideEmptyDetectedOSObservationDoesNotCountAsChange(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, DetectedOS: "win11", LastOnlineAt: now.Add(-5 * time.Second)}
	obs := Observation{IsOnline: true, DetectedOS: "", ObservedAt: now}
	assert.Equal(t, DecisionNoUpdate, Decide(h, obs, DefaultTimeoutSeconds, now))
}

func TestDecideBumpsWhenLastOnlineAtUnset(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, DetectedOS: "linbo"}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionBump, Decide(h, obs, DefaultTimeoutSeconds, now))
}

func TestDecideThrottlesWithinHalfTimeoutWindow(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, DetectedOS: "linbo", LastOnlineAt: now.Add(-100 * time.Second)}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	// TIMEOUT=600 -> half window is 300s; 100s ago is within it.
	assert.Equal(t, DecisionNoUpdate, Decide(h, obs, 600, now))
}

func TestDecideBumpsAfterHalfTimeoutWindowElapses(t *testing.T) {
	now := time.Now()
	h := model.Host{Status: model.HostOnline, DetectedOS: "linbo", LastOnlineAt: now.Add(-301 * time.Second)}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionBump, Decide(h, obs, 600, now))
}

func TestDecideNonPositiveTimeoutFallsBackToDefault(t *testing.T) {
	now := time.Now()
	// With a literal zero timeout the half-window would be zero and every
	// observation would bump; the default keeps a 300s throttle window.
	h := model.Host{Status: model.HostOnline, DetectedOS: "linbo", LastOnlineAt: now.Add(-100 * time.Second)}
	obs := Observation{IsOnline: true, DetectedOS: "linbo", ObservedAt: now}
	assert.Equal(t, DecisionNoUpdate, Decide(h, obs, 0, now))
}

func TestIsStaleUsesBothTimestampsWhenBothPresent(t *testing.T) {
	now := time.Now()
	timeout := 600 * time.Second

	fresh := now.Add(-100 * time.Second).Format(time.RFC3339)
	stale := now.Add(-700 * time.Second).Format(time.RFC3339)

	assert.False(t, IsStale(fresh, fresh, timeout, now))
	assert.False(t, IsStale(stale, fresh, timeout, now), "lastOnlineAt still fresh: not stale")
	assert.False(t, IsStale(fresh, stale, timeout, now), "lastSeen still fresh: not stale")
	assert.True(t, IsStale(stale, stale, timeout, now))
}

func TestIsStaleFallsBackToLastSeenWhenLastOnlineAtUnset(t *testing.T) {
	now := time.Now()
	timeout := 600 * time.Second

	assert.True(t, IsStale(now.Add(-700*time.Second).Format(time.RFC3339), "", timeout, now))
	assert.False(t, IsStale(now.Add(-100*time.Second).Format(time.RFC3339), "", timeout, now))
	assert.False(t, IsStale("", "", timeout, now))
}
