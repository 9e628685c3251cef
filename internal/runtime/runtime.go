// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package runtime bundles process-wide state (environment configuration,
// the event bus, a theme-write mutex) into one struct constructed once in
// main and passed explicitly. The KV client and the settings resolver are
// not part of it; main constructs them separately.
package runtime

import (
	"sync"

	"github.com/openchami/linbo-dc/internal/eventbus"
)

// Env is the set of environment variables the core reads.
// Zero values mean "not set"; callers apply their own defaults.
type Env struct {
	LinboDir              string
	LinboServerIP          string
	LinboSubnet           string
	LinboNetmask          string
	LinboGateway          string
	LinboDNS              string
	LinboDomain           string
	WebPort               string
	ConfigDir             string
	PatchclassBase        string
	ImageDir              string
	ProvisioningEnabled   bool
	ProvisioningDryRun    bool
	CSVCol0Source         string
	APIURL                string
	InternalAPIKey        string
	JWTSecret             string
	AdminPassword         string
	SyncInterval          string
}

// Runtime is the process-wide dependency bundle.
type Runtime struct {
	Env   Env
	Bus   *eventbus.Bus
	// ThemeMu is not used by theme.Manager, which serializes theme.txt
	// and icon writes with its own mutex.
	ThemeMu sync.Mutex
}

// New constructs a Runtime from an already-populated Env.
func New(env Env) *Runtime {
	return &Runtime{
		Env: env,
		Bus: eventbus.New(),
	}
}
