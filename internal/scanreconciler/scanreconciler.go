// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package scanreconciler reconciles live network-scan observations
// against the cached host table, applying five strict throttling rules
// so a flapping host doesn't thrash status writes or event
// publication.
package scanreconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/store"
)

// DefaultTimeoutSeconds is the fallback staleness timeout when no
// setting override is present.
const DefaultTimeoutSeconds = 600

// Observation is one network-scan sighting of a host, keyed by MAC.
type Observation struct {
	MAC        string
	IsOnline   bool
	DetectedOS string
	ObservedAt time.Time
}

// Decision is the outcome of applying the five throttling rules to one
// Observation against the cached Host state.
type Decision int

const (
	// DecisionNoUpdate means no write and no broadcast (rules 1 and 3).
	DecisionNoUpdate Decision = iota
	// DecisionBump means lastOnlineAt/lastSeen are refreshed but no
	// broadcast happens (rule 4).
	DecisionBump
	// DecisionStatusChanged means status flips to online (or detectedOS
	// changes) and host.status.changed is broadcast (rules 2 and 5).
	DecisionStatusChanged
)

// Decide applies the five throttling rules to a single observation against
// the host's current cached state. It is pure and total: every input
// combination maps to exactly one Decision, with no side effects, so it
// can be exercised directly by tests without a store.
func Decide(h model.Host, obs Observation, timeoutSeconds int, now time.Time) Decision {
	if !obs.IsOnline {
		return DecisionNoUpdate // rule 1: a "not seen" result never writes
	}

	wasOffline := h.Status == model.HostOffline || h.Status == model.HostUnknown
	if wasOffline {
		return DecisionStatusChanged // rule 2
	}

	osChanged := obs.DetectedOS != "" && obs.DetectedOS != h.DetectedOS
	if osChanged {
		return DecisionStatusChanged // rule 5
	}

	// Host is currently online with the same detectedOS: rules 3/4 decide
	// whether the lastOnlineAt bump is due yet.
	if h.LastOnlineAt.IsZero() {
		return DecisionBump
	}
	if now.Sub(h.LastOnlineAt) < perCallHalfTimeout(timeoutSeconds) {
		return DecisionNoUpdate // rule 3: throttled, still within half-window
	}
	return DecisionBump // rule 4: window elapsed, refresh without broadcasting
}

// perCallHalfTimeout returns Timeout/2, recomputed fresh on every call
// rather than cached: a live
// setting change takes effect on the very next reconciliation pass.
func perCallHalfTimeout(timeoutSeconds int) time.Duration {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}
	return time.Duration(timeoutSeconds) * time.Second / 2
}

// Reconciler applies scan observations to the cached host table.
type Reconciler struct {
	store *store.Store
	bus   *eventbus.Bus
}

// New constructs a Reconciler.
func New(st *store.Store, bus *eventbus.Bus) *Reconciler {
	return &Reconciler{store: st, bus: bus}
}

// ReconcileObservation loads the cached host referenced by obs.MAC,
// applies Decide, and performs the resulting write/broadcast (or neither,
// for DecisionNoUpdate). An observation for a MAC with no cached host is
// ignored: the reconciler never creates hosts.
func (r *Reconciler) ReconcileObservation(ctx context.Context, obs Observation, timeoutSeconds int) (Decision, error) {
	id, ok, err := r.store.GetString(ctx, store.HostMACKey(obs.MAC))
	if err != nil {
		return DecisionNoUpdate, fmt.Errorf("looking up host by mac %s: %w", obs.MAC, err)
	}
	if !ok {
		return DecisionNoUpdate, nil
	}

	fields, err := r.store.HGetAll(ctx, store.HostKey(id))
	if err != nil {
		return DecisionNoUpdate, fmt.Errorf("reading cached host %s: %w", id, err)
	}
	if len(fields) == 0 {
		return DecisionNoUpdate, nil
	}

	h := model.Host{
		ID:         id,
		Status:     model.HostStatus(fields["status"]),
		DetectedOS: fields["detectedOs"],
	}
	if ts := fields["lastOnlineAt"]; ts != "" {
		if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
			h.LastOnlineAt = t
		}
	}

	decision := Decide(h, obs, timeoutSeconds, obs.ObservedAt)
	if decision == DecisionNoUpdate {
		return decision, nil
	}

	updates := map[string]any{
		"lastOnlineAt": obs.ObservedAt.Format(time.RFC3339),
		"lastSeen":     obs.ObservedAt.Format(time.RFC3339),
	}
	if decision == DecisionStatusChanged {
		updates["status"] = string(model.HostOnline)
		if obs.DetectedOS != "" {
			updates["detectedOs"] = obs.DetectedOS
		}
	}
	// host:<id>/host:hostname:<h>/host:mac:<mac> are the canonical store
	// entries here (not a derived cache layered on top), so the write
	// above already is the required invalidation.
	if err := r.store.HSet(ctx, store.HostKey(id), updates); err != nil {
		return decision, fmt.Errorf("writing host update for %s: %w", id, err)
	}

	if decision == DecisionStatusChanged {
		r.bus.Publish(eventbus.TopicHostStatusChanged, map[string]any{
			"hostId": id,
			"status": string(model.HostOnline),
		})
	}
	return decision, nil
}

// SweepStale marks hosts offline whose LastSeen AND LastOnlineAt are both
// older than the timeout, or whose LastOnlineAt is unset and LastSeen is
// older than the timeout.
func (r *Reconciler) SweepStale(ctx context.Context, timeoutSeconds int, now time.Time) (int, error) {
	ids, err := r.store.SMembers(ctx, store.HostIndexKey())
	if err != nil {
		return 0, fmt.Errorf("listing host index: %w", err)
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds * time.Second
	}

	marked := 0
	for _, id := range ids {
		fields, err := r.store.HGetAll(ctx, store.HostKey(id))
		if err != nil || len(fields) == 0 {
			continue
		}
		if model.HostStatus(fields["status"]) != model.HostOnline {
			continue
		}
		if !IsStale(fields["lastSeen"], fields["lastOnlineAt"], timeout, now) {
			continue
		}
		if err := r.store.HSet(ctx, store.HostKey(id), map[string]any{"status": string(model.HostOffline)}); err != nil {
			return marked, fmt.Errorf("marking host %s offline: %w", id, err)
		}
		r.bus.Publish(eventbus.TopicHostStatusChanged, map[string]any{
			"hostId": id,
			"status": string(model.HostOffline),
		})
		marked++
	}
	return marked, nil
}

// IsStale implements the staleness-sweep predicate as a pure
// function over the two RFC3339 timestamp strings cached for a host.
func IsStale(lastSeenStr, lastOnlineAtStr string, timeout time.Duration, now time.Time) bool {
	lastSeen, lastSeenErr := time.Parse(time.RFC3339, lastSeenStr)
	lastOnlineAt, lastOnlineErr := time.Parse(time.RFC3339, lastOnlineAtStr)

	if lastOnlineErr != nil {
		// lastOnlineAt is null: stale iff lastSeen is older than timeout.
		return lastSeenErr == nil && now.Sub(lastSeen) > timeout
	}
	if lastSeenErr != nil {
		return false
	}
	return now.Sub(lastSeen) > timeout && now.Sub(lastOnlineAt) > timeout
}
