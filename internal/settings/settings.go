// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package settings resolves and persists runtime-tunable configuration
// values with layered precedence and kind-specific validation.
package settings

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/store"
)

// Registry declares every setting the core recognizes.
var Registry = []model.SettingDescriptor{
	{Key: "api_url", Kind: model.KindURL, Visibility: model.VisibilityPlain, EnvVar: "API_URL"},
	{Key: "internal_api_key", Kind: model.KindString, Visibility: model.VisibilityWriteOnly, EnvVar: "INTERNAL_API_KEY"},
	{Key: "linbo_server_ip", Kind: model.KindIPv4, Visibility: model.VisibilityPlain, EnvVar: "LINBO_SERVER_IP"},
	{Key: "sync_interval", Kind: model.KindInt, Visibility: model.VisibilityPlain, EnvVar: "SYNC_INTERVAL", Default: "300"},
	{Key: "scan_timeout", Kind: model.KindInt, Visibility: model.VisibilityPlain, Default: "600"},
	{Key: "admin_password", Kind: model.KindPasswordHash, Visibility: model.VisibilityWriteOnly, EnvVar: "ADMIN_PASSWORD"},
	{Key: "admin_password_hash", Kind: model.KindDerivedHash, Visibility: model.VisibilityReadOnly},
}

func descriptor(key string) (model.SettingDescriptor, bool) {
	for _, d := range Registry {
		if d.Key == key {
			return d, true
		}
	}
	return model.SettingDescriptor{}, false
}

// Resolver resolves and caches setting values with the layered precedence
// in-memory cache > durable store > env var > default.
type Resolver struct {
	store *store.Store
	bus   *eventbus.Bus

	mu    sync.RWMutex
	cache map[string]string
}

// New constructs a Resolver.
func New(st *store.Store, bus *eventbus.Bus) *Resolver {
	return &Resolver{store: st, bus: bus, cache: make(map[string]string)}
}

// Get resolves one setting's value via the layered precedence chain.
// Password-kind keys are never readable, not even from the environment
// layer; CheckAdminPassword is the only sanctioned way to use them.
func (r *Resolver) Get(ctx context.Context, key string) (string, model.SettingSource, error) {
	if d, found := descriptor(key); found && d.Kind == model.KindPasswordHash {
		return "", "", fmt.Errorf("setting %s is write-only and cannot be read", key)
	}

	r.mu.RLock()
	if v, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return v, model.SourceStore, nil
	}
	r.mu.RUnlock()

	v, ok, err := r.store.GetString(ctx, store.SettingKey(key))
	if err != nil {
		return "", "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	if ok {
		r.mu.Lock()
		r.cache[key] = v
		r.mu.Unlock()
		return v, model.SourceStore, nil
	}

	d, found := descriptor(key)
	if found && d.EnvVar != "" {
		if v, ok := os.LookupEnv(d.EnvVar); ok {
			return v, model.SourceEnv, nil
		}
	}
	if found {
		return d.Default, model.SourceDefault, nil
	}
	return "", "", fmt.Errorf("unknown setting: %s", key)
}

// Validate applies the kind-specific validator for a setting's proposed
// value.
func Validate(kind model.SettingKind, value string) error {
	switch kind {
	case model.KindURL:
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid url: %q", value)
		}
	case model.KindIPv4:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid ipv4 address: %q", value)
		}
	case model.KindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid non-negative integer: %q", value)
		}
	case model.KindPasswordHash:
		if len(value) < 4 {
			return fmt.Errorf("password must be at least 4 characters")
		}
	}
	return nil
}

// Set validates and persists a setting, updating the in-memory cache and
// publishing settings.changed. Passwords are bcrypt-hashed
// before storage; the hash is written under "<key>_hash" and the plain
// value is never persisted.
func (r *Resolver) Set(ctx context.Context, key, value string) error {
	d, found := descriptor(key)
	if !found {
		return fmt.Errorf("unknown setting: %s", key)
	}
	if d.Visibility == model.VisibilityReadOnly || d.Kind == model.KindDerivedHash {
		return fmt.Errorf("setting %s is derived and cannot be written directly", key)
	}
	if err := Validate(d.Kind, value); err != nil {
		return fmt.Errorf("validating %s: %w", key, err)
	}

	storedKey, storedValue := key, value
	if d.Kind == model.KindPasswordHash {
		hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", key, err)
		}
		storedKey = key + "_hash"
		storedValue = string(hash)
	}

	if err := r.store.SetString(ctx, store.SettingKey(storedKey), storedValue); err != nil {
		return fmt.Errorf("persisting setting %s: %w", storedKey, err)
	}
	r.mu.Lock()
	r.cache[storedKey] = storedValue
	delete(r.cache, key) // drop any stale plain-value cache entry
	r.mu.Unlock()

	r.bus.Publish(eventbus.TopicSettingsChanged, map[string]any{"key": key})
	return nil
}

// CheckAdminPassword verifies candidate against the stored bcrypt hash,
// falling back to ADMIN_PASSWORD plain-text comparison when no hash has
// ever been set.
func (r *Resolver) CheckAdminPassword(ctx context.Context, candidate string) (bool, error) {
	hash, ok, err := r.store.GetString(ctx, store.SettingKey("admin_password_hash"))
	if err != nil {
		return false, fmt.Errorf("reading admin password hash: %w", err)
	}
	if ok && hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil, nil
	}
	if envPass, ok := os.LookupEnv("ADMIN_PASSWORD"); ok {
		return candidate == envPass, nil
	}
	return false, nil
}

// GetAll renders the full settings display with masked/writeOnly/
// readOnly handling.
func (r *Resolver) GetAll(ctx context.Context) ([]model.SettingRow, error) {
	rows := make([]model.SettingRow, 0, len(Registry))
	for _, d := range Registry {
		if d.Visibility == model.VisibilityWriteOnly {
			continue // getAll returns one row per non-writeOnly key
		}
		value, source, err := r.Get(ctx, d.Key)
		if err != nil {
			return nil, err
		}
		row := model.SettingRow{Key: d.Key, Source: source, IsSet: value != ""}
		switch {
		case d.Kind == model.KindDerivedHash:
			// hashed keys omit both Value and ValueMasked.
		case d.Visibility == model.VisibilityPlain:
			row.Value = value
		case d.Visibility == model.VisibilityMasked:
			row.ValueMasked = maskValue(value)
		case d.Visibility == model.VisibilityReadOnly:
			row.Value = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
