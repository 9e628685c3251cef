// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package store wraps the Redis-backed KV cache used across the core:
// host/config snapshots, single-flight flags, the settings store, and the
// operation index.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyRunning is returned by AcquireFlag when the flag is already
// held.
var ErrAlreadyRunning = errors.New("operation already in progress")

// Store is a thin, typed wrapper over a go-redis client.
type Store struct {
	rdb *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// AcquireFlag sets key to "true" with NX+TTL semantics, returning
// ErrAlreadyRunning if it is already set. Used by the sync engine and the
// LINBO updater for their named single-flight locks.
func (s *Store) AcquireFlag(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, key, "true", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// ReleaseFlag clears a flag set by AcquireFlag. Safe to call even if the
// flag already expired.
func (s *Store) ReleaseFlag(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// FlagSet reports whether key currently holds a truthy single-flight flag.
func (s *Store) FlagSet(ctx context.Context, key string) (bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetString stores a plain string value.
func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

// GetString retrieves a plain string value; ok is false when the key is
// absent.
func (s *Store) GetString(ctx context.Context, key string) (value string, ok bool, err error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Delete removes one or more keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// HSet stores a hash (used for cached Host/BootConfig snapshots).
func (s *Store) HSet(ctx context.Context, key string, fields map[string]any) error {
	return s.rdb.HSet(ctx, key, fields).Err()
}

// HGetAll retrieves a hash; an empty, non-nil map is returned for a
// missing key.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// SAdd adds members to a set (used for the host index).
func (s *Store) SAdd(ctx context.Context, key string, members ...any) error {
	return s.rdb.SAdd(ctx, key, members...).Err()
}

// SRem removes members from a set.
func (s *Store) SRem(ctx context.Context, key string, members ...any) error {
	return s.rdb.SRem(ctx, key, members...).Err()
}

// SMembers lists set members.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// Expire sets a TTL on an existing key, used by the operation index for
// lazy cleanup.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

// Exists reports whether key is present (used to detect TTL-expired
// operation records before returning them from a listing).
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Raw exposes the underlying client for subsystems that need the native
// Streams API (internal/jobstream).
func (s *Store) Raw() *redis.Client {
	return s.rdb
}

// Key-naming helpers, centralized so every subsystem agrees on the
// namespace.
func HostKey(id string) string           { return "host:" + id }
func HostHostnameKey(h string) string    { return "host:hostname:" + h }
func HostMACKey(mac string) string       { return "host:mac:" + mac }
func HostIndexKey() string               { return "sync:hosts" }
func SyncCursorKey() string               { return "sync:cursor" }
func SyncRunningKey() string              { return "sync:isRunning" }
func SyncLastSyncAtKey() string          { return "sync:lastSyncAt" }
func SyncLastErrorKey() string           { return "sync:lastError" }
func DHCPEtagKey() string                { return "sync:dhcp:etag" }
func SettingKey(key string) string       { return "settings:" + key }
func OperationKey(id string) string      { return "operation:" + id }
func OperationIndexKey() string          { return "operations:index" }
func LinboUpdateLockKey() string         { return "linbo:update:lock" }
