// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openchami/linbo-dc/internal/model"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		kind    model.SettingKind
		value   string
		wantErr bool
	}{
		{"url ok", model.KindURL, "https://boot.school.local", false},
		{"url missing scheme", model.KindURL, "boot.school.local", true},
		{"url missing host", model.KindURL, "https://", true},
		{"ipv4 ok", model.KindIPv4, "10.0.0.13", false},
		{"ipv4 garbage", model.KindIPv4, "not-an-ip", true},
		{"ipv4 rejects v6", model.KindIPv4, "::1", true},
		{"int ok", model.KindInt, "300", false},
		{"int negative rejected", model.KindInt, "-1", true},
		{"int garbage", model.KindInt, "abc", true},
		{"password ok", model.KindPasswordHash, "s3cr3t", false},
		{"password too short", model.KindPasswordHash, "abc", true},
		{"string kind unchecked", model.KindString, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.kind, tc.value)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Derived/read-only rejection happens before any store access, so it is
// safe to exercise with a resolver holding nil store/bus.
func TestSetRejectsDerivedAndUnknownKeysBeforeTouchingStore(t *testing.T) {
	r := New(nil, nil)

	err := r.Set(context.Background(), "admin_password_hash", "whatever")
	assert.ErrorContains(t, err, "derived")

	err = r.Set(context.Background(), "no_such_setting", "x")
	assert.ErrorContains(t, err, "unknown setting")
}

// Reading admin_password is forbidden on every layer: even with
// ADMIN_PASSWORD set in the environment, Get must error instead of
// handing back the plaintext. The rejection happens before any store
// access, so a nil store is safe here too.
func TestGetRejectsPasswordKindKeys(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "super-secret")
	r := New(nil, nil)

	_, _, err := r.Get(context.Background(), "admin_password")
	assert.ErrorContains(t, err, "write-only")
}

func TestSetRejectsInvalidValueBeforeTouchingStore(t *testing.T) {
	r := New(nil, nil)
	err := r.Set(context.Background(), "linbo_server_ip", "not-an-ip")
	assert.Error(t, err)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "****", maskValue("abcd"))
	assert.Equal(t, strings.Repeat("*", 8)+"cret", maskValue("s3cr3tsecret"))
}

func TestRegistryAdminPasswordHashIsDerivedAndReadOnly(t *testing.T) {
	d, ok := descriptor("admin_password_hash")
	assert.True(t, ok)
	assert.Equal(t, model.KindDerivedHash, d.Kind)
	assert.Equal(t, model.VisibilityReadOnly, d.Visibility)
}
