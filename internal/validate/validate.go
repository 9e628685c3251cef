// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package validate runs the go-playground/validator struct-tag checks
// declared on the model package's types, as a first pass ahead of each
// type's own hand-written Validate() method.
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// Struct runs struct-tag validation (`validate:"..."`) against s.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
