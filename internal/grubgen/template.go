// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package grubgen

import "strings"

// Substitute replaces every "@@key@@" placeholder in tmpl with the
// corresponding value from fields. A key present with an empty value
// becomes the empty string; placeholders whose key is not in fields are
// left verbatim to aid debugging.
// Every occurrence of a
// known key is replaced.
func Substitute(tmpl string, fields map[string]string) string {
	out := tmpl
	for key, val := range fields {
		out = strings.ReplaceAll(out, "@@"+key+"@@", val)
	}
	return out
}
