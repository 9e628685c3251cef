// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package sync implements the incremental sync engine: it
// pulls cursor-based deltas from the upstream authority and materializes
// them atomically into on-disk boot files, the KV cache, and the GRUB
// configuration tree.
package sync
