// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package shard

import "os"

// punchHole is a no-op on platforms without fallocate hole punching.
// Space is reclaimed only by defrag, as spec §4.3 allows.
func punchHole(f *os.File, offset, size int64) error {
	return nil
}
