// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package shard

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// punchHole deallocates [offset, offset+size) without changing the
// file's apparent length, via fallocate(FALLOC_FL_PUNCH_HOLE |
// FALLOC_FL_KEEP_SIZE). Filesystems that don't support hole punching
// (or size == 0) make this a silent no-op, per spec §4.3: remove
// reclaims space lazily "when supported", not as a hard requirement.
func punchHole(f *os.File, offset, size int64) error {
	if size <= 0 {
		return nil
	}
	err := unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, size)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return nil
	}
	return err
}
