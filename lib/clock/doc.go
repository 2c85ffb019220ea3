// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable source of the current time for
// the one place barecat needs it: stamping mtime_ns on newly inserted
// or updated file and directory entries (spec §3's metadata columns).
//
// Production code takes a Clock field instead of calling time.Now
// directly. Real() provides the standard library's clock; Fake()
// provides a clock pinned to a caller-chosen instant, so tests can
// assert on an exact mtime_ns rather than "close to time.Now()".
//
//	bc, err := barecat.Open(ctx, barecat.Config{
//	    BasePath: path,
//	    Mode:     barecat.ReadWriteMode,
//	    Clock:    clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
//	})
package clock
