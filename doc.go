// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package barecat implements the barecat archive engine: a path-addressed
// store for very large sets of small binary blobs, backed by one or more
// append-only shard files and a SQLite relational index.
//
// An archive is opened with [Open] and accessed through the [Barecat]
// facade, which composes the shard store and the index behind a single
// mapping- and filesystem-style API: [Barecat.Put]/[Barecat.Get] for
// whole-value access, [Barecat.Open] for streaming reads with seek, and
// [Barecat.Listdir]/[Barecat.Walk]/[Barecat.Glob] for directory-tree
// traversal.
package barecat
