// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package index owns the relational store: schema, prepared statements,
// triggers, and migrations (spec §4.4). It is built on
// zombiezen.com/go/sqlite and sqlitex the way
// cmd/bureau-telemetry-service/store.go and lib/sqlitepool use them in
// the wider module this package is grounded on.
package index

// SizeUnlimited mirrors shard.SizeUnlimited; it is the default
// shard_size_limit stored in config when none is given.
const SizeUnlimited = int64(1<<63 - 1)

// SchemaVersionMajor and SchemaVersionMinor identify the on-disk schema
// this package reads and writes. A major mismatch means the archive
// must be migrated before this package can open it; a minor mismatch
// is a backward-compatible skew that only produces a warning.
const (
	SchemaVersionMajor = 0
	SchemaVersionMinor = 3
)

// EntryInfo carries the fields common to files and directories.
type EntryInfo struct {
	Path    string
	Mode    *uint32
	UID     *uint32
	GID     *uint32
	MtimeNs *int64
}

// FileInfo describes a file entry: its location in the shards plus
// metadata. It is used both for rows read back from the index and for
// new rows about to be inserted.
type FileInfo struct {
	EntryInfo
	Shard  int
	Offset int64
	Size   int64
	Crc32c *uint32
}

// End returns the file's end position within its shard.
func (f FileInfo) End() int64 { return f.Offset + f.Size }

// DirInfo describes a directory entry: its aggregate statistics plus
// metadata.
type DirInfo struct {
	EntryInfo
	NumSubdirs   int64
	NumFiles     int64
	SizeTree     int64
	NumFilesTree int64
}

// NumEntries returns the total number of direct entries (subdirs plus
// files) in the directory.
func (d DirInfo) NumEntries() int64 { return d.NumSubdirs + d.NumFiles }

// Order selects the iteration order for listings and scans. It is a
// bitmask: ADDRESS/PATH/RANDOM select the sort key, DESC additionally
// reverses it. The zero value, Any, leaves ordering up to SQLite.
type Order int

const (
	Any    Order = 0
	Random Order = 1 << 0
	Address Order = 1 << 1
	Path   Order = 1 << 2
	Desc   Order = 1 << 3
)

// orderByClause returns the SQL ORDER BY clause for o, or "" for Any.
func (o Order) orderByClause() string {
	switch {
	case o&Address != 0 && o&Desc != 0:
		return " ORDER BY shard DESC, offset DESC"
	case o&Address != 0:
		return " ORDER BY shard, offset"
	case o&Path != 0 && o&Desc != 0:
		return " ORDER BY path DESC"
	case o&Path != 0:
		return " ORDER BY path"
	case o&Random != 0:
		return " ORDER BY RANDOM()"
	default:
		return ""
	}
}
