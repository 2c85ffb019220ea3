// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// UseTriggers reports whether live stats propagation is currently
// enabled.
func (idx *Index) UseTriggers(ctx context.Context) (bool, error) {
	var enabled bool
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		v, err := idx.configInt(ctx, conn, "use_triggers", 1)
		enabled = v != 0
		return err
	})
	return enabled, err
}

// SetUseTriggers toggles live stats propagation. Bulk importers set
// this to false for the duration of a large import, then call
// RecomputeStats once at the end (spec §4.5's bulk mode).
func (idx *Index) SetUseTriggers(ctx context.Context, enabled bool) error {
	value := 0
	if enabled {
		value = 1
	}
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE config SET value_int = ? WHERE key = 'use_triggers'`,
			&sqlitex.ExecOptions{Args: []any{value}})
	})
}

// ShardSizeLimit returns the currently configured shard size limit.
func (idx *Index) ShardSizeLimit(ctx context.Context) (int64, error) {
	var limit int64
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		v, err := idx.configInt(ctx, conn, "shard_size_limit", SizeUnlimited)
		limit = v
		return err
	})
	return limit, err
}

// SetShardSizeLimit updates the configured shard size limit; a limit
// of zero or less is stored as SizeUnlimited. The new limit is not
// checked against already-written shard lengths: shrinking below an
// in-use shard's logical length is allowed by spec §9 Open Question
// (b), and the file just stays in the larger shard until reshard runs.
func (idx *Index) SetShardSizeLimit(ctx context.Context, limit int64) error {
	if limit <= 0 {
		limit = SizeUnlimited
	}
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE config SET value_int = ? WHERE key = 'shard_size_limit'`,
			&sqlitex.ExecOptions{Args: []any{limit}})
	})
}

// LogicalShardEnd returns COALESCE(MAX(offset+size), 0) over every
// live file in shardNum: the first byte offset not claimed by any live
// file. Appends land at the shard file's physical end instead, which
// lies past this offset when bytes beyond it are no longer referenced.
func (idx *Index) LogicalShardEnd(ctx context.Context, shardNum int) (int64, error) {
	var end int64
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT COALESCE(MAX(offset + size), 0) FROM files WHERE shard = ?`,
			&sqlitex.ExecOptions{
				Args: []any{shardNum},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					end = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	return end, err
}

// NumUsedShards returns COALESCE(MAX(shard), -1) + 1: the count of
// shard numbers referenced by at least one live file.
func (idx *Index) NumUsedShards(ctx context.Context) (int, error) {
	var n int64
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT COALESCE(MAX(shard), -1) + 1 FROM files`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					n = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	return int(n), err
}

// SetSchemaVersion overwrites the recorded schema version. Used only
// by internal/migration after it has brought an archive's schema and
// stats up to date with SchemaVersionMajor/SchemaVersionMinor.
func (idx *Index) SetSchemaVersion(ctx context.Context, major, minor int) error {
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn,
			`UPDATE config SET value_int = ? WHERE key = 'schema_version_major'`,
			&sqlitex.ExecOptions{Args: []any{major}}); err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			`UPDATE config SET value_int = ? WHERE key = 'schema_version_minor'`,
			&sqlitex.ExecOptions{Args: []any{minor}})
	})
}

// ConfigString returns an arbitrary config key's text value, for keys
// outside the normative set (spec §6: "unknown keys are preserved
// verbatim").
func (idx *Index) ConfigString(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT value_text FROM config WHERE key = ?`,
			&sqlitex.ExecOptions{
				Args: []any{key},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					if !stmt.ColumnIsNull(0) {
						value = stmt.ColumnText(0)
						found = true
					}
					return nil
				},
			})
	})
	if err != nil {
		return "", false, fmt.Errorf("index: reading config[%s]: %w", key, err)
	}
	return value, found, nil
}

// SetConfigString writes an arbitrary config key's text value.
func (idx *Index) SetConfigString(ctx context.Context, key, value string) error {
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO config(key, value_text) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value_text = excluded.value_text`,
			&sqlitex.ExecOptions{Args: []any{key, value}})
	})
}
