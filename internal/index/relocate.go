// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// UpdateLocation rewrites a file entry's (shard, offset) without
// touching any other column. Used by defrag and reshard after moving
// a file's bytes, and by reshard after repacking into a new shard
// layout (spec §4.7/§4.8). Size and crc32c are unaffected since the
// bytes themselves are unchanged, only relocated.
func (idx *Index) UpdateLocation(ctx context.Context, path string, newShard int, newOffset int64) error {
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE files SET shard = ?, offset = ? WHERE path = ?`,
			&sqlitex.ExecOptions{Args: []any{newShard, newOffset, path}})
	})
}

// MaxEndByShard returns, for every shard referenced by at least one
// live file, the highest offset+size reached — the logical length
// defrag truncates shard files down to.
func (idx *Index) MaxEndByShard(ctx context.Context) (map[int]int64, error) {
	out := make(map[int]int64)
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT shard, MAX(offset + size) FROM files GROUP BY shard`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out[int(stmt.ColumnInt64(0))] = stmt.ColumnInt64(1)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("index: computing max end per shard: %w", err)
	}
	return out, nil
}
