// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// TrailingFilePerShard returns, for every shard with at least one live
// file, the file occupying the highest offset in that shard — the
// candidate quick defrag considers moving into an earlier gap, since
// moving it is the only way to shrink that shard's tail without
// touching any other file.
func (idx *Index) TrailingFilePerShard(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+fileColumns+` FROM files f
			 WHERE f.offset = (SELECT MAX(offset) FROM files WHERE shard = f.shard)`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, scanFileRow(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("index: finding trailing files per shard: %w", err)
	}
	return out, nil
}
