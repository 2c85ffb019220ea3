// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Gap describes a byte range within a shard not referenced by any live
// file entry (spec §4.7's gap discovery).
type Gap struct {
	Shard  int
	Offset int64
	Size   int64
}

// gapQuery is the window-function gap discovery pattern grounded on
// the original index's find_space: for every shard, order files by
// offset and compute the distance to the next file's offset (or to
// the shard size limit, for the last file in a shard) via LEAD(). A
// positive distance beyond the file's own end is a gap. One extra row
// per shard covers the space between offset 0 and its first file.
const gapQuery = `
WITH ends(shard, offset, gap_end) AS (
	SELECT shard, offset + size,
		LEAD(offset, 1, :shard_size_limit) OVER (PARTITION BY shard ORDER BY offset)
	FROM files
	UNION ALL
	SELECT shard, 0, MIN(offset) FROM files GROUP BY shard
)
SELECT shard, offset AS gap_start, gap_end - offset AS gap_size
FROM ends
WHERE gap_end > offset
ORDER BY gap_size DESC
`

// FindGaps returns every gap in the archive, largest first, bounded by
// shardSizeLimit as the notional end of each shard's last file (so a
// shard's unused trailing capacity also counts as a gap).
func (idx *Index) FindGaps(ctx context.Context, shardSizeLimit int64) ([]Gap, error) {
	var gaps []Gap
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, gapQuery,
			&sqlitex.ExecOptions{
				Named: map[string]any{":shard_size_limit": shardSizeLimit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					gaps = append(gaps, Gap{
						Shard:  int(stmt.ColumnInt64(0)),
						Offset: stmt.ColumnInt64(1),
						Size:   stmt.ColumnInt64(2),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("index: finding gaps: %w", err)
	}
	return gaps, nil
}

// FindSpace looks for the earliest gap, in (shard, offset) order, at
// least size bytes long, mirroring the original's find_space. Defrag's
// gap filling uses it; put does not, it always appends.
func (idx *Index) FindSpace(ctx context.Context, size, shardSizeLimit int64) (Gap, bool, error) {
	var best Gap
	found := false
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`WITH ends(shard, offset, gap_end) AS (
				SELECT shard, offset + size,
					LEAD(offset, 1, :shard_size_limit) OVER (PARTITION BY shard ORDER BY offset)
				FROM files
				UNION ALL
				SELECT shard, 0, MIN(offset) FROM files GROUP BY shard
			)
			SELECT shard, offset AS gap_start, gap_end - offset AS gap_size
			FROM ends
			WHERE gap_end - offset >= :size
			ORDER BY shard, offset
			LIMIT 1`,
			&sqlitex.ExecOptions{
				Named: map[string]any{":shard_size_limit": shardSizeLimit, ":size": size},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					best = Gap{
						Shard:  int(stmt.ColumnInt64(0)),
						Offset: stmt.ColumnInt64(1),
						Size:   stmt.ColumnInt64(2),
					}
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return Gap{}, false, fmt.Errorf("index: finding space for %d bytes: %w", size, err)
	}
	return best, found, nil
}
