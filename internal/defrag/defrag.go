// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package defrag implements the three defragmentation modes of spec
// §4.7: full (complete in-shard compaction), quick (time-budgeted
// best-fit gap filling), and smart (contiguous-run block moves to
// minimize syscalls).
package defrag

import (
	"context"
	"fmt"
	"time"

	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
)

// Stats summarizes one defrag run.
type Stats struct {
	FilesMoved      int
	BytesMoved      int64
	ShardsTruncated int
}

// Full iterates every file in address order and rewrites any file
// whose offset differs from the next free position in its shard,
// compacting each shard down to a single contiguous run of live
// bytes; shard tails are truncated at the end. Full defrag is
// idempotent: running it twice in a row is a no-op the second time.
func Full(ctx context.Context, idx *index.Index, store *shard.Store) (Stats, error) {
	var stats Stats
	var moveErr error
	nextFree := make(map[int]int64)

	err := idx.IterAllFiles(ctx, index.Address, func(f index.FileInfo) bool {
		if ctx.Err() != nil {
			return false
		}
		target := nextFree[f.Shard]
		if f.Offset != target {
			data, readErr := store.Read(f.Shard, f.Offset, f.Size)
			if readErr != nil {
				moveErr = readErr
				return false
			}
			if writeErr := store.WriteAt(f.Shard, target, data); writeErr != nil {
				moveErr = writeErr
				return false
			}
			if updErr := idx.UpdateLocation(ctx, f.Path, f.Shard, target); updErr != nil {
				moveErr = updErr
				return false
			}
			stats.FilesMoved++
			stats.BytesMoved += f.Size
		}
		nextFree[f.Shard] = target + f.Size
		return true
	})
	if err != nil {
		return stats, fmt.Errorf("defrag: compacting: %w", err)
	}
	if moveErr != nil {
		return stats, fmt.Errorf("defrag: compacting: %w", moveErr)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	for shardNum, length := range nextFree {
		if err := store.Truncate(shardNum, length); err != nil {
			return stats, fmt.Errorf("defrag: truncating shard %d: %w", shardNum, err)
		}
		stats.ShardsTruncated++
	}
	return stats, nil
}

// Quick repeatedly finds the largest trailing file (the file
// occupying the highest offset in some shard) that fits into an
// earlier gap, moves it there, and truncates the source shard's now
// unused tail, until no candidate fits or the deadline passes. It
// leaves shards only partially defragmented, trading completeness for
// a bounded running time.
func Quick(ctx context.Context, idx *index.Index, store *shard.Store, shardSizeLimit int64, budget time.Duration) (Stats, error) {
	var stats Stats
	deadline := time.Now().Add(budget)

	for {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return stats, nil
		}

		trailing, err := idx.TrailingFilePerShard(ctx)
		if err != nil {
			return stats, fmt.Errorf("defrag: finding trailing files: %w", err)
		}

		moved, err := moveLargestFittingTrailer(ctx, idx, store, trailing, shardSizeLimit, &stats)
		if err != nil {
			return stats, err
		}
		if !moved {
			return stats, nil
		}
	}
}

func moveLargestFittingTrailer(ctx context.Context, idx *index.Index, store *shard.Store, trailing []index.FileInfo, shardSizeLimit int64, stats *Stats) (bool, error) {
	largestIdx := -1
	for i, f := range trailing {
		if largestIdx == -1 || f.Size > trailing[largestIdx].Size {
			gap, found, err := idx.FindSpace(ctx, f.Size, shardSizeLimit)
			if err != nil {
				return false, fmt.Errorf("defrag: finding space for %d bytes: %w", f.Size, err)
			}
			if found && (gap.Shard < f.Shard || (gap.Shard == f.Shard && gap.Offset+f.Size <= f.Offset)) {
				largestIdx = i
			}
		}
	}
	if largestIdx == -1 {
		return false, nil
	}

	f := trailing[largestIdx]
	gap, found, err := idx.FindSpace(ctx, f.Size, shardSizeLimit)
	if err != nil {
		return false, fmt.Errorf("defrag: finding space for %d bytes: %w", f.Size, err)
	}
	if !found {
		return false, nil
	}

	data, err := store.Read(f.Shard, f.Offset, f.Size)
	if err != nil {
		return false, fmt.Errorf("defrag: reading %s: %w", f.Path, err)
	}
	if err := store.WriteAt(gap.Shard, gap.Offset, data); err != nil {
		return false, fmt.Errorf("defrag: writing %s into gap: %w", f.Path, err)
	}
	if err := idx.UpdateLocation(ctx, f.Path, gap.Shard, gap.Offset); err != nil {
		return false, fmt.Errorf("defrag: updating location of %s: %w", f.Path, err)
	}
	stats.FilesMoved++
	stats.BytesMoved += f.Size

	maxEnds, err := idx.MaxEndByShard(ctx)
	if err != nil {
		return false, fmt.Errorf("defrag: recomputing shard ends: %w", err)
	}
	newEnd := maxEnds[f.Shard]
	if err := store.Truncate(f.Shard, newEnd); err != nil {
		return false, fmt.Errorf("defrag: truncating shard %d: %w", f.Shard, err)
	}
	stats.ShardsTruncated++
	return true, nil
}

// Smart groups files into contiguous runs (consecutive files with no
// gap between them) per shard and moves each run that is out of place
// with a single read and a single write, instead of one read/write
// pair per file — minimizing syscalls for archives with many small
// adjacent files.
func Smart(ctx context.Context, idx *index.Index, store *shard.Store) (Stats, error) {
	var stats Stats
	nextFree := make(map[int]int64)

	var run []index.FileInfo
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		shardNum := run[0].Shard
		target := nextFree[shardNum]
		runStart := run[0].Offset
		runEnd := run[len(run)-1].End()
		runSize := runEnd - runStart

		if runStart != target {
			data, err := store.Read(shardNum, runStart, runSize)
			if err != nil {
				return fmt.Errorf("defrag: reading run: %w", err)
			}
			if err := store.WriteAt(shardNum, target, data); err != nil {
				return fmt.Errorf("defrag: writing run: %w", err)
			}
			cursor := target
			for _, f := range run {
				if err := idx.UpdateLocation(ctx, f.Path, shardNum, cursor); err != nil {
					return fmt.Errorf("defrag: updating location of %s: %w", f.Path, err)
				}
				cursor += f.Size
			}
			stats.FilesMoved += len(run)
			stats.BytesMoved += runSize
		}
		nextFree[shardNum] = target + runSize
		run = run[:0]
		return nil
	}

	var flushErr error
	err := idx.IterAllFiles(ctx, index.Address, func(f index.FileInfo) bool {
		if ctx.Err() != nil {
			return false
		}
		if len(run) > 0 {
			last := run[len(run)-1]
			contiguous := last.Shard == f.Shard && last.End() == f.Offset
			if !contiguous {
				if err := flush(); err != nil {
					flushErr = err
					return false
				}
			}
		}
		run = append(run, f)
		return true
	})
	if err == nil && flushErr == nil {
		err = flush()
	}
	if err != nil {
		return stats, fmt.Errorf("defrag: compacting runs: %w", err)
	}
	if flushErr != nil {
		return stats, fmt.Errorf("defrag: compacting runs: %w", flushErr)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	for shardNum, length := range nextFree {
		if err := store.Truncate(shardNum, length); err != nil {
			return stats, fmt.Errorf("defrag: truncating shard %d: %w", shardNum, err)
		}
		stats.ShardsTruncated++
	}
	return stats, nil
}
