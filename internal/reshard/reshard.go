// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reshard repacks an archive's shard files to a new
// shard_size_limit (spec §4.8): files are rewritten into a fresh set
// of shard files sized to the new limit, then the fresh files are
// renamed over the originals.
package reshard

import (
	"context"
	"fmt"
	"os"

	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
)

// tmpSuffix names the sibling shard set built during a reshard run:
// it is appended to the base path, so the new shards are named
// B-new-shard-NNNNN (not B-shard-new-NNNNN) until they are renamed
// over the originals.
const tmpSuffix = "-new"

// Stats summarizes one reshard run.
type Stats struct {
	FilesRepacked int
	ShardsBefore  int
	ShardsAfter   int
}

// Run packs every live file into fresh shards sized to newLimit,
// iterating files in their existing (shard, offset) order so that
// files already adjacent stay adjacent in the new layout, then
// replaces the archive's shard files with the fresh set and updates
// every file's (shard, offset) in the index to match.
//
// The caller must close and reopen its own shard.Store handle to
// basePath after Run returns successfully: Run closes its own
// temporary store and renames files out from under the old handles,
// so any shard.Store opened against basePath before this call no
// longer refers to the current file set.
func Run(ctx context.Context, idx *index.Index, basePath string, oldStore *shard.Store, newLimit int64) (Stats, error) {
	var stats Stats

	tmpBase := basePath + tmpSuffix
	newStore, err := shard.Open(shard.Config{
		BasePath:       tmpBase,
		ShardSizeLimit: newLimit,
		Mode:           shard.ReadWrite,
	})
	if err != nil {
		return stats, fmt.Errorf("reshard: opening temporary shard store: %w", err)
	}

	type relocation struct {
		path        string
		shard       int
		offset      int64
	}
	var relocations []relocation

	iterErr := idx.IterAllFiles(ctx, index.Address, func(f index.FileInfo) bool {
		if ctx.Err() != nil {
			return false
		}
		data, readErr := oldStore.Read(f.Shard, f.Offset, f.Size)
		if readErr != nil {
			err = readErr
			return false
		}
		newShard, newOffset, _, _, appendErr := newStore.Append(data)
		if appendErr != nil {
			err = appendErr
			return false
		}
		relocations = append(relocations, relocation{path: f.Path, shard: newShard, offset: newOffset})
		stats.FilesRepacked++
		return true
	})
	if iterErr != nil && err == nil {
		err = iterErr
	}
	if err != nil {
		newStore.Close()
		_ = removeShardSet(tmpBase)
		return stats, fmt.Errorf("reshard: repacking: %w", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		newStore.Close()
		_ = removeShardSet(tmpBase)
		return stats, ctxErr
	}

	oldShardNumbers, err := shard.ListShardNumbers(basePath)
	if err != nil {
		newStore.Close()
		return stats, fmt.Errorf("reshard: listing existing shards: %w", err)
	}
	stats.ShardsBefore = len(oldShardNumbers)

	newShardNumbers, err := shard.ListShardNumbers(tmpBase)
	if err != nil {
		newStore.Close()
		return stats, fmt.Errorf("reshard: listing new shards: %w", err)
	}
	stats.ShardsAfter = len(newShardNumbers)

	if err := newStore.Close(); err != nil {
		return stats, fmt.Errorf("reshard: closing new shard store: %w", err)
	}
	if err := oldStore.Close(); err != nil {
		return stats, fmt.Errorf("reshard: closing old shard store: %w", err)
	}

	for _, k := range newShardNumbers {
		if err := os.Rename(shard.ShardPath(tmpBase, k), shard.ShardPath(basePath, k)); err != nil {
			return stats, fmt.Errorf("reshard: renaming shard %d into place: %w", k, err)
		}
	}
	for _, k := range oldShardNumbers {
		if k >= len(newShardNumbers) {
			if err := os.Remove(shard.ShardPath(basePath, k)); err != nil && !os.IsNotExist(err) {
				return stats, fmt.Errorf("reshard: removing stale shard %d: %w", k, err)
			}
		}
	}

	for _, r := range relocations {
		if err := idx.UpdateLocation(ctx, r.path, r.shard, r.offset); err != nil {
			return stats, fmt.Errorf("reshard: updating location of %s: %w", r.path, err)
		}
	}
	if err := idx.SetShardSizeLimit(ctx, newLimit); err != nil {
		return stats, fmt.Errorf("reshard: updating shard size limit: %w", err)
	}

	return stats, nil
}

func removeShardSet(base string) error {
	numbers, err := shard.ListShardNumbers(base)
	if err != nil {
		return err
	}
	for _, k := range numbers {
		_ = os.Remove(shard.ShardPath(base, k))
	}
	return nil
}
