// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"

	"github.com/barecat-project/barecat/internal/reshard"
	"github.com/barecat-project/barecat/internal/shard"
)

// ReshardStats reports how much work a reshard run did.
type ReshardStats = reshard.Stats

// Reshard repacks every file into a fresh set of shard files sized to
// newLimit (spec §4.8), then adopts the new shard layout. Files keep
// their existing (shard, offset) order, so files already adjacent
// stay adjacent under the new limit.
//
// Reshard closes and reopens the archive's shard store as part of the
// operation; callers must not hold file handles obtained from Open
// across a Reshard call.
func (b *Barecat) Reshard(ctx context.Context, newLimit int64) (ReshardStats, error) {
	if err := b.raiseIfReadOnly("reshard"); err != nil {
		return ReshardStats{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stats, err := reshard.Run(ctx, b.idx, b.basePath, b.shard, newLimit)
	if err != nil {
		return stats, fmt.Errorf("barecat: resharding: %w", err)
	}

	newStore, err := shard.Open(shard.Config{
		BasePath:       b.basePath,
		ShardSizeLimit: newLimit,
		Mode:           shard.ReadWrite,
		Logger:         b.logger,
	})
	if err != nil {
		return stats, fmt.Errorf("barecat: reopening shard store after reshard: %w", err)
	}
	b.shard = newStore

	return stats, nil
}
