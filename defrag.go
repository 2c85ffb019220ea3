// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"
	"time"

	"github.com/barecat-project/barecat/internal/defrag"
)

// DefragMode selects a defragmentation strategy (spec §4.7).
type DefragMode int

const (
	// DefragFull compacts every shard completely; idempotent, but
	// scans and may rewrite every file in the archive.
	DefragFull DefragMode = iota

	// DefragQuick moves the largest fitting trailing file into the
	// best-fit earlier gap, repeatedly, until Budget elapses.
	DefragQuick

	// DefragSmart compacts like DefragFull but moves contiguous runs
	// of files as single block reads/writes.
	DefragSmart
)

// DefragStats reports how much work a defrag run did.
type DefragStats = defrag.Stats

// Defrag reclaims space left by deleted or relocated files. mode
// selects the strategy; budget is only consulted by DefragQuick.
func (b *Barecat) Defrag(ctx context.Context, mode DefragMode, budget time.Duration) (DefragStats, error) {
	if err := b.raiseIfReadOnly("defrag"); err != nil {
		return DefragStats{}, err
	}

	switch mode {
	case DefragFull:
		stats, err := defrag.Full(ctx, b.idx, b.shard)
		if err != nil {
			return stats, fmt.Errorf("barecat: defrag (full): %w", err)
		}
		return stats, nil
	case DefragQuick:
		limit, err := b.idx.ShardSizeLimit(ctx)
		if err != nil {
			return DefragStats{}, err
		}
		stats, err := defrag.Quick(ctx, b.idx, b.shard, limit, budget)
		if err != nil {
			return stats, fmt.Errorf("barecat: defrag (quick): %w", err)
		}
		return stats, nil
	case DefragSmart:
		stats, err := defrag.Smart(ctx, b.idx, b.shard)
		if err != nil {
			return stats, fmt.Errorf("barecat: defrag (smart): %w", err)
		}
		return stats, nil
	default:
		return DefragStats{}, fmt.Errorf("barecat: unknown defrag mode %d", mode)
	}
}
