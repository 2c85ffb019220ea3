// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify implements the full and quick integrity checks of
// spec §4.9: full re-reads and re-checksums every file; quick only
// checks storage-engine and index-level invariants without touching
// shard bytes.
package verify

import (
	"context"
	"fmt"

	"github.com/barecat-project/barecat/internal/checksum"
	"github.com/barecat-project/barecat/internal/index"
)

// Store is the subset of shard.Store verify depends on, kept narrow so
// tests can substitute a fake.
type Store interface {
	Read(shardNum int, offset, size int64) ([]byte, error)
	Length(shardNum int) (int64, error)
}

// CRCMismatch describes one file whose recomputed CRC32C disagrees
// with its stored value.
type CRCMismatch struct {
	Path     string
	Expected uint32
	Actual   uint32
}

// ShardProblem describes a shard whose on-disk length does not cover
// every file the index says lives in it.
type ShardProblem struct {
	Shard          int
	RequiredLength int64
	ActualLength   int64
	Err            error
}

// Report collects every problem a verify pass found. A zero-value
// Report (every slice nil) means the archive is healthy.
type Report struct {
	CRCMismatches     []CRCMismatch
	StatsMismatches   []index.StatsMismatch
	IntegrityProblems []string
	ShardProblems     []ShardProblem
}

// Healthy reports whether the report found no problems at all.
func (r *Report) Healthy() bool {
	return len(r.CRCMismatches) == 0 && len(r.StatsMismatches) == 0 &&
		len(r.IntegrityProblems) == 0 && len(r.ShardProblems) == 0
}

// Full re-reads every live file's bytes, recomputes its CRC32C, and
// compares it to the stored value; additionally runs the storage
// engine's own integrity check and recomputes every directory's
// aggregate stats from scratch to detect invariant drift.
func Full(ctx context.Context, idx *index.Index, store Store) (*Report, error) {
	report := &Report{}

	if err := idx.IterAllFiles(ctx, index.Address, func(f index.FileInfo) bool {
		data, err := store.Read(f.Shard, f.Offset, f.Size)
		if err != nil {
			report.ShardProblems = append(report.ShardProblems, ShardProblem{Shard: f.Shard, Err: err})
			return true
		}
		if f.Crc32c == nil {
			return true
		}
		actual := checksum.Of(data)
		if actual != *f.Crc32c {
			report.CRCMismatches = append(report.CRCMismatches, CRCMismatch{
				Path: f.Path, Expected: *f.Crc32c, Actual: actual,
			})
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("verify: scanning files: %w", err)
	}

	problems, err := idx.IntegrityCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: integrity check: %w", err)
	}
	report.IntegrityProblems = problems

	mismatches, err := idx.VerifyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: verifying stats: %w", err)
	}
	report.StatsMismatches = mismatches

	return report, nil
}

// Quick runs the storage engine's own integrity check and confirms
// every shard referenced by the index is long enough to cover its
// highest-addressed file, without reading any file bytes. It is the
// cheap health check run before opening an archive for heavy use.
func Quick(ctx context.Context, idx *index.Index, store Store) (*Report, error) {
	report := &Report{}

	problems, err := idx.IntegrityCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: integrity check: %w", err)
	}
	report.IntegrityProblems = problems

	numShards, err := idx.NumUsedShards(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: counting used shards: %w", err)
	}
	for shardNum := 0; shardNum < numShards; shardNum++ {
		required, err := idx.LogicalShardEnd(ctx, shardNum)
		if err != nil {
			return nil, fmt.Errorf("verify: reading logical end of shard %d: %w", shardNum, err)
		}
		if required == 0 {
			continue
		}
		actual, err := store.Length(shardNum)
		if err != nil {
			report.ShardProblems = append(report.ShardProblems, ShardProblem{Shard: shardNum, RequiredLength: required, Err: err})
			continue
		}
		if actual < required {
			report.ShardProblems = append(report.ShardProblems, ShardProblem{
				Shard: shardNum, RequiredLength: required, ActualLength: actual,
			})
		}
	}

	return report, nil
}
