// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"

	"github.com/barecat-project/barecat/internal/merge"
)

// MergeMode selects how Merge combines its source archives.
type MergeMode int

const (
	// MergeCopy rewrites every source file's bytes into the output's
	// own shard set.
	MergeCopy MergeMode = iota

	// MergeSymlink links whole source shard files into the output
	// layout instead of copying bytes. Barecat sources only; the
	// output is read-only for anything beyond its own metadata until
	// the source archives it links to are guaranteed to outlive it.
	MergeSymlink
)

// DuplicatePolicy selects how Merge handles a path present in more
// than one source archive.
type DuplicatePolicy = merge.DuplicatePolicy

const (
	DuplicateFail            = merge.Fail
	DuplicateIgnoreKeepFirst = merge.IgnoreKeepFirst
	DuplicateAppend          = merge.Append
)

// MergeStats reports how much work a merge run did, accumulated
// across every source.
type MergeStats = merge.Stats

// Merge combines every archive in sources into a freshly created
// archive at outBasePath (spec §4.10). mode selects whether bytes are
// copied or source shard files are symlinked in place; policy selects
// how a path present in multiple sources is resolved. shardSizeLimit
// only applies to MergeCopy, which controls rotation in the fresh
// output shard set; MergeSymlink's shard boundaries are inherited
// unchanged from each source.
func Merge(ctx context.Context, sources []string, outBasePath string, shardSizeLimit int64, mode MergeMode, policy DuplicatePolicy) (MergeStats, error) {
	var stats MergeStats
	if mode == MergeSymlink && policy == DuplicateAppend {
		return stats, fmt.Errorf("barecat: merge: append duplicate policy is not supported in symlink mode")
	}

	out, err := Open(ctx, Config{BasePath: outBasePath, Mode: ReadWriteMode, ShardSizeLimit: shardSizeLimit})
	if err != nil {
		return stats, fmt.Errorf("barecat: merge: creating output archive: %w", err)
	}
	defer out.Close()

	shardOffset := out.Shard().CurrentShard() + 1
	for _, src := range sources {
		source, err := Open(ctx, Config{BasePath: src, Mode: ReadOnlyMode})
		if err != nil {
			return stats, fmt.Errorf("barecat: merge: opening source %s: %w", src, err)
		}

		var sourceStats MergeStats
		switch mode {
		case MergeCopy:
			sourceStats, err = merge.CopySource(ctx, source.Index(), source.Shard(), out.Index(), out.Shard(), policy)
		case MergeSymlink:
			var added int
			added, sourceStats, err = merge.SymlinkSource(ctx, source.BasePath(), source.Index(), out.BasePath(), out.Index(), shardOffset, policy)
			shardOffset += added
		default:
			err = fmt.Errorf("barecat: merge: unknown mode %d", mode)
		}

		closeErr := source.Close()
		if err != nil {
			return stats, fmt.Errorf("barecat: merge: merging source %s: %w", src, err)
		}
		if closeErr != nil {
			return stats, fmt.Errorf("barecat: merge: closing source %s: %w", src, closeErr)
		}

		stats.FilesCopied += sourceStats.FilesCopied
		stats.FilesSkipped += sourceStats.FilesSkipped
		stats.BytesCopied += sourceStats.BytesCopied
		stats.DirsCreated += sourceStats.DirsCreated
		stats.ShardFilesLinked += sourceStats.ShardFilesLinked
	}

	return stats, nil
}
