// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge implements the two merge strategies of spec §4.10:
// copy mode, which rewrites every source file's bytes into a shared
// output shard set, and symlink mode, which links whole source shard
// files into the output layout without copying any bytes.
package merge

import (
	"context"
	"fmt"
	"os"

	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
)

// DuplicatePolicy selects how merge handles a path that appears in
// more than one source archive.
type DuplicatePolicy int

const (
	// Fail aborts the merge the first time a duplicate path is seen.
	Fail DuplicatePolicy = iota

	// IgnoreKeepFirst silently keeps whichever source inserted a path
	// first and discards the same path from every later source (spec
	// §9 Open Question (c): ties go to the first source, documented as
	// a stable choice rather than an arbitrary one).
	IgnoreKeepFirst

	// Append replaces an earlier source's entry with the later
	// source's bytes and metadata, so the last source listed wins.
	// Copy mode only: symlink mode has no bytes to rewrite in place.
	Append
)

// Stats summarizes one merge run, accumulated across every source.
type Stats struct {
	FilesCopied      int
	FilesSkipped     int
	BytesCopied      int64
	DirsCreated      int
	ShardFilesLinked int
}

// CopySource merges one source archive into the destination by
// reading every file's bytes and reinserting them through the
// destination's own append path, renumbering shards as the
// destination's existing layout requires. Directories are created as
// needed, with metadata taken from whichever source's directory is
// seen first.
func CopySource(ctx context.Context, srcIdx *index.Index, srcStore *shard.Store, dstIdx *index.Index, dstStore *shard.Store, policy DuplicatePolicy) (Stats, error) {
	var stats Stats

	dirErr := srcIdx.IterAllDirs(ctx, index.Path, func(d index.DirInfo) bool {
		if d.Path == "" {
			return true
		}
		if _, err := dstIdx.LookupDir(ctx, d.Path); err == nil {
			return true
		}
		if err := dstIdx.InsertDir(ctx, index.DirInfo{EntryInfo: d.EntryInfo}, false); err != nil {
			return false
		}
		stats.DirsCreated++
		return true
	})
	if dirErr != nil {
		return stats, fmt.Errorf("merge: copying directories: %w", dirErr)
	}

	var copyErr error
	fileErr := srcIdx.IterAllFiles(ctx, index.Address, func(f index.FileInfo) bool {
		if ctx.Err() != nil {
			return false
		}

		if _, err := dstIdx.LookupFile(ctx, f.Path); err == nil {
			switch policy {
			case Fail:
				copyErr = fmt.Errorf("merge: duplicate path %q", f.Path)
				return false
			case IgnoreKeepFirst:
				stats.FilesSkipped++
				return true
			case Append:
				if _, err := dstIdx.DeleteFile(ctx, f.Path); err != nil {
					copyErr = fmt.Errorf("merge: replacing duplicate path %q: %w", f.Path, err)
					return false
				}
			}
		}

		data, err := srcStore.Read(f.Shard, f.Offset, f.Size)
		if err != nil {
			copyErr = fmt.Errorf("merge: reading %s: %w", f.Path, err)
			return false
		}
		newShard, newOffset, size, crc, err := dstStore.Append(data)
		if err != nil {
			copyErr = fmt.Errorf("merge: appending %s: %w", f.Path, err)
			return false
		}
		entry := f
		entry.Shard, entry.Offset, entry.Size, entry.Crc32c = newShard, newOffset, size, &crc
		if err := dstIdx.InsertFile(ctx, entry); err != nil {
			copyErr = fmt.Errorf("merge: inserting %s: %w", f.Path, err)
			return false
		}
		stats.FilesCopied++
		stats.BytesCopied += size
		return true
	})
	if fileErr != nil {
		return stats, fmt.Errorf("merge: copying files: %w", fileErr)
	}
	if copyErr != nil {
		return stats, copyErr
	}
	return stats, ctx.Err()
}

// SymlinkSource merges one source archive into the destination
// without copying any bytes: every source shard file is symlinked
// into the destination's shard numbering at shardOffset+k, and every
// file row is reinserted citing the renumbered shard at its
// unchanged offset. It returns the shard count contributed by this
// source, to be added to shardOffset before merging the next one.
//
// policy must not be Append: there are no destination bytes for a
// later source to overwrite in place, only a relink, which would
// orphan whichever earlier source's symlink pointed at that shard
// range. Copy mode is the only mode Append works in (spec §4.10).
func SymlinkSource(ctx context.Context, srcBasePath string, srcIdx *index.Index, dstBasePath string, dstIdx *index.Index, shardOffset int, policy DuplicatePolicy) (shardsAdded int, stats Stats, err error) {
	if policy == Append {
		return 0, stats, fmt.Errorf("merge: append duplicate policy is not supported in symlink mode")
	}

	shardNumbers, err := shard.ListShardNumbers(srcBasePath)
	if err != nil {
		return 0, stats, fmt.Errorf("merge: listing source shards: %w", err)
	}
	for _, k := range shardNumbers {
		src := shard.ShardPath(srcBasePath, k)
		dst := shard.ShardPath(dstBasePath, shardOffset+k)
		if err := os.Symlink(src, dst); err != nil {
			return 0, stats, fmt.Errorf("merge: symlinking shard %d: %w", k, err)
		}
		stats.ShardFilesLinked++
	}

	dirErr := srcIdx.IterAllDirs(ctx, index.Path, func(d index.DirInfo) bool {
		if d.Path == "" {
			return true
		}
		if _, err := dstIdx.LookupDir(ctx, d.Path); err == nil {
			return true
		}
		if insErr := dstIdx.InsertDir(ctx, index.DirInfo{EntryInfo: d.EntryInfo}, false); insErr != nil {
			err = insErr
			return false
		}
		stats.DirsCreated++
		return true
	})
	if dirErr != nil {
		return len(shardNumbers), stats, fmt.Errorf("merge: linking directories: %w", dirErr)
	}

	var linkErr error
	fileErr := srcIdx.IterAllFiles(ctx, index.Path, func(f index.FileInfo) bool {
		if ctx.Err() != nil {
			return false
		}
		if _, err := dstIdx.LookupFile(ctx, f.Path); err == nil {
			if policy == Fail {
				linkErr = fmt.Errorf("merge: duplicate path %q", f.Path)
				return false
			}
			stats.FilesSkipped++
			return true
		}
		entry := f
		entry.Shard = shardOffset + f.Shard
		if insErr := dstIdx.InsertFile(ctx, entry); insErr != nil {
			linkErr = fmt.Errorf("merge: inserting %s: %w", f.Path, insErr)
			return false
		}
		stats.FilesCopied++
		stats.BytesCopied += f.Size
		return true
	})
	if fileErr != nil {
		return len(shardNumbers), stats, fmt.Errorf("merge: linking files: %w", fileErr)
	}
	if linkErr != nil {
		return len(shardNumbers), stats, linkErr
	}
	return len(shardNumbers), stats, ctx.Err()
}
