// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/barecat-project/barecat/internal/barecaterr"
	"github.com/barecat-project/barecat/internal/checksum"
	"github.com/barecat-project/barecat/internal/index"
	bcpath "github.com/barecat-project/barecat/internal/path"
	"github.com/barecat-project/barecat/internal/shard"
	"github.com/barecat-project/barecat/lib/clock"
)

// Mode selects how an archive is opened.
type Mode int

const (
	// ReadOnlyMode opens an existing archive for reading only.
	ReadOnlyMode Mode = iota

	// ReadWriteMode opens an archive for reading and writing, creating
	// it if it does not already exist.
	ReadWriteMode

	// AppendOnlyMode opens an archive for appending new files only;
	// existing bytes are immutable and shard truncation is disabled.
	// Used by bulk ingest paths that never revisit earlier writes.
	AppendOnlyMode
)

// Config configures Open.
type Config struct {
	// BasePath is the archive's base path: the index database lives
	// at BasePath (spec §6's current layout) and shards at
	// BasePath-shard-NNNNN.
	BasePath string

	Mode Mode

	// ShardSizeLimit caps shard length before rotation. A positive
	// value is used by this handle and, unless Mode is ReadOnlyMode,
	// stored in the archive's config table. Zero or less uses the
	// limit from the config table, which is unlimited for a new
	// archive.
	ShardSizeLimit int64

	// IndexPoolSize is the index reader connection pool size.
	IndexPoolSize int

	Logger *slog.Logger

	// Clock supplies mtimes for metadata defaults. Defaults to
	// clock.Real().
	Clock clock.Clock
}

// Barecat is the path-addressed facade composing the Index and the
// shard Store (spec §4.6). It exclusively owns both for its lifetime;
// Close releases them on every exit path.
type Barecat struct {
	basePath string
	readOnly bool
	logger   *slog.Logger
	clock    clock.Clock

	idx   *index.Index
	shard *shard.Store

	// mu guards shard_size_limit changes that must be seen
	// consistently by concurrent put/get; most operations go straight
	// to idx/shard, which have their own internal synchronization.
	mu sync.RWMutex
}

// Open opens or creates an archive at cfg.BasePath.
func Open(ctx context.Context, cfg Config) (*Barecat, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("barecat: BasePath is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	idxMode := index.ReadOnly
	shardMode := shard.ReadOnly
	if cfg.Mode == ReadWriteMode {
		idxMode = index.ReadWrite
		shardMode = shard.ReadWrite
	} else if cfg.Mode == AppendOnlyMode {
		idxMode = index.ReadWrite
		shardMode = shard.AppendOnly
	}

	idx, err := index.Open(ctx, index.Config{
		Path:     cfg.BasePath,
		Mode:     idxMode,
		PoolSize: cfg.IndexPoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("barecat: opening index: %w", err)
	}

	limit := cfg.ShardSizeLimit
	if limit <= 0 {
		if configured, err := idx.ShardSizeLimit(ctx); err == nil {
			limit = configured
		} else {
			limit = shard.SizeUnlimited
		}
	} else if cfg.Mode != ReadOnlyMode {
		_ = idx.SetShardSizeLimit(ctx, limit)
	}

	shardStore, err := shard.Open(shard.Config{
		BasePath:       cfg.BasePath,
		ShardSizeLimit: limit,
		Mode:           shardMode,
		Logger:         logger,
	})
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("barecat: opening shard store: %w", err)
	}

	return &Barecat{
		basePath: cfg.BasePath,
		readOnly: cfg.Mode == ReadOnlyMode,
		logger:   logger,
		clock:    clk,
		idx:      idx,
		shard:    shardStore,
	}, nil
}

// Close releases the index connection pool and every shard file
// handle.
func (b *Barecat) Close() error {
	var firstErr error
	if err := b.shard.Close(); err != nil {
		firstErr = err
	}
	if err := b.idx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (b *Barecat) raiseIfReadOnly(op string) error {
	if b.readOnly {
		return barecaterr.ReadOnly(op, b.basePath)
	}
	return nil
}

// Put stores content at path. If overwrite is false and a file already
// exists at path, returns AlreadyExists. Overwriting deletes the old
// entry first (leaving a hole for defrag to reclaim) then appends the
// new bytes and inserts a fresh row, per spec §4.6.
func (b *Barecat) Put(ctx context.Context, path string, content []byte, overwrite bool) error {
	if err := b.raiseIfReadOnly("put"); err != nil {
		return err
	}
	normalized, ok := bcpath.Validate(path)
	if !ok || normalized == "" {
		return fmt.Errorf("barecat: invalid path %q", path)
	}

	existing, err := b.idx.LookupFile(ctx, normalized)
	exists := err == nil
	if exists && !overwrite {
		return barecaterr.AlreadyExists("put", normalized)
	}
	if exists {
		if _, err := b.idx.DeleteFile(ctx, normalized); err != nil {
			return err
		}
		_ = existing
	}

	shardNum, offset, size, crc, err := b.shard.Append(content)
	if err != nil {
		return err
	}

	now := b.clock.Now().UnixNano()
	entry := index.FileInfo{
		EntryInfo: index.EntryInfo{Path: normalized, MtimeNs: &now},
		Shard:     shardNum,
		Offset:    offset,
		Size:      size,
		Crc32c:    &crc,
	}
	if err := b.idx.InsertFile(ctx, entry); err != nil {
		return err
	}
	return nil
}

// Get reads path's full content and verifies its CRC32C against the
// stored value, returning IntegrityError on mismatch.
func (b *Barecat) Get(ctx context.Context, path string) ([]byte, error) {
	normalized, _ := bcpath.Validate(path)
	entry, err := b.idx.LookupFile(ctx, normalized)
	if err != nil {
		return nil, err
	}
	data, err := b.shard.Read(entry.Shard, entry.Offset, entry.Size)
	if err != nil {
		return nil, err
	}
	if entry.Crc32c != nil {
		actual := checksum.Of(data)
		if actual != *entry.Crc32c {
			return nil, &barecaterr.IntegrityMismatch{Path: normalized, Expected: *entry.Crc32c, Actual: actual}
		}
	}
	return data, nil
}

// Delete removes the file entry at path. Shard bytes are left in
// place (a hole); reclaiming them is defrag's job, with an optional
// best-effort hole punch in the meantime.
func (b *Barecat) Delete(ctx context.Context, path string) error {
	if err := b.raiseIfReadOnly("delete"); err != nil {
		return err
	}
	normalized, _ := bcpath.Validate(path)
	entry, err := b.idx.DeleteFile(ctx, normalized)
	if err != nil {
		return err
	}
	_ = b.shard.PunchHole(entry.Shard, entry.Offset, entry.Size)
	return nil
}

// Contains reports whether path names a live file (not a directory).
func (b *Barecat) Contains(ctx context.Context, path string) bool {
	normalized, _ := bcpath.Validate(path)
	_, err := b.idx.LookupFile(ctx, normalized)
	return err == nil
}

// Exists reports whether path names a live file or directory.
func (b *Barecat) Exists(ctx context.Context, path string) bool {
	normalized, _ := bcpath.Validate(path)
	exists, _ := b.idx.Exists(ctx, normalized)
	return exists
}

// IsFile reports whether path names a live file.
func (b *Barecat) IsFile(ctx context.Context, path string) bool { return b.Contains(ctx, path) }

// IsDir reports whether path names a live directory.
func (b *Barecat) IsDir(ctx context.Context, path string) bool {
	normalized, _ := bcpath.Validate(path)
	_, err := b.idx.LookupDir(ctx, normalized)
	return err == nil
}

// Stat describes a single file or directory entry for the generic
// Stat call.
type Stat struct {
	Path    string
	IsDir   bool
	Size    int64
	Mode    *uint32
	UID     *uint32
	GID     *uint32
	MtimeNs *int64
	Shard   int
	Offset  int64
	Crc32c  *uint32
}

// StatPath returns size/mtime/mode/ownership/location information for
// path, whether it is a file or directory.
func (b *Barecat) StatPath(ctx context.Context, path string) (Stat, error) {
	normalized, _ := bcpath.Validate(path)
	if file, err := b.idx.LookupFile(ctx, normalized); err == nil {
		return Stat{
			Path: normalized, Size: file.Size, Mode: file.Mode, UID: file.UID, GID: file.GID,
			MtimeNs: file.MtimeNs, Shard: file.Shard, Offset: file.Offset, Crc32c: file.Crc32c,
		}, nil
	}
	dir, err := b.idx.LookupDir(ctx, normalized)
	if err != nil {
		return Stat{}, err
	}
	return Stat{
		Path: normalized, IsDir: true, Size: dir.SizeTree,
		Mode: dir.Mode, UID: dir.UID, GID: dir.GID, MtimeNs: dir.MtimeNs,
	}, nil
}

// Mkdir creates a directory entry. If existOk, an existing directory
// at path is left untouched (metadata is refreshed).
func (b *Barecat) Mkdir(ctx context.Context, path string, mode uint32, existOk bool) error {
	if err := b.raiseIfReadOnly("mkdir"); err != nil {
		return err
	}
	normalized, ok := bcpath.Validate(path)
	if !ok {
		return fmt.Errorf("barecat: invalid path %q", path)
	}
	now := b.clock.Now().UnixNano()
	return b.idx.InsertDir(ctx, index.DirInfo{
		EntryInfo: index.EntryInfo{Path: normalized, Mode: &mode, MtimeNs: &now},
	}, existOk)
}

// Rmdir removes an empty directory. Fails with DirectoryNotEmpty if it
// still has files or subdirectories.
func (b *Barecat) Rmdir(ctx context.Context, path string) error {
	if err := b.raiseIfReadOnly("rmdir"); err != nil {
		return err
	}
	normalized, _ := bcpath.Validate(path)
	return b.idx.DeleteDir(ctx, normalized)
}

// Rmtree removes path and everything beneath it, whether path is a
// file or a directory subtree.
func (b *Barecat) Rmtree(ctx context.Context, path string) error {
	if err := b.raiseIfReadOnly("rmtree"); err != nil {
		return err
	}
	normalized, _ := bcpath.Validate(path)
	if _, err := b.idx.LookupFile(ctx, normalized); err == nil {
		_, err := b.idx.DeleteFile(ctx, normalized)
		return err
	}
	return b.idx.RemoveRecursively(ctx, normalized)
}

// Rename moves src to dst, whether src is a file or a directory
// subtree.
func (b *Barecat) Rename(ctx context.Context, src, dst string) error {
	if err := b.raiseIfReadOnly("rename"); err != nil {
		return err
	}
	return b.idx.Rename(ctx, src, dst)
}

// Listdir returns the direct entry names (subdirectories and files,
// interleaved in path order — callers that need them separated sort
// by checking IsDir via StatPath) of a directory.
func (b *Barecat) Listdir(ctx context.Context, dir string) ([]string, error) {
	normalized, _ := bcpath.Validate(dir)
	files, err := b.idx.ListDirFiles(ctx, normalized, index.Path)
	if err != nil {
		return nil, err
	}
	subdirs, err := b.idx.ListDirSubdirs(ctx, normalized, index.Path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files)+len(subdirs))
	for _, f := range files {
		_, name := bcpath.Partition(f.Path)
		names = append(names, name)
	}
	for _, d := range subdirs {
		_, name := bcpath.Partition(d.Path)
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// NumFiles returns the total live file count across the whole
// archive.
func (b *Barecat) NumFiles(ctx context.Context) (int64, error) { return b.idx.NumFiles(ctx) }

// NumDirs returns the total live directory count, including the root.
func (b *Barecat) NumDirs(ctx context.Context) (int64, error) { return b.idx.NumDirs(ctx) }

// TotalSize returns the sum of every live file's size.
func (b *Barecat) TotalSize(ctx context.Context) (int64, error) { return b.idx.TotalSize(ctx) }

// ShardSizeLimit returns the archive's current shard size limit.
func (b *Barecat) ShardSizeLimit(ctx context.Context) (int64, error) {
	return b.idx.ShardSizeLimit(ctx)
}

// SetShardSizeLimit records a new shard size limit in the archive's
// config table. The open handle's shard store keeps the limit it was
// opened with; the new value governs rotation from the next Open that
// passes no ShardSizeLimit of its own. Shrinking below an already-written shard's logical
// length is allowed (spec §9 Open Question (b)): the affected file
// stays in its current, larger shard until Reshard is run.
func (b *Barecat) SetShardSizeLimit(ctx context.Context, limit int64) error {
	if err := b.raiseIfReadOnly("set_shard_size_limit"); err != nil {
		return err
	}
	return b.idx.SetShardSizeLimit(ctx, limit)
}

// CheckCRC32C recomputes the CRC32C of the file at path and compares
// it to the stored value. Returns false (without error) on mismatch;
// returns true if there is no stored checksum to compare against.
func (b *Barecat) CheckCRC32C(ctx context.Context, path string) (bool, error) {
	entry, err := b.idx.LookupFile(ctx, path)
	if err != nil {
		return false, err
	}
	data, err := b.shard.Read(entry.Shard, entry.Offset, entry.Size)
	if err != nil {
		return false, err
	}
	if entry.Crc32c == nil {
		return true, nil
	}
	actual := checksum.Of(data)
	if actual != *entry.Crc32c {
		b.logger.Warn("CRC32C mismatch", "path", path, "expected", *entry.Crc32c, "actual", actual)
		return false, nil
	}
	return true, nil
}

// Index exposes the underlying relational Index to the
// defrag/reshard/verify/merge/migration packages, which operate one
// level below the facade. Not part of the stable mapping/filesystem
// API; exported for same-module internal packages via BasePath-scoped
// reopen, not for external callers composing their own facade.
func (b *Barecat) Index() *index.Index { return b.idx }

// Shard exposes the underlying shard Store, for the same reason as
// Index.
func (b *Barecat) Shard() *shard.Store { return b.shard }

// BasePath returns the archive's base path.
func (b *Barecat) BasePath() string { return b.basePath }
