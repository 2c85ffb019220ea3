// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package migration implements the two upgrade paths of spec §4.11:
// pre-versioned archives (no config table at all) to the current
// schema, and schema 0.2 to 0.3 (the num_files trigger-propagation
// fix plus a full stats rebuild).
package migration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/barecat-project/barecat/internal/archive"
	"github.com/barecat-project/barecat/internal/checksum"
	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
	"github.com/barecat-project/barecat/lib/clock"
)

// Version is an archive's detected schema version. Major is -1 for a
// pre-versioned archive (no config table at all).
type Version struct {
	Major int
	Minor int
}

// Current reports whether v already matches the schema this build
// reads and writes.
func (v Version) Current() bool {
	return v.Major == index.SchemaVersionMajor && v.Minor == index.SchemaVersionMinor
}

// DetectVersion reads config.schema_version_{major,minor} from the
// index file at basePath's resolved location without applying any
// schema to it — unlike index.Open, which seeds a fresh config table
// whenever opened for writing, so it must never be used to probe a
// version that hasn't been decided yet.
func DetectVersion(ctx context.Context, basePath string, logger *slog.Logger) (Version, error) {
	indexPath := archive.IndexPath(basePath)

	pool, err := openRawPool(indexPath, logger)
	if err != nil {
		return Version{}, fmt.Errorf("migration: opening %s to detect version: %w", indexPath, err)
	}
	defer pool.Close()

	conn, err := pool.Take(ctx)
	if err != nil {
		return Version{}, err
	}
	defer pool.Put(conn)

	hasConfig := false
	if err := sqlitex.Execute(conn,
		`SELECT 1 FROM sqlite_master WHERE type='table' AND name='config'`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error { hasConfig = true; return nil }},
	); err != nil {
		return Version{}, fmt.Errorf("migration: checking for config table: %w", err)
	}
	if !hasConfig {
		return Version{Major: -1, Minor: 0}, nil
	}

	major, minor := -1, 0
	readInt := func(key string, out *int) error {
		return sqlitex.Execute(conn, `SELECT value_int FROM config WHERE key = ?`,
			&sqlitex.ExecOptions{
				Args: []any{key},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					*out = int(stmt.ColumnInt64(0))
					return nil
				},
			})
	}
	if err := readInt("schema_version_major", &major); err != nil {
		return Version{}, fmt.Errorf("migration: reading schema_version_major: %w", err)
	}
	if err := readInt("schema_version_minor", &minor); err != nil {
		return Version{}, fmt.Errorf("migration: reading schema_version_minor: %w", err)
	}
	return Version{Major: major, Minor: minor}, nil
}

// Stats summarizes one migration run.
type Stats struct {
	RunID        string
	DirsMigrated int
	FilesMigrated int
}

// Upgrade02To03 brings a 0.x-schema archive (x in {1,2}) up to 0.3.
// index.Open already recreates every trigger from its current
// (corrected) definition on every read-write open — the num_files
// direct-child-only fix is applied just by opening for writing — so
// the only work left here is a full bottom-up stats rebuild (to
// discard any totals the old, over-propagating triggers accumulated)
// and bumping the recorded schema version.
func Upgrade02To03(ctx context.Context, basePath string, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	runID := uuid.NewString()
	stats := Stats{RunID: runID}

	idx, err := index.Open(ctx, index.Config{Path: archive.IndexPath(basePath), Mode: index.ReadWrite, Logger: logger})
	if err != nil {
		return stats, fmt.Errorf("migration: opening %s for 0.x->0.3 upgrade: %w", basePath, err)
	}
	defer idx.Close()

	logger.Info("migration: rebuilding directory stats bottom-up", "run_id", runID, "base_path", basePath)
	if err := idx.RecomputeStats(ctx); err != nil {
		return stats, fmt.Errorf("migration: rebuilding stats: %w", err)
	}

	if err := idx.SetSchemaVersion(ctx, index.SchemaVersionMajor, index.SchemaVersionMinor); err != nil {
		return stats, fmt.Errorf("migration: recording schema version: %w", err)
	}

	dirs, err := idx.NumDirs(ctx)
	if err == nil {
		stats.DirsMigrated = int(dirs)
	}
	files, err := idx.NumFiles(ctx)
	if err == nil {
		stats.FilesMigrated = int(files)
	}
	return stats, nil
}

// legacyDir is one row of the pre-versioned "directories" table: path
// only, no metadata or stats columns.
type legacyDir struct {
	path string
}

// legacyFile is one row of the pre-versioned "files" table: location
// only, no checksum or POSIX metadata columns — those were added by
// schema 0.1.
type legacyFile struct {
	path   string
	shard  int
	offset int64
	size   int64
}

// UpgradePreVersioned migrates an archive predating the config table
// entirely: it builds a fresh index with the current schema, copies
// every directory and file entry across, computes each file's CRC32C
// by reading its shard bytes (shard files are untouched by schema
// migration), then replaces the old index with the new one. Progress
// is recorded in a zstd-compressed CBOR manifest sidecar so a crashed
// run leaves evidence of how far it got; the manifest is removed on
// success.
func UpgradePreVersioned(ctx context.Context, basePath string, clk clock.Clock, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	runID := uuid.NewString()
	stats := Stats{RunID: runID}

	oldIndexPath := archive.IndexPath(basePath)
	tempNewPath := fmt.Sprintf("%s-migrating-%s", basePath, runID)

	oldDirs, oldFiles, err := readLegacyIndex(ctx, oldIndexPath, logger)
	if err != nil {
		return stats, fmt.Errorf("migration: reading legacy index %s: %w", oldIndexPath, err)
	}

	if err := writeManifest(basePath, manifest{
		RunID:            runID,
		BasePath:         basePath,
		SourceIndexPath:  oldIndexPath,
		DirCountAtStart:  len(oldDirs),
		FileCountAtStart: len(oldFiles),
		StartedAtNs:      clk.Now().UnixNano(),
	}); err != nil {
		logger.Warn("migration: writing progress manifest failed, continuing without it", "run_id", runID, "error", err)
	}

	newIdx, err := index.Open(ctx, index.Config{Path: tempNewPath, Mode: index.ReadWrite, Logger: logger})
	if err != nil {
		return stats, fmt.Errorf("migration: creating fresh index at %s: %w", tempNewPath, err)
	}

	shardStore, err := shard.Open(shard.Config{BasePath: basePath, Mode: shard.ReadOnly, Logger: logger})
	if err != nil {
		newIdx.Close()
		os.Remove(tempNewPath)
		return stats, fmt.Errorf("migration: opening shard store at %s: %w", basePath, err)
	}

	if err := migrateEntries(ctx, newIdx, shardStore, oldDirs, oldFiles, &stats); err != nil {
		newIdx.Close()
		shardStore.Close()
		os.Remove(tempNewPath)
		return stats, fmt.Errorf("migration: copying entries: %w", err)
	}

	if err := newIdx.Close(); err != nil {
		shardStore.Close()
		return stats, fmt.Errorf("migration: closing new index: %w", err)
	}
	if err := shardStore.Close(); err != nil {
		return stats, fmt.Errorf("migration: closing shard store: %w", err)
	}

	if err := archive.RemoveIndexFile(oldIndexPath); err != nil {
		return stats, fmt.Errorf("migration: removing old index %s: %w", oldIndexPath, err)
	}
	if err := os.Rename(tempNewPath, basePath); err != nil {
		return stats, fmt.Errorf("migration: putting new index in place at %s: %w", basePath, err)
	}
	removeManifest(basePath)

	logger.Info("migration: pre-versioned upgrade complete",
		"run_id", runID, "base_path", basePath,
		"dirs_migrated", stats.DirsMigrated, "files_migrated", stats.FilesMigrated)
	return stats, nil
}

func migrateEntries(ctx context.Context, newIdx *index.Index, shardStore *shard.Store, oldDirs []legacyDir, oldFiles []legacyFile, stats *Stats) error {
	for _, d := range oldDirs {
		if d.path == "" {
			continue
		}
		if err := newIdx.InsertDir(ctx, index.DirInfo{EntryInfo: index.EntryInfo{Path: d.path}}, true); err != nil {
			return fmt.Errorf("migrating directory %s: %w", d.path, err)
		}
		stats.DirsMigrated++
	}

	for _, f := range oldFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := shardStore.Read(f.shard, f.offset, f.size)
		if err != nil {
			return fmt.Errorf("reading bytes for %s: %w", f.path, err)
		}
		crc := checksum.Of(data)
		entry := index.FileInfo{
			EntryInfo: index.EntryInfo{Path: f.path},
			Shard:     f.shard,
			Offset:    f.offset,
			Size:      f.size,
			Crc32c:    &crc,
		}
		if err := newIdx.InsertFile(ctx, entry); err != nil {
			return fmt.Errorf("migrating file %s: %w", f.path, err)
		}
		stats.FilesMigrated++
	}
	return nil
}

// readLegacyIndex reads the pre-versioned "directories(path)" and
// "files(path, shard, offset, size)" tables directly, since a
// pre-versioned database predates the dirs/files column layout this
// module's index package expects (grounded on the original's
// upgrade_from_unversioned, which reads the same two tables via
// ATTACH DATABASE).
func readLegacyIndex(ctx context.Context, path string, logger *slog.Logger) ([]legacyDir, []legacyFile, error) {
	pool, err := openRawPool(path, logger)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Put(conn)

	var dirs []legacyDir
	if err := sqlitex.Execute(conn, `SELECT path FROM directories`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				dirs = append(dirs, legacyDir{path: stmt.ColumnText(0)})
				return nil
			},
		}); err != nil {
		return nil, nil, fmt.Errorf("reading legacy directories table: %w", err)
	}

	var files []legacyFile
	if err := sqlitex.Execute(conn, `SELECT path, shard, offset, size FROM files`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				files = append(files, legacyFile{
					path:   stmt.ColumnText(0),
					shard:  int(stmt.ColumnInt64(1)),
					offset: stmt.ColumnInt64(2),
					size:   stmt.ColumnInt64(3),
				})
				return nil
			},
		}); err != nil {
		return nil, nil, fmt.Errorf("reading legacy files table: %w", err)
	}
	return dirs, files, nil
}
