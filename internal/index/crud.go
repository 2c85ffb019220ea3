// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/barecat-project/barecat/internal/barecaterr"
	idxpath "github.com/barecat-project/barecat/internal/path"
)

const fileColumns = "path, parent, shard, offset, size, crc32c, mode, uid, gid, mtime_ns"
const dirColumns = "path, parent, num_subdirs, num_files, num_files_tree, size_tree, mode, uid, gid, mtime_ns"

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableUint32(v *uint32) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func scanOptionalUint32(stmt *sqlite.Stmt, col int) *uint32 {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	v := uint32(stmt.ColumnInt64(col))
	return &v
}

func scanOptionalInt64(stmt *sqlite.Stmt, col int) *int64 {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	v := stmt.ColumnInt64(col)
	return &v
}

func scanFileRow(stmt *sqlite.Stmt) FileInfo {
	return FileInfo{
		EntryInfo: EntryInfo{
			Path:    stmt.ColumnText(0),
			Mode:    scanOptionalUint32(stmt, 6),
			UID:     scanOptionalUint32(stmt, 7),
			GID:     scanOptionalUint32(stmt, 8),
			MtimeNs: scanOptionalInt64(stmt, 9),
		},
		Shard:  int(stmt.ColumnInt64(2)),
		Offset: stmt.ColumnInt64(3),
		Size:   stmt.ColumnInt64(4),
		Crc32c: scanOptionalUint32(stmt, 5),
	}
}

func scanDirRow(stmt *sqlite.Stmt) DirInfo {
	return DirInfo{
		EntryInfo: EntryInfo{
			Path:    stmt.ColumnText(0),
			Mode:    scanOptionalUint32(stmt, 6),
			UID:     scanOptionalUint32(stmt, 7),
			GID:     scanOptionalUint32(stmt, 8),
			MtimeNs: scanOptionalInt64(stmt, 9),
		},
		NumSubdirs:   stmt.ColumnInt64(2),
		NumFiles:     stmt.ColumnInt64(3),
		NumFilesTree: stmt.ColumnInt64(4),
		SizeTree:     stmt.ColumnInt64(5),
	}
}

// LookupFile returns the file entry at path, or a NotFound error.
func (idx *Index) LookupFile(ctx context.Context, path string) (FileInfo, error) {
	var result FileInfo
	found := false
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+fileColumns+` FROM files WHERE path = ?`,
			&sqlitex.ExecOptions{
				Args: []any{path},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					result = scanFileRow(stmt)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("index: looking up file %s: %w", path, err)
	}
	if !found {
		return FileInfo{}, barecaterr.NotFound("lookup_file", path)
	}
	return result, nil
}

// LookupDir returns the directory entry at path, or a NotFound error.
func (idx *Index) LookupDir(ctx context.Context, path string) (DirInfo, error) {
	var result DirInfo
	found := false
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+dirColumns+` FROM dirs WHERE path = ?`,
			&sqlitex.ExecOptions{
				Args: []any{path},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					result = scanDirRow(stmt)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return DirInfo{}, fmt.Errorf("index: looking up dir %s: %w", path, err)
	}
	if !found {
		return DirInfo{}, barecaterr.NotFound("lookup_dir", path)
	}
	return result, nil
}

// Exists reports whether path names a live file or directory.
func (idx *Index) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := idx.LookupFile(ctx, path); err == nil {
		return true, nil
	}
	if path == "" {
		return true, nil
	}
	if _, err := idx.LookupDir(ctx, path); err == nil {
		return true, nil
	}
	return false, nil
}

// InsertFile inserts a new file entry. It ensures every missing
// ancestor directory is created first (ancestors are materialized up
// to and including the root, ordered shallowest-first so dirs_ai_stats
// counts num_subdirs correctly at each level), then inserts the row
// inside one transaction so stats propagation (if enabled) is atomic
// with the insert, per spec §4.4/§4.5.
func (idx *Index) InsertFile(ctx context.Context, entry FileInfo) error {
	normalized, ok := idxpath.Validate(entry.Path)
	if !ok || normalized == "" {
		return fmt.Errorf("index: invalid file path %q", entry.Path)
	}
	entry.Path = normalized
	parent := idxpath.Parent(entry.Path)

	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		if err := ensureAncestorsLocked(conn, parent); err != nil {
			return err
		}
		if err := dirExistsLocked(conn, parent); err != nil {
			return err
		}
		isDir, err := pathExistsInLocked(conn, "dirs", entry.Path)
		if err != nil {
			return err
		}
		if isDir {
			return barecaterr.IsADirectory("add", entry.Path)
		}

		err = sqlitex.Execute(conn,
			`INSERT INTO files(`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					entry.Path, parent, entry.Shard, entry.Offset, entry.Size,
					nullableUint32(entry.Crc32c), nullableUint32(entry.Mode),
					nullableUint32(entry.UID), nullableUint32(entry.GID),
					nullableInt64(entry.MtimeNs),
				},
			})
		if err != nil {
			if isUniqueConstraintError(err) {
				return barecaterr.AlreadyExists("add", entry.Path)
			}
			return fmt.Errorf("index: inserting file %s: %w", entry.Path, err)
		}
		return nil
	})
}

// DeleteFile removes the file entry at path and returns it. Deleting a
// path that names a directory fails with IsADirectory rather than the
// NotFound that a bare files-table lookup would otherwise report.
func (idx *Index) DeleteFile(ctx context.Context, path string) (FileInfo, error) {
	entry, err := idx.LookupFile(ctx, path)
	if err != nil {
		if errors.Is(err, barecaterr.ErrNotFound) {
			if _, dirErr := idx.LookupDir(ctx, path); dirErr == nil {
				return FileInfo{}, barecaterr.IsADirectory("delete", path)
			}
		}
		return FileInfo{}, err
	}
	err = idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM files WHERE path = ?`,
			&sqlitex.ExecOptions{Args: []any{path}})
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("index: deleting file %s: %w", path, err)
	}
	return entry, nil
}

// InsertDir creates a directory entry. If existOk and the directory
// already exists, its row and counters are kept and only its mode,
// uid, gid and mtime are refreshed; otherwise a duplicate path returns
// AlreadyExists.
func (idx *Index) InsertDir(ctx context.Context, entry DirInfo, existOk bool) error {
	normalized, ok := idxpath.Validate(entry.Path)
	if !ok {
		return fmt.Errorf("index: invalid directory path %q", entry.Path)
	}
	entry.Path = normalized

	if entry.Path == "" {
		// The root always exists (seeded at schema creation); treat
		// mkdir("") as an idempotent metadata update.
		existOk = true
	}

	var parent any
	if entry.Path != "" {
		parent = idxpath.Parent(entry.Path)
	}

	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		if entry.Path != "" {
			if err := ensureAncestorsLocked(conn, idxpath.Parent(entry.Path)); err != nil {
				return err
			}
			isFile, err := pathExistsInLocked(conn, "files", entry.Path)
			if err != nil {
				return err
			}
			if isFile {
				return barecaterr.NotADirectory("mkdir", entry.Path)
			}
		}

		verb := "INSERT INTO"
		onConflict := ""
		if existOk {
			onConflict = ` ON CONFLICT(path) DO UPDATE SET mode = excluded.mode, uid = excluded.uid, gid = excluded.gid, mtime_ns = excluded.mtime_ns`
		}
		err := sqlitex.Execute(conn,
			verb+` dirs(`+dirColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+onConflict,
			&sqlitex.ExecOptions{
				Args: []any{
					entry.Path, parent, entry.NumSubdirs, entry.NumFiles,
					entry.NumFilesTree, entry.SizeTree,
					nullableUint32(entry.Mode), nullableUint32(entry.UID),
					nullableUint32(entry.GID), nullableInt64(entry.MtimeNs),
				},
			})
		if err != nil {
			if isUniqueConstraintError(err) {
				return barecaterr.AlreadyExists("mkdir", entry.Path)
			}
			return fmt.Errorf("index: inserting dir %s: %w", entry.Path, err)
		}
		return nil
	})
}

// DeleteDir removes an empty directory entry. Fails with
// DirectoryNotEmpty if it still has subdirectories or files.
func (idx *Index) DeleteDir(ctx context.Context, path string) error {
	dir, err := idx.LookupDir(ctx, path)
	if err != nil {
		return err
	}
	if dir.NumSubdirs > 0 || dir.NumFiles > 0 {
		return barecaterr.DirectoryNotEmpty("rmdir", path)
	}
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM dirs WHERE path = ?`,
			&sqlitex.ExecOptions{Args: []any{path}})
	})
}

// ensureAncestorsLocked materializes every missing ancestor of a
// not-yet-existing path, root first, so each insert's trigger (if
// enabled) increments num_subdirs on its own immediate parent in the
// correct order.
func ensureAncestorsLocked(conn *sqlite.Conn, parentOfNewEntry string) error {
	ancestors := append(idxpath.Ancestors(parentOfNewEntry), parentOfNewEntry)
	seen := make(map[string]bool, len(ancestors))
	for _, a := range ancestors {
		if seen[a] {
			continue
		}
		seen[a] = true

		var parent any
		if a != "" {
			parent = idxpath.Parent(a)
		}
		err := sqlitex.Execute(conn,
			`INSERT OR IGNORE INTO dirs(path, parent, num_subdirs, num_files, num_files_tree, size_tree)
			 VALUES (?, ?, 0, 0, 0, 0)`,
			&sqlitex.ExecOptions{Args: []any{a, parent}})
		if err != nil {
			return fmt.Errorf("index: materializing ancestor dir %q: %w", a, err)
		}
	}
	return nil
}

// dirExistsLocked verifies that path names an existing directory
// (used to turn a missing-parent situation, which ensureAncestorsLocked
// should already have prevented, into NotADirectory if the parent
// exists as a file instead).
func dirExistsLocked(conn *sqlite.Conn, path string) error {
	isFile, err := pathExistsInLocked(conn, "files", path)
	if err != nil {
		return fmt.Errorf("index: checking parent %q: %w", path, err)
	}
	if isFile {
		return barecaterr.NotADirectory("add", path)
	}
	return nil
}

// pathExistsInLocked reports whether path has a row in table, which
// must be either "files" or "dirs" — the two tables are siblings with
// disjoint UNIQUE constraints, so a path existing in one never blocks
// an insert into the other on its own; callers use this to enforce
// the file-XOR-directory invariant across both tables explicitly.
func pathExistsInLocked(conn *sqlite.Conn, table, path string) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn, `SELECT 1 FROM `+table+` WHERE path = ?`,
		&sqlitex.ExecOptions{
			Args: []any{path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	return exists, err
}

// isUniqueConstraintError reports whether err is a SQLite UNIQUE/PRIMARY
// KEY constraint violation, the signal for AlreadyExists. Matching on
// the driver's message substring mirrors the original implementation's
// own translation of IntegrityError into FileExistsBarecatError /
// IsADirectoryBarecatError / NotADirectoryBarecatError by message text.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return containsAny(msg, "UNIQUE constraint", "PRIMARY KEY constraint", "constraint failed: UNIQUE")
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
