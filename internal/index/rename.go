// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/barecat-project/barecat/internal/barecaterr"
	idxpath "github.com/barecat-project/barecat/internal/path"
)

// Rename moves a file or directory (and, for a directory, its entire
// subtree) from oldPath to newPath in one transaction, so stats
// propagation fires symmetrically on both the old and new location
// (spec §4.4: "Implemented as delete-then-insert at the relational
// level"). Subtree members are rewritten in bulk via GLOB-pattern
// matching on the escaped old prefix, following the original index's
// rename implementation, rather than recursing file by file.
func (idx *Index) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPath, ok := idxpath.Validate(oldPath)
	if !ok {
		return fmt.Errorf("index: invalid source path %q", oldPath)
	}
	newPath, ok = idxpath.Validate(newPath)
	if !ok || newPath == "" {
		return fmt.Errorf("index: invalid destination path %q", newPath)
	}

	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		isFile, isDir, err := entryKindLocked(conn, oldPath)
		if err != nil {
			return err
		}
		if !isFile && !isDir {
			return barecaterr.NotFound("rename", oldPath)
		}

		newParent := idxpath.Parent(newPath)
		if err := ensureAncestorsLocked(conn, newParent); err != nil {
			return err
		}

		if isFile {
			return renameFileLocked(conn, oldPath, newPath, newParent)
		}
		return renameDirLocked(conn, oldPath, newPath, newParent)
	})
}

func entryKindLocked(conn *sqlite.Conn, path string) (isFile, isDir bool, err error) {
	isFile, err = pathExistsInLocked(conn, "files", path)
	if err != nil || isFile {
		return isFile, false, err
	}
	isDir, err = pathExistsInLocked(conn, "dirs", path)
	return false, isDir, err
}

func renameFileLocked(conn *sqlite.Conn, oldPath, newPath, newParent string) error {
	isFile, isDir, err := entryKindLocked(conn, newPath)
	if err != nil {
		return err
	}
	if isDir {
		return barecaterr.IsADirectory("rename", newPath)
	}
	if isFile {
		return barecaterr.AlreadyExists("rename", newPath)
	}
	if err := sqlitex.Execute(conn,
		`INSERT INTO files(`+fileColumns+`)
		 SELECT ?, ?, shard, offset, size, crc32c, mode, uid, gid, mtime_ns FROM files WHERE path = ?`,
		&sqlitex.ExecOptions{Args: []any{newPath, newParent, oldPath}}); err != nil {
		return err
	}
	return sqlitex.Execute(conn, `DELETE FROM files WHERE path = ?`,
		&sqlitex.ExecOptions{Args: []any{oldPath}})
}

func renameDirLocked(conn *sqlite.Conn, oldPath, newPath, newParent string) error {
	isFile, isDir, err := entryKindLocked(conn, newPath)
	if err != nil {
		return err
	}
	if isFile {
		return barecaterr.NotADirectory("rename", newPath)
	}
	if isDir {
		return barecaterr.AlreadyExists("rename", newPath)
	}

	oldLen := len(oldPath)
	subtreeGlob := idxpath.SubtreeGlob(oldPath)

	// Descendants first (prefix swap via substr, preserving the
	// relative subtree shape), then the moved directory's own row.
	if err := sqlitex.Execute(conn,
		`UPDATE files SET
			path = ? || substr(path, ?),
			parent = CASE WHEN length(parent) = ? THEN ? ELSE ? || substr(parent, ?) END
		 WHERE path GLOB ?`,
		&sqlitex.ExecOptions{
			Args: []any{newPath, oldLen + 1, oldLen, newPath, newPath, oldLen + 1, subtreeGlob},
		}); err != nil {
		return fmt.Errorf("index: rewriting file subtree under %s: %w", oldPath, err)
	}
	if err := sqlitex.Execute(conn,
		`UPDATE dirs SET
			path = ? || substr(path, ?),
			parent = CASE WHEN length(parent) = ? THEN ? ELSE ? || substr(parent, ?) END
		 WHERE path GLOB ?`,
		&sqlitex.ExecOptions{
			Args: []any{newPath, oldLen + 1, oldLen, newPath, newPath, oldLen + 1, subtreeGlob},
		}); err != nil {
		return fmt.Errorf("index: rewriting dir subtree under %s: %w", oldPath, err)
	}
	if err := sqlitex.Execute(conn,
		`UPDATE dirs SET path = ?, parent = ? WHERE path = ?`,
		&sqlitex.ExecOptions{Args: []any{newPath, newParent, oldPath}}); err != nil {
		return fmt.Errorf("index: moving dir row %s: %w", oldPath, err)
	}
	return nil
}

// RemoveRecursively deletes a directory subtree: every descendant file
// and directory, then the directory's own row, via the same GLOB-bulk
// pattern as Rename. Deleting files before directories, and the
// directory's own row last, lets the stats triggers fire in dependency
// order the same way single-entry delete does.
func (idx *Index) RemoveRecursively(ctx context.Context, path string) error {
	path, ok := idxpath.Validate(path)
	if !ok {
		return fmt.Errorf("index: invalid path %q", path)
	}
	return idx.withWriter(ctx, func(conn *sqlite.Conn) error {
		subtreeGlob := idxpath.SubtreeGlob(path)
		if err := sqlitex.Execute(conn, `DELETE FROM files WHERE path GLOB ? OR path = ?`,
			&sqlitex.ExecOptions{Args: []any{subtreeGlob, path}}); err != nil {
			return fmt.Errorf("index: deleting files under %s: %w", path, err)
		}
		if err := sqlitex.Execute(conn, `DELETE FROM dirs WHERE path GLOB ? AND path <> ''`,
			&sqlitex.ExecOptions{Args: []any{subtreeGlob}}); err != nil {
			return fmt.Errorf("index: deleting subdirs under %s: %w", path, err)
		}
		if path != "" {
			if err := sqlitex.Execute(conn, `DELETE FROM dirs WHERE path = ?`,
				&sqlitex.ExecOptions{Args: []any{path}}); err != nil {
				return fmt.Errorf("index: deleting dir row %s: %w", path, err)
			}
		}
		return nil
	})
}
