// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ListDirFiles returns the direct file children of a directory.
func (idx *Index) ListDirFiles(ctx context.Context, dir string, order Order) ([]FileInfo, error) {
	var out []FileInfo
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+fileColumns+` FROM files WHERE parent = ?`+order.orderByClause(),
			&sqlitex.ExecOptions{
				Args: []any{dir},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, scanFileRow(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("index: listing files under %s: %w", dir, err)
	}
	return out, nil
}

// ListDirSubdirs returns the direct subdirectory children of a
// directory.
func (idx *Index) ListDirSubdirs(ctx context.Context, dir string, order Order) ([]DirInfo, error) {
	var out []DirInfo
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+dirColumns+` FROM dirs WHERE parent = ?`+order.orderByClause(),
			&sqlitex.ExecOptions{
				Args: []any{dir},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, scanDirRow(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("index: listing subdirs under %s: %w", dir, err)
	}
	return out, nil
}

// IterAllFiles calls yield for every live file entry in the given
// order. Iteration stops (without error) if yield returns false, and
// aborts with ctx.Err() if ctx is cancelled between rows.
func (idx *Index) IterAllFiles(ctx context.Context, order Order, yield func(FileInfo) bool) error {
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+fileColumns+` FROM files`+order.orderByClause(),
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					if err := ctx.Err(); err != nil {
						return err
					}
					if !yield(scanFileRow(stmt)) {
						return errStopIteration
					}
					return nil
				},
			})
	})
	return idx.unwrapStopHelper(err)
}

// IterAllDirs calls yield for every live directory entry in the given
// order.
func (idx *Index) IterAllDirs(ctx context.Context, order Order, yield func(DirInfo) bool) error {
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+dirColumns+` FROM dirs`+order.orderByClause(),
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					if err := ctx.Err(); err != nil {
						return err
					}
					if !yield(scanDirRow(stmt)) {
						return errStopIteration
					}
					return nil
				},
			})
	})
	return idx.unwrapStopHelper(err)
}

// GetLastFile returns the file with the highest (shard, offset): the
// file occupying the furthest position in the archive's last used
// shard.
func (idx *Index) GetLastFile(ctx context.Context) (FileInfo, bool, error) {
	var result FileInfo
	found := false
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+fileColumns+` FROM files ORDER BY shard DESC, offset DESC LIMIT 1`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					result = scanFileRow(stmt)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return FileInfo{}, false, fmt.Errorf("index: getting last file: %w", err)
	}
	return result, found, nil
}

// NumFiles returns the total number of live file entries.
func (idx *Index) NumFiles(ctx context.Context) (int64, error) {
	return idx.countRows(ctx, "files")
}

// NumDirs returns the total number of live directory entries,
// including the root.
func (idx *Index) NumDirs(ctx context.Context) (int64, error) {
	return idx.countRows(ctx, "dirs")
}

func (idx *Index) countRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := idx.withReader(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT COUNT(*) FROM `+table,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					n = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	if err != nil {
		return 0, fmt.Errorf("index: counting %s: %w", table, err)
	}
	return n, nil
}

// TotalSize returns the root directory's size_tree, the sum of every
// live file's size.
func (idx *Index) TotalSize(ctx context.Context) (int64, error) {
	root, err := idx.LookupDir(ctx, "")
	if err != nil {
		return 0, err
	}
	return root.SizeTree, nil
}

// errStopIteration is a sentinel used internally to end a
// sqlitex.Execute ResultFunc scan early without surfacing an error to
// the caller.
var errStopIteration = fmt.Errorf("index: iteration stopped")

func (idx *Index) unwrapStopHelper(err error) error {
	if err == errStopIteration {
		return nil
	}
	return err
}
