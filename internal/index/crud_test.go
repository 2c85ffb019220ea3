// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/barecat-project/barecat/internal/barecaterr"
)

func openIndex(t *testing.T, mode Mode) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive")
	idx, err := Open(context.Background(), Config{Path: path, Mode: mode})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestInsertAndLookupFile(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	crc := uint32(0xdeadbeef)
	entry := FileInfo{
		EntryInfo: EntryInfo{Path: "a/b/c.txt"},
		Shard:     0, Offset: 10, Size: 20, Crc32c: &crc,
	}
	if err := idx.InsertFile(ctx, entry); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}

	got, err := idx.LookupFile(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("LookupFile: %v", err)
	}
	if got.Shard != 0 || got.Offset != 10 || got.Size != 20 || got.Crc32c == nil || *got.Crc32c != crc {
		t.Fatalf("LookupFile returned %+v, want matching entry", got)
	}

	// Ancestor directories must have been materialized.
	if _, err := idx.LookupDir(ctx, "a"); err != nil {
		t.Fatalf("LookupDir(a): %v", err)
	}
	if _, err := idx.LookupDir(ctx, "a/b"); err != nil {
		t.Fatalf("LookupDir(a/b): %v", err)
	}

	dir, err := idx.LookupDir(ctx, "a/b")
	if err != nil {
		t.Fatalf("LookupDir: %v", err)
	}
	if dir.NumFiles != 1 {
		t.Fatalf("a/b NumFiles = %d, want 1", dir.NumFiles)
	}
}

func TestInsertFileDuplicateFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	entry := FileInfo{EntryInfo: EntryInfo{Path: "x"}, Size: 1}
	if err := idx.InsertFile(ctx, entry); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	err := idx.InsertFile(ctx, entry)
	if err == nil {
		t.Fatalf("expected duplicate InsertFile to fail")
	}
}

func TestLookupFileNotFound(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	_, err := idx.LookupFile(ctx, "missing")
	var pathErr *barecaterr.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("LookupFile error = %v, want a *barecaterr.PathError", err)
	}
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	entry := FileInfo{EntryInfo: EntryInfo{Path: "a/b"}, Size: 5}
	if err := idx.InsertFile(ctx, entry); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	deleted, err := idx.DeleteFile(ctx, "a/b")
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if deleted.Path != "a/b" {
		t.Fatalf("DeleteFile returned path %q, want a/b", deleted.Path)
	}
	if _, err := idx.LookupFile(ctx, "a/b"); err == nil {
		t.Fatalf("expected a/b to be gone after DeleteFile")
	}

	dir, err := idx.LookupDir(ctx, "a")
	if err != nil {
		t.Fatalf("LookupDir: %v", err)
	}
	if dir.NumFiles != 0 {
		t.Fatalf("a NumFiles after delete = %d, want 0", dir.NumFiles)
	}
}

func TestInsertFileOnExistingDirPathFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertDir(ctx, DirInfo{EntryInfo: EntryInfo{Path: "x"}}, false); err != nil {
		t.Fatalf("InsertDir: %v", err)
	}
	err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "x"}, Size: 1})
	if !errors.Is(err, barecaterr.ErrIsADirectory) {
		t.Fatalf("InsertFile over an existing dir path: got %v, want ErrIsADirectory", err)
	}
}

func TestInsertDirOnExistingFilePathFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "x"}, Size: 1}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	err := idx.InsertDir(ctx, DirInfo{EntryInfo: EntryInfo{Path: "x"}}, false)
	if !errors.Is(err, barecaterr.ErrNotADirectory) {
		t.Fatalf("InsertDir over an existing file path: got %v, want ErrNotADirectory", err)
	}
}

func TestRenameFileOntoExistingDirFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "f"}, Size: 1}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := idx.InsertDir(ctx, DirInfo{EntryInfo: EntryInfo{Path: "d"}}, false); err != nil {
		t.Fatalf("InsertDir: %v", err)
	}
	err := idx.Rename(ctx, "f", "d")
	if !errors.Is(err, barecaterr.ErrIsADirectory) {
		t.Fatalf("Rename file onto existing dir: got %v, want ErrIsADirectory", err)
	}
}

func TestRenameDirOntoExistingFileFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertDir(ctx, DirInfo{EntryInfo: EntryInfo{Path: "d"}}, false); err != nil {
		t.Fatalf("InsertDir: %v", err)
	}
	if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "f"}, Size: 1}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	err := idx.Rename(ctx, "d", "f")
	if !errors.Is(err, barecaterr.ErrNotADirectory) {
		t.Fatalf("Rename dir onto existing file: got %v, want ErrNotADirectory", err)
	}
}

func TestDeleteFileOnDirPathReturnsIsADirectory(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "a/b"}, Size: 1}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	_, err := idx.DeleteFile(ctx, "a")
	if !errors.Is(err, barecaterr.ErrIsADirectory) {
		t.Fatalf("DeleteFile on a directory path: got %v, want ErrIsADirectory", err)
	}
}

func TestDeleteNonEmptyDirFails(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "a/b"}, Size: 1}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := idx.DeleteDir(ctx, "a"); err == nil {
		t.Fatalf("expected DeleteDir to fail on a non-empty directory")
	}
}

func TestIterAllFilesAndCounts(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	paths := []string{"a", "b/c", "b/d", "e/f/g"}
	for i, p := range paths {
		if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: p}, Shard: 0, Offset: int64(i * 10), Size: 10}); err != nil {
			t.Fatalf("InsertFile(%s): %v", p, err)
		}
	}

	var seen []string
	if err := idx.IterAllFiles(ctx, Path, func(f FileInfo) bool {
		seen = append(seen, f.Path)
		return true
	}); err != nil {
		t.Fatalf("IterAllFiles: %v", err)
	}
	if len(seen) != len(paths) {
		t.Fatalf("IterAllFiles visited %d files, want %d", len(seen), len(paths))
	}

	n, err := idx.NumFiles(ctx)
	if err != nil {
		t.Fatalf("NumFiles: %v", err)
	}
	if int(n) != len(paths) {
		t.Fatalf("NumFiles = %d, want %d", n, len(paths))
	}
}

func TestUseTriggersAndShardSizeLimit(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	enabled, err := idx.UseTriggers(ctx)
	if err != nil {
		t.Fatalf("UseTriggers: %v", err)
	}
	if !enabled {
		t.Fatalf("expected triggers enabled by default")
	}
	if err := idx.SetUseTriggers(ctx, false); err != nil {
		t.Fatalf("SetUseTriggers: %v", err)
	}
	enabled, err = idx.UseTriggers(ctx)
	if err != nil {
		t.Fatalf("UseTriggers: %v", err)
	}
	if enabled {
		t.Fatalf("expected triggers disabled after SetUseTriggers(false)")
	}

	if err := idx.SetShardSizeLimit(ctx, 4096); err != nil {
		t.Fatalf("SetShardSizeLimit: %v", err)
	}
	limit, err := idx.ShardSizeLimit(ctx)
	if err != nil {
		t.Fatalf("ShardSizeLimit: %v", err)
	}
	if limit != 4096 {
		t.Fatalf("ShardSizeLimit = %d, want 4096", limit)
	}
}

func TestReadOnlyIndexRejectsWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive")

	rw, err := Open(ctx, Config{Path: path, Mode: ReadWrite})
	if err != nil {
		t.Fatalf("Open read-write: %v", err)
	}
	if err := rw.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "seed"}, Size: 1}); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ro, err := Open(ctx, Config{Path: path, Mode: ReadOnly})
	if err != nil {
		t.Fatalf("Open read-only: %v", err)
	}
	defer ro.Close()

	if err := ro.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: "new"}, Size: 1}); err == nil {
		t.Fatalf("expected InsertFile to fail against a read-only index")
	}
	if _, err := ro.LookupFile(ctx, "seed"); err != nil {
		t.Fatalf("LookupFile on read-only index: %v", err)
	}
}

func TestRecomputeStats(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, ReadWrite)

	if err := idx.SetUseTriggers(ctx, false); err != nil {
		t.Fatalf("SetUseTriggers: %v", err)
	}
	for i, p := range []string{"a/b/c", "a/b/d", "a/e"} {
		if err := idx.InsertFile(ctx, FileInfo{EntryInfo: EntryInfo{Path: p}, Shard: 0, Offset: int64(i * 100), Size: 100}); err != nil {
			t.Fatalf("InsertFile(%s): %v", p, err)
		}
	}
	if err := idx.SetUseTriggers(ctx, true); err != nil {
		t.Fatalf("SetUseTriggers: %v", err)
	}

	if err := idx.RecomputeStats(ctx); err != nil {
		t.Fatalf("RecomputeStats: %v", err)
	}

	root, err := idx.LookupDir(ctx, "a")
	if err != nil {
		t.Fatalf("LookupDir(a): %v", err)
	}
	if root.NumFilesTree != 3 {
		t.Fatalf("a NumFilesTree = %d, want 3", root.NumFilesTree)
	}
	if root.SizeTree != 300 {
		t.Fatalf("a SizeTree = %d, want 300", root.SizeTree)
	}
}
