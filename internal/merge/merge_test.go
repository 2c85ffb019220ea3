// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
)

type testArchive struct {
	basePath string
	idx      *index.Index
	store    *shard.Store
}

func newTestArchive(t *testing.T, name string, shardLimit int64) *testArchive {
	t.Helper()
	base := filepath.Join(t.TempDir(), name)

	idx, err := index.Open(context.Background(), index.Config{Path: base, Mode: index.ReadWrite})
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	store, err := shard.Open(shard.Config{BasePath: base, ShardSizeLimit: shardLimit, Mode: shard.ReadWrite})
	if err != nil {
		t.Fatalf("shard.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &testArchive{basePath: base, idx: idx, store: store}
}

func (a *testArchive) put(t *testing.T, path string, data []byte) {
	t.Helper()
	shardNum, offset, size, crc, err := a.store.Append(data)
	if err != nil {
		t.Fatalf("Append(%s): %v", path, err)
	}
	if err := a.idx.InsertFile(context.Background(), index.FileInfo{
		EntryInfo: index.EntryInfo{Path: path},
		Shard:     shardNum, Offset: offset, Size: size, Crc32c: &crc,
	}); err != nil {
		t.Fatalf("InsertFile(%s): %v", path, err)
	}
}

func TestCopySourceBasic(t *testing.T) {
	ctx := context.Background()
	src := newTestArchive(t, "src", shard.SizeUnlimited)
	src.put(t, "a/one", []byte("one"))
	src.put(t, "a/two", []byte("two"))

	dst := newTestArchive(t, "dst", shard.SizeUnlimited)

	stats, err := CopySource(ctx, src.idx, src.store, dst.idx, dst.store, Fail)
	if err != nil {
		t.Fatalf("CopySource: %v", err)
	}
	if stats.FilesCopied != 2 {
		t.Fatalf("FilesCopied = %d, want 2", stats.FilesCopied)
	}

	f, err := dst.idx.LookupFile(ctx, "a/one")
	if err != nil {
		t.Fatalf("LookupFile(a/one): %v", err)
	}
	got, err := dst.store.Read(f.Shard, f.Offset, f.Size)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("one")) {
		t.Fatalf("Read(a/one) = %q, want one", got)
	}
}

func TestCopySourceDuplicatePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("fail", func(t *testing.T) {
		src := newTestArchive(t, "src", shard.SizeUnlimited)
		src.put(t, "x", []byte("from-src"))
		dst := newTestArchive(t, "dst", shard.SizeUnlimited)
		dst.put(t, "x", []byte("from-dst"))

		if _, err := CopySource(ctx, src.idx, src.store, dst.idx, dst.store, Fail); err == nil {
			t.Fatalf("expected CopySource with Fail policy to error on duplicate path")
		}
	})

	t.Run("ignore keep first", func(t *testing.T) {
		src := newTestArchive(t, "src", shard.SizeUnlimited)
		src.put(t, "x", []byte("from-src"))
		dst := newTestArchive(t, "dst", shard.SizeUnlimited)
		dst.put(t, "x", []byte("from-dst"))

		stats, err := CopySource(ctx, src.idx, src.store, dst.idx, dst.store, IgnoreKeepFirst)
		if err != nil {
			t.Fatalf("CopySource: %v", err)
		}
		if stats.FilesSkipped != 1 {
			t.Fatalf("FilesSkipped = %d, want 1", stats.FilesSkipped)
		}
		f, err := dst.idx.LookupFile(ctx, "x")
		if err != nil {
			t.Fatalf("LookupFile: %v", err)
		}
		got, _ := dst.store.Read(f.Shard, f.Offset, f.Size)
		if !bytes.Equal(got, []byte("from-dst")) {
			t.Fatalf("x = %q, want from-dst to win (keep first)", got)
		}
	})

	t.Run("append", func(t *testing.T) {
		src := newTestArchive(t, "src", shard.SizeUnlimited)
		src.put(t, "x", []byte("from-src"))
		dst := newTestArchive(t, "dst", shard.SizeUnlimited)
		dst.put(t, "x", []byte("from-dst"))

		stats, err := CopySource(ctx, src.idx, src.store, dst.idx, dst.store, Append)
		if err != nil {
			t.Fatalf("CopySource: %v", err)
		}
		if stats.FilesCopied != 1 {
			t.Fatalf("FilesCopied = %d, want 1", stats.FilesCopied)
		}
		f, err := dst.idx.LookupFile(ctx, "x")
		if err != nil {
			t.Fatalf("LookupFile: %v", err)
		}
		got, _ := dst.store.Read(f.Shard, f.Offset, f.Size)
		if !bytes.Equal(got, []byte("from-src")) {
			t.Fatalf("x = %q, want from-src to win (append policy)", got)
		}
	})
}

func TestSymlinkSourceLinksShardsWithoutCopyingBytes(t *testing.T) {
	ctx := context.Background()
	src := newTestArchive(t, "src", shard.SizeUnlimited)
	src.put(t, "a", []byte("hello"))

	dst := newTestArchive(t, "dst", shard.SizeUnlimited)
	// shardOffset must skip past the destination's own shard 0.
	shardsAdded, stats, err := SymlinkSource(ctx, src.basePath, src.idx, dst.basePath, dst.idx, 1, IgnoreKeepFirst)
	if err != nil {
		t.Fatalf("SymlinkSource: %v", err)
	}
	if shardsAdded != 1 {
		t.Fatalf("shardsAdded = %d, want 1", shardsAdded)
	}
	if stats.ShardFilesLinked != 1 || stats.FilesCopied != 1 {
		t.Fatalf("stats = %+v, want 1 linked shard and 1 copied file", stats)
	}

	f, err := dst.idx.LookupFile(ctx, "a")
	if err != nil {
		t.Fatalf("LookupFile(a): %v", err)
	}
	if f.Shard != 1 {
		t.Fatalf("a.Shard = %d, want 1 (shardOffset applied)", f.Shard)
	}

	dst.store.Close()
	reopened, err := shard.Open(shard.Config{BasePath: dst.basePath, Mode: shard.ReadOnly})
	if err != nil {
		t.Fatalf("reopening dst store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Read(f.Shard, f.Offset, f.Size)
	if err != nil {
		t.Fatalf("Read through symlinked shard: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Read = %q, want hello", got)
	}
}

func TestSymlinkSourceRejectsAppendPolicy(t *testing.T) {
	ctx := context.Background()
	src := newTestArchive(t, "src", shard.SizeUnlimited)
	dst := newTestArchive(t, "dst", shard.SizeUnlimited)

	if _, _, err := SymlinkSource(ctx, src.basePath, src.idx, dst.basePath, dst.idx, 1, Append); err == nil {
		t.Fatalf("expected SymlinkSource to reject the Append duplicate policy")
	}
}
