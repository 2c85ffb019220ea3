// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package defrag

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/barecat-project/barecat/internal/index"
	"github.com/barecat-project/barecat/internal/shard"
)

func newArchive(t *testing.T) (*index.Index, *shard.Store) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "archive")

	idx, err := index.Open(context.Background(), index.Config{Path: base, Mode: index.ReadWrite})
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	store, err := shard.Open(shard.Config{BasePath: base, ShardSizeLimit: shard.SizeUnlimited, Mode: shard.ReadWrite})
	if err != nil {
		t.Fatalf("shard.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return idx, store
}

func putFile(t *testing.T, ctx context.Context, idx *index.Index, store *shard.Store, path string, data []byte) {
	t.Helper()
	shardNum, offset, size, crc, err := store.Append(data)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := idx.InsertFile(ctx, index.FileInfo{
		EntryInfo: index.EntryInfo{Path: path},
		Shard:     shardNum, Offset: offset, Size: size, Crc32c: &crc,
	}); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
}

func TestFullCompactsAfterDelete(t *testing.T) {
	ctx := context.Background()
	idx, store := newArchive(t)

	putFile(t, ctx, idx, store, "a", bytes.Repeat([]byte("A"), 10))
	putFile(t, ctx, idx, store, "b", bytes.Repeat([]byte("B"), 10))
	putFile(t, ctx, idx, store, "c", bytes.Repeat([]byte("C"), 10))

	if _, err := idx.DeleteFile(ctx, "a"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	stats, err := Full(ctx, idx, store)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if stats.FilesMoved != 2 {
		t.Fatalf("FilesMoved = %d, want 2 (b and c shift down)", stats.FilesMoved)
	}

	b, err := idx.LookupFile(ctx, "b")
	if err != nil {
		t.Fatalf("LookupFile(b): %v", err)
	}
	if b.Offset != 0 {
		t.Fatalf("b.Offset = %d, want 0 after compaction", b.Offset)
	}
	data, err := store.Read(b.Shard, b.Offset, b.Size)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte("B"), 10)) {
		t.Fatalf("Read after compaction = %q, want all-B", data)
	}

	length, err := store.Length(0)
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if length != 20 {
		t.Fatalf("shard 0 length after Full = %d, want 20", length)
	}

	// Running again must be a no-op.
	stats2, err := Full(ctx, idx, store)
	if err != nil {
		t.Fatalf("second Full: %v", err)
	}
	if stats2.FilesMoved != 0 {
		t.Fatalf("second Full moved %d files, want 0 (idempotent)", stats2.FilesMoved)
	}
}

func TestQuickRespectsBudget(t *testing.T) {
	ctx := context.Background()
	idx, store := newArchive(t)

	putFile(t, ctx, idx, store, "a", bytes.Repeat([]byte("A"), 10))
	putFile(t, ctx, idx, store, "b", bytes.Repeat([]byte("B"), 10))
	if _, err := idx.DeleteFile(ctx, "a"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	stats, err := Quick(ctx, idx, store, shard.SizeUnlimited, 0)
	if err != nil {
		t.Fatalf("Quick: %v", err)
	}
	if stats.FilesMoved != 0 {
		t.Fatalf("Quick with zero budget moved %d files, want 0", stats.FilesMoved)
	}

	stats, err = Quick(ctx, idx, store, shard.SizeUnlimited, time.Second)
	if err != nil {
		t.Fatalf("Quick: %v", err)
	}
	if stats.FilesMoved != 1 {
		t.Fatalf("Quick moved %d files, want 1", stats.FilesMoved)
	}
}

func TestSmartMovesContiguousRunAsOneBlock(t *testing.T) {
	ctx := context.Background()
	idx, store := newArchive(t)

	putFile(t, ctx, idx, store, "a", bytes.Repeat([]byte("A"), 10))
	putFile(t, ctx, idx, store, "b", bytes.Repeat([]byte("B"), 10))
	putFile(t, ctx, idx, store, "c", bytes.Repeat([]byte("C"), 10))
	if _, err := idx.DeleteFile(ctx, "a"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	stats, err := Smart(ctx, idx, store)
	if err != nil {
		t.Fatalf("Smart: %v", err)
	}
	if stats.FilesMoved != 2 {
		t.Fatalf("FilesMoved = %d, want 2 (b and c as one contiguous run)", stats.FilesMoved)
	}

	b, err := idx.LookupFile(ctx, "b")
	if err != nil {
		t.Fatalf("LookupFile(b): %v", err)
	}
	c, err := idx.LookupFile(ctx, "c")
	if err != nil {
		t.Fatalf("LookupFile(c): %v", err)
	}
	if b.Offset != 0 || c.Offset != 10 {
		t.Fatalf("after Smart, b.Offset=%d c.Offset=%d, want 0 and 10", b.Offset, c.Offset)
	}
}
