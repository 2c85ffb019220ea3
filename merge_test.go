// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/barecat-project/barecat/internal/shard"
)

func TestMergeCopyCombinesSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src1 := filepath.Join(dir, "src1")
	bc1, err := Open(ctx, Config{BasePath: src1, Mode: ReadWriteMode})
	if err != nil {
		t.Fatalf("Open(src1): %v", err)
	}
	if err := bc1.Put(ctx, "a", []byte("from-src1"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bc1.Close(); err != nil {
		t.Fatalf("Close(src1): %v", err)
	}

	src2 := filepath.Join(dir, "src2")
	bc2, err := Open(ctx, Config{BasePath: src2, Mode: ReadWriteMode})
	if err != nil {
		t.Fatalf("Open(src2): %v", err)
	}
	if err := bc2.Put(ctx, "b", []byte("from-src2"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bc2.Close(); err != nil {
		t.Fatalf("Close(src2): %v", err)
	}

	outPath := filepath.Join(dir, "out")
	stats, err := Merge(ctx, []string{src1, src2}, outPath, shard.SizeUnlimited, MergeCopy, DuplicateFail)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.FilesCopied != 2 {
		t.Fatalf("FilesCopied = %d, want 2", stats.FilesCopied)
	}

	out, err := Open(ctx, Config{BasePath: outPath, Mode: ReadOnlyMode})
	if err != nil {
		t.Fatalf("Open(out): %v", err)
	}
	defer out.Close()

	a, err := out.Get(ctx, "a")
	if err != nil || !bytes.Equal(a, []byte("from-src1")) {
		t.Fatalf("Get(a) = (%q, %v), want (from-src1, nil)", a, err)
	}
	b, err := out.Get(ctx, "b")
	if err != nil || !bytes.Equal(b, []byte("from-src2")) {
		t.Fatalf("Get(b) = (%q, %v), want (from-src2, nil)", b, err)
	}
}

func TestMergeSymlinkRejectsAppendPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	bc, err := Open(ctx, Config{BasePath: src, Mode: ReadWriteMode})
	if err != nil {
		t.Fatalf("Open(src): %v", err)
	}
	if err := bc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	outPath := filepath.Join(dir, "out")
	if _, err := Merge(ctx, []string{src}, outPath, shard.SizeUnlimited, MergeSymlink, DuplicateAppend); err == nil {
		t.Fatalf("Merge(MergeSymlink, DuplicateAppend): expected error")
	}
}
