// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"bytes"
	"context"
	"testing"

	"github.com/barecat-project/barecat/internal/shard"
)

func TestReshardViaFacadeConsolidatesShards(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir() + "/archive"

	bc, err := Open(ctx, Config{BasePath: base, Mode: ReadWriteMode, ShardSizeLimit: 10})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer bc.Close()

	for _, name := range []string{"a", "b", "c"} {
		if err := bc.Put(ctx, name, bytes.Repeat([]byte(name), 10), false); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}

	if n, err := shard.NumShards(base); err != nil || n != 3 {
		t.Fatalf("NumShards before reshard = (%d, %v), want 3", n, err)
	}

	stats, err := bc.Reshard(ctx, shard.SizeUnlimited)
	if err != nil {
		t.Fatalf("Reshard: %v", err)
	}
	if stats.ShardsAfter != 1 {
		t.Fatalf("ShardsAfter = %d, want 1", stats.ShardsAfter)
	}

	// The facade's own shard handle must be usable immediately after
	// Reshard without a separate reopen by the caller.
	got, err := bc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) after reshard: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte("a"), 10)) {
		t.Fatalf("Get(a) after reshard = %q", got)
	}
}

func TestReshardOnReadOnlyArchiveFails(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir() + "/archive"

	rw, err := Open(ctx, Config{BasePath: base, Mode: ReadWriteMode})
	if err != nil {
		t.Fatalf("Open(ReadWriteMode): %v", err)
	}
	if err := rw.Put(ctx, "a", []byte("hello"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ro, err := Open(ctx, Config{BasePath: base, Mode: ReadOnlyMode})
	if err != nil {
		t.Fatalf("Open(ReadOnlyMode): %v", err)
	}
	defer ro.Close()

	if _, err := ro.Reshard(ctx, shard.SizeUnlimited); err == nil {
		t.Fatalf("Reshard on read-only archive: expected error")
	}
}
