// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/barecat-project/barecat/internal/barecaterr"
)

func TestIngestStoresStreamedContent(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)

	mode := uint32(0o644)
	uid := uint32(1000)
	gid := uint32(1000)
	if err := bc.Ingest(ctx, "a/b", strings.NewReader("streamed bytes"), 1234, &mode, &uid, &gid); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got, err := bc.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("streamed bytes")) {
		t.Fatalf("Get = %q, want %q", got, "streamed bytes")
	}

	stat, err := bc.StatPath(ctx, "a/b")
	if err != nil {
		t.Fatalf("StatPath: %v", err)
	}
	if stat.Mode == nil || *stat.Mode != mode {
		t.Fatalf("Mode = %v, want %d", stat.Mode, mode)
	}
	if stat.MtimeNs == nil || *stat.MtimeNs != 1234 {
		t.Fatalf("MtimeNs = %v, want 1234", stat.MtimeNs)
	}
}

type erroringReader struct{ afterBytes int }

func (r *erroringReader) Read(p []byte) (int, error) {
	if r.afterBytes <= 0 {
		return 0, errors.New("boom")
	}
	n := len(p)
	if n > r.afterBytes {
		n = r.afterBytes
	}
	for i := range p[:n] {
		p[i] = 'x'
	}
	r.afterBytes -= n
	return n, nil
}

func TestIngestMidStreamFailureLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)

	err := bc.Ingest(ctx, "broken", &erroringReader{afterBytes: 4}, 0, nil, nil, nil)
	var pathErr *barecaterr.PathError
	if !errors.As(err, &pathErr) || !errors.Is(err, barecaterr.ErrIngestFailed) {
		t.Fatalf("Ingest mid-stream failure: got %v, want *barecaterr.PathError wrapping ErrIngestFailed", err)
	}
	if bc.Contains(ctx, "broken") {
		t.Fatalf("Contains(broken) = true after failed ingest, want false")
	}
}

func TestEmitStreamsFileContent(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	if err := bc.Put(ctx, "a", []byte("emit me"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}

	er, err := bc.Emit(ctx, "a")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if er.Size != 7 {
		t.Fatalf("Size = %d, want 7", er.Size)
	}
	data, err := io.ReadAll(er)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(data, []byte("emit me")) {
		t.Fatalf("ReadAll = %q, want %q", data, "emit me")
	}
}
