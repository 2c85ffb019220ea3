// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"io"

	"github.com/barecat-project/barecat/internal/barecaterr"
	"github.com/barecat-project/barecat/internal/index"
)

// Ingest streams content from r into the shard store and inserts a
// file entry at path, without requiring the whole file to be buffered
// in memory first (spec §6's "streaming byte ingress", the primitive
// the tar/zip merge adapters are built on). mode, uid, and gid are
// optional POSIX metadata; any may be nil.
//
// If r fails mid-stream, the shard is truncated back to its pre-call
// length and the error is reported as IngestFailed; no index row is
// inserted.
func (b *Barecat) Ingest(ctx context.Context, path string, r io.Reader, mtimeNs int64, mode, uid, gid *uint32) error {
	if err := b.raiseIfReadOnly("ingest"); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	writtenShard, offset, size, crc, err := b.shard.AppendStream(r)
	if err != nil {
		return barecaterr.IngestFailed(path, err)
	}

	entry := index.FileInfo{
		EntryInfo: index.EntryInfo{Path: path, Mode: mode, UID: uid, GID: gid, MtimeNs: &mtimeNs},
		Shard:     writtenShard,
		Offset:    offset,
		Size:      size,
		Crc32c:    &crc,
	}
	if err := b.idx.InsertFile(ctx, entry); err != nil {
		return err
	}
	return nil
}

// EmitReader is returned by Emit: a size-known, streamable view onto a
// file's bytes for adapters writing out to tar, zip, or a network
// connection (spec §6's "streaming byte egress").
type EmitReader struct {
	Size int64
	io.Reader
}

// Emit returns a streaming reader over path's bytes along with its
// size, without loading the whole file into memory up front.
func (b *Barecat) Emit(ctx context.Context, path string) (*EmitReader, error) {
	handle, err := b.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &EmitReader{Size: handle.Size(), Reader: handle}, nil
}
