// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"
	"io"

	"github.com/barecat-project/barecat/internal/checksum"
	"github.com/barecat-project/barecat/internal/index"
)

// FileHandle is a seekable, read-only view onto one archive file's
// bytes, returned by [Barecat.Open]. It satisfies io.Reader,
// io.ReaderAt, io.Seeker, and io.Closer, mirroring the original
// archive's BarecatFileObject (spec §4.6's streaming read path).
type FileHandle struct {
	bc     *Barecat
	info   index.FileInfo
	cursor int64
	closed bool
}

// Open opens path for streaming read. The returned handle reads
// directly from the backing shard file; it does not load the whole
// file into memory the way Get does.
func (b *Barecat) Open(ctx context.Context, path string) (*FileHandle, error) {
	entry, err := b.idx.LookupFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &FileHandle{bc: b, info: entry}, nil
}

// Read implements io.Reader, advancing the handle's cursor.
func (h *FileHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("barecat: read from closed file handle for %s", h.info.Path)
	}
	n, err := h.ReadAt(p, h.cursor)
	h.cursor += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt: reads into p starting at off within
// the logical file, independent of the handle's cursor.
func (h *FileHandle) ReadAt(p []byte, off int64) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("barecat: read from closed file handle for %s", h.info.Path)
	}
	if off < 0 {
		return 0, fmt.Errorf("barecat: negative offset %d", off)
	}
	if off >= h.info.Size {
		return 0, io.EOF
	}
	toRead := int64(len(p))
	remaining := h.info.Size - off
	if toRead > remaining {
		toRead = remaining
	}
	if toRead == 0 {
		return 0, nil
	}
	data, err := h.bc.shard.Read(h.info.Shard, h.info.Offset+off, toRead)
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if toRead < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (h *FileHandle) Seek(offset int64, whence int) (int64, error) {
	var newCursor int64
	switch whence {
	case io.SeekStart:
		newCursor = offset
	case io.SeekCurrent:
		newCursor = h.cursor + offset
	case io.SeekEnd:
		newCursor = h.info.Size + offset
	default:
		return 0, fmt.Errorf("barecat: invalid whence %d", whence)
	}
	if newCursor < 0 {
		return 0, fmt.Errorf("barecat: negative seek position %d", newCursor)
	}
	h.cursor = newCursor
	return h.cursor, nil
}

// Tell returns the handle's current cursor position, mirroring the
// original's file-like Tell() (Python's io.IOBase.tell).
func (h *FileHandle) Tell() int64 { return h.cursor }

// Size returns the file's total size.
func (h *FileHandle) Size() int64 { return h.info.Size }

// ReadAll reads every remaining byte from the cursor to the end of the
// file in one call.
func (h *FileHandle) ReadAll() ([]byte, error) {
	remaining := h.info.Size - h.cursor
	if remaining < 0 {
		remaining = 0
	}
	buf := make([]byte, remaining)
	n, err := io.ReadFull(h, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

// VerifyCRC32C reads the whole file from the start and checks its
// CRC32C against the stored value, the same check Get performs
// automatically. Useful when a caller has opened a handle directly
// via Open and wants an explicit, separate integrity check.
func (h *FileHandle) VerifyCRC32C() (bool, error) {
	if h.info.Crc32c == nil {
		return true, nil
	}
	data, err := h.bc.shard.Read(h.info.Shard, h.info.Offset, h.info.Size)
	if err != nil {
		return false, err
	}
	return checksum.Of(data) == *h.info.Crc32c, nil
}

// Close marks the handle as no longer usable. It does not close any
// underlying OS file descriptor — those are owned and pooled by the
// archive's shard.Store for its whole lifetime, not per handle.
func (h *FileHandle) Close() error {
	h.closed = true
	return nil
}
