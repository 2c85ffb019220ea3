// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum implements the streaming CRC32C (Castagnoli) checker
// used for both appends and full-file reads. hash/crc32's Castagnoli
// table is the standard library's own implementation of this named,
// fixed algorithm; no third-party library in the retrieval pack
// provides a CRC32C implementation, and layering one over the stdlib
// table would add a dependency without changing behavior.
package checksum

import (
	"hash/crc32"
	"io"
)

// castagnoliTable is computed once and shared by every Accumulator.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Accumulator computes CRC32C incrementally over a sequence of writes.
// The zero value is ready to use.
type Accumulator struct {
	crc uint32
}

// Update folds more bytes into the running checksum.
func (a *Accumulator) Update(p []byte) {
	a.crc = crc32.Update(a.crc, castagnoliTable, p)
}

// Finalize returns the checksum of everything fed to Update so far.
// Unlike some streaming CRC APIs, no final complement step is needed
// beyond what crc32.Update already applies; Finalize is provided so
// call sites read the same way regardless of algorithm.
func (a *Accumulator) Finalize() uint32 { return a.crc }

// Reset returns the accumulator to its initial state so it can be
// reused for a new checksum.
func (a *Accumulator) Reset() { a.crc = 0 }

// Of computes the CRC32C of a single byte slice in one call.
func Of(p []byte) uint32 {
	return crc32.Checksum(p, castagnoliTable)
}

// Accumulate streams r through CRC32C without buffering the whole
// payload, returning the final checksum and the total byte count read.
// This mirrors the original implementation's accumulate_crc32c helper.
func Accumulate(r io.Reader) (uint32, int64, error) {
	var acc Accumulator
	buf := make([]byte, 64*1024)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc.Update(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			return acc.Finalize(), total, nil
		}
		if err != nil {
			return acc.Finalize(), total, err
		}
	}
}

// Writer wraps an io.Writer and accumulates CRC32C over everything
// written through it. Used by the shard store's append path so the
// checksum is computed in the same pass as the write.
type Writer struct {
	W   io.Writer
	acc Accumulator
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.W.Write(p)
	if n > 0 {
		w.acc.Update(p[:n])
	}
	return n, err
}

// Sum returns the checksum of everything written so far.
func (w *Writer) Sum() uint32 { return w.acc.Finalize() }
