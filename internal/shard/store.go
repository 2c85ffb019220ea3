// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shard owns the append-only shard files that hold the raw
// bytes of every file in an archive. It implements placement, rotation,
// append, random read, and truncate (spec §4.3); it knows nothing about
// paths or metadata — that is the Index's job.
package shard

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/barecat-project/barecat/internal/barecaterr"
	"github.com/barecat-project/barecat/internal/checksum"
)

// SizeUnlimited is an extremely large shard size limit, used when the
// caller wants every file to land in shard 0 regardless of total size.
const SizeUnlimited = int64(1<<63 - 1)

// Mode selects how shard files are opened.
type Mode int

const (
	// ReadOnly permits only Read; Append and Truncate return
	// ErrReadOnly. Existing bytes up to each shard's recorded end are
	// treated as immutable.
	ReadOnly Mode = iota

	// ReadWrite permits arbitrary seeks, Append, Read, and Truncate.
	ReadWrite

	// AppendOnly permits Append, Read, and PunchHole but not WriteAt
	// or Truncate; used by
	// bulk ingest paths that never need to rewrite earlier bytes.
	AppendOnly
)

// Config configures a Store.
type Config struct {
	// BasePath is the archive's base path; shard k lives at
	// fmt.Sprintf("%s-shard-%05d", BasePath, k).
	BasePath string

	// ShardSizeLimit caps the length a shard may reach before a
	// rotation to a new shard is triggered. Zero or negative means
	// SizeUnlimited.
	ShardSizeLimit int64

	Mode Mode

	// Logger receives rotation and truncation events. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// Store owns every open shard file handle for one archive. A Store is
// safe for concurrent use; individual append calls are serialized
// internally because the shard store tracks the current write offset.
type Store struct {
	mu             sync.Mutex
	basePath       string
	shardSizeLimit int64
	mode           Mode
	logger         *slog.Logger

	files         map[int]*os.File
	current       int
	currentLength int64
}

var shardSuffixPattern = regexp.MustCompile(`-shard-(\d{5})$`)

// ShardPath returns the on-disk path of shard k of the archive at
// basePath.
func ShardPath(basePath string, k int) string {
	return fmt.Sprintf("%s-shard-%05d", basePath, k)
}

// Open discovers existing shard files for the archive and, in a
// writable mode, creates shard 0 if none exist yet. The current shard
// is always the highest-numbered shard present on disk.
func Open(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("shard: BasePath is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := cfg.ShardSizeLimit
	if limit <= 0 {
		limit = SizeUnlimited
	}

	highest, err := highestExistingShard(cfg.BasePath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		basePath:       cfg.BasePath,
		shardSizeLimit: limit,
		mode:           cfg.Mode,
		logger:         logger,
		files:          make(map[int]*os.File),
		current:        highest,
	}

	if highest < 0 {
		if cfg.Mode == ReadOnly {
			s.current = 0
			s.currentLength = 0
			return s, nil
		}
		if err := s.createShardLocked(0); err != nil {
			return nil, err
		}
		s.current = 0
		return s, nil
	}

	f, err := s.fileLocked(highest)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("shard: stat %s: %w", ShardPath(cfg.BasePath, highest), err)
	}
	s.currentLength = info.Size()
	return s, nil
}

func highestExistingShard(basePath string) (int, error) {
	matches, err := filepath.Glob(basePath + "-shard-?????")
	if err != nil {
		return -1, fmt.Errorf("shard: globbing shard files for %s: %w", basePath, err)
	}
	highest := -1
	for _, m := range matches {
		sub := shardSuffixPattern.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

// NumShards returns count of shard files that currently exist on disk,
// i.e. the highest shard number plus one, or 0 if none exist.
func NumShards(basePath string) (int, error) {
	highest, err := highestExistingShard(basePath)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

// CurrentShard returns the number of the shard currently being written
// to (the highest-numbered shard).
func (s *Store) CurrentShard() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Append writes data to the current shard, rotating to a fresh shard
// first if the write would exceed ShardSizeLimit and the current shard
// is non-empty. A single file is never split across shards: a file
// larger than the limit still gets a whole fresh shard to itself.
// Returns the shard number, offset, size, and CRC32C of the written
// bytes.
func (s *Store) Append(data []byte) (shardNum int, offset int64, size int64, crc32c uint32, err error) {
	if s.mode == ReadOnly {
		return 0, 0, 0, 0, barecaterr.ReadOnly("append", s.basePath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	size = int64(len(data))
	if s.currentLength > 0 && s.currentLength+size > s.shardSizeLimit {
		if err := s.rotateLocked(); err != nil {
			return 0, 0, 0, 0, err
		}
	}

	f, err := s.fileLocked(s.current)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	offset = s.currentLength
	if _, err := f.WriteAt(data, offset); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("shard: writing shard %d at offset %d: %w", s.current, offset, err)
	}
	crc32c = checksum.Of(data)
	s.currentLength += size
	shardNum = s.current

	s.logger.Debug("shard append", "shard", shardNum, "offset", offset, "size", size)
	return shardNum, offset, size, crc32c, nil
}

// AppendStream copies r into the current shard without buffering the
// whole payload in memory, the way Append does. Because the final
// size is not known up front, AppendStream cannot pre-check against
// ShardSizeLimit the way Append does before writing: it always
// appends to the current shard, even if doing so exceeds the limit,
// then rotates before the next Append/AppendStream call. This matches
// the original streaming ingest contract (spec §6), which accepts
// that a single oversized streamed file may overshoot its shard's
// configured limit.
//
// On a read error from r, the shard is truncated back to its
// pre-call length and the error is returned wrapped so the caller
// can surface ErrIngestFailed.
func (s *Store) AppendStream(r io.Reader) (shardNum int, offset int64, size int64, crc32c uint32, err error) {
	if s.mode == ReadOnly {
		return 0, 0, 0, 0, barecaterr.ReadOnly("append", s.basePath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentLength > 0 && s.currentLength >= s.shardSizeLimit {
		if err := s.rotateLocked(); err != nil {
			return 0, 0, 0, 0, err
		}
	}

	f, err := s.fileLocked(s.current)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	preLength := s.currentLength
	writer := &checksum.Writer{W: &offsetWriter{f: f, off: preLength}}
	written, copyErr := io.Copy(writer, r)
	if copyErr != nil {
		if truncErr := f.Truncate(preLength); truncErr == nil {
			s.currentLength = preLength
		}
		return 0, 0, 0, 0, fmt.Errorf("shard: streaming append to shard %d: %w", s.current, copyErr)
	}

	shardNum = s.current
	offset = preLength
	size = written
	s.currentLength += written
	crc32c = writer.Sum()

	s.logger.Debug("shard append (stream)", "shard", shardNum, "offset", offset, "size", size)
	return shardNum, offset, size, crc32c, nil
}

// offsetWriter adapts os.File.WriteAt to io.Writer, advancing its own
// offset across repeated writes the way a sequential append needs to.
type offsetWriter struct {
	f   *os.File
	off int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}

func (s *Store) rotateLocked() error {
	next := s.current + 1
	if err := s.createShardLocked(next); err != nil {
		return err
	}
	s.current = next
	s.currentLength = 0
	s.logger.Info("shard rotated", "new_shard", next)
	return nil
}

func (s *Store) createShardLocked(k int) error {
	path := ShardPath(s.basePath, k)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("shard: creating %s: %w", path, err)
	}
	s.files[k] = f
	return nil
}

func (s *Store) fileLocked(k int) (*os.File, error) {
	if f, ok := s.files[k]; ok {
		return f, nil
	}
	flags := os.O_RDONLY
	if s.mode != ReadOnly {
		flags = os.O_RDWR
	}
	path := ShardPath(s.basePath, k)
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, barecaterr.ShardMissing("open", k)
		}
		return nil, fmt.Errorf("shard: opening %s: %w", path, err)
	}
	s.files[k] = f
	return f, nil
}

// WriteAt writes data at a specific offset within shard shardNum,
// independent of that shard's current append cursor. Used by defrag
// to relocate a file's bytes within its shard without going through
// the sequential Append path. Callers are responsible for ensuring
// the destination range does not overlap a still-referenced file.
func (s *Store) WriteAt(shardNum int, offset int64, data []byte) error {
	if s.mode != ReadWrite {
		return barecaterr.ReadOnly("write_at", s.basePath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileLocked(shardNum)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("shard: writing shard %d at offset %d: %w", shardNum, offset, err)
	}
	if shardNum == s.current {
		end := offset + int64(len(data))
		if end > s.currentLength {
			s.currentLength = end
		}
	}
	return nil
}

// Read seeks into shard shardNum and reads exactly size bytes starting
// at offset. It must not be asked to span shards; callers look up
// shard boundaries from the Index before calling Read.
func (s *Store) Read(shardNum int, offset, size int64) ([]byte, error) {
	s.mu.Lock()
	f, err := s.fileLocked(shardNum)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(&sectionReader{f: f, off: offset}, buf); err != nil {
		return nil, fmt.Errorf("shard: reading shard %d at offset %d (%d bytes): %w", shardNum, offset, size, err)
	}
	return buf, nil
}

// sectionReader adapts os.File.ReadAt to io.Reader for io.ReadFull,
// advancing its own offset across repeated short reads.
type sectionReader struct {
	f   *os.File
	off int64
}

func (r *sectionReader) Read(p []byte) (int, error) {
	n, err := r.f.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}

// Truncate shrinks shard shardNum to newLength. Used by defrag to drop
// a shard's unused tail after compaction.
func (s *Store) Truncate(shardNum int, newLength int64) error {
	if s.mode != ReadWrite {
		return barecaterr.ReadOnly("truncate", s.basePath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileLocked(shardNum)
	if err != nil {
		return err
	}
	if err := f.Truncate(newLength); err != nil {
		return fmt.Errorf("shard: truncating shard %d to %d: %w", shardNum, newLength, err)
	}
	if shardNum == s.current {
		s.currentLength = newLength
	}
	s.logger.Info("shard truncated", "shard", shardNum, "new_length", newLength)
	return nil
}

// Length returns the current on-disk length of shard shardNum.
func (s *Store) Length(shardNum int) (int64, error) {
	s.mu.Lock()
	f, err := s.fileLocked(shardNum)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("shard: stat shard %d: %w", shardNum, err)
	}
	return info.Size(), nil
}

// PunchHole deallocates the underlying storage for [offset, offset+size)
// in shard shardNum without changing the file's apparent length. On
// platforms or filesystems that don't support hole punching, this is a
// no-op — reclaiming the space is left to defrag.
func (s *Store) PunchHole(shardNum int, offset, size int64) error {
	if s.mode == ReadOnly {
		return barecaterr.ReadOnly("punch_hole", s.basePath)
	}
	s.mu.Lock()
	f, err := s.fileLocked(shardNum)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return punchHole(f, offset, size)
}

// ListShardNumbers returns every shard number with an existing file on
// disk, ascending.
func ListShardNumbers(basePath string) ([]int, error) {
	matches, err := filepath.Glob(basePath + "-shard-?????")
	if err != nil {
		return nil, fmt.Errorf("shard: globbing shard files for %s: %w", basePath, err)
	}
	numbers := make([]int, 0, len(matches))
	for _, m := range matches {
		sub := shardSuffixPattern.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// Close releases every open shard file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for k, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shard: closing shard %d: %w", k, err)
		}
	}
	s.files = nil
	return firstErr
}
