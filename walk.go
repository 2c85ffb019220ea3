// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"sort"
	"strings"

	"github.com/barecat-project/barecat/internal/index"
	bcpath "github.com/barecat-project/barecat/internal/path"
)

// WalkEntry describes one directory visited by Walk.
type WalkEntry struct {
	Dir     string
	Subdirs []string
	Files   []string
}

// Walk visits dir and every directory beneath it, breadth order by
// path, calling fn once per directory with its direct subdirectory and
// file names — the archive analogue of os.Walk (spec §4.6).
// Walk stops early, without error, if fn returns false.
func (b *Barecat) Walk(ctx context.Context, dir string, fn func(WalkEntry) bool) error {
	normalized, _ := bcpath.Validate(dir)

	if _, err := b.idx.LookupDir(ctx, normalized); err != nil {
		return err
	}

	queue := []string{normalized}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := queue[0]
		queue = queue[1:]

		subdirInfos, err := b.idx.ListDirSubdirs(ctx, current, index.Path)
		if err != nil {
			return err
		}
		fileInfos, err := b.idx.ListDirFiles(ctx, current, index.Path)
		if err != nil {
			return err
		}

		entry := WalkEntry{Dir: current}
		for _, d := range subdirInfos {
			_, name := bcpath.Partition(d.Path)
			entry.Subdirs = append(entry.Subdirs, name)
			queue = append(queue, d.Path)
		}
		for _, f := range fileInfos {
			_, name := bcpath.Partition(f.Path)
			entry.Files = append(entry.Files, name)
		}

		if !fn(entry) {
			return nil
		}
	}
	return nil
}

// isHidden reports whether any segment of path starts with ".", the
// convention glob's include_hidden flag filters on.
func isHidden(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// Glob returns every file and directory path matching a Unix-style
// glob pattern, mirroring Python's glob.glob (spec §4.6). When
// recursive, "**" matches any number of path segments.
func (b *Barecat) Glob(ctx context.Context, pattern string, recursive, includeHidden bool) ([]string, error) {
	re, err := bcpath.CompileGlob(pattern, recursive)
	if err != nil {
		return nil, err
	}

	var matches []string
	if err := b.idx.IterAllDirs(ctx, index.Path, func(d index.DirInfo) bool {
		if (includeHidden || !isHidden(d.Path)) && re.MatchString(d.Path) {
			matches = append(matches, d.Path)
		}
		return true
	}); err != nil {
		return nil, err
	}
	if err := b.idx.IterAllFiles(ctx, index.Path, func(f index.FileInfo) bool {
		if (includeHidden || !isHidden(f.Path)) && re.MatchString(f.Path) {
			matches = append(matches, f.Path)
		}
		return true
	}); err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// GlobFiles returns every file path (no directories) matching pattern.
func (b *Barecat) GlobFiles(ctx context.Context, pattern string, recursive, includeHidden bool) ([]string, error) {
	re, err := bcpath.CompileGlob(pattern, recursive)
	if err != nil {
		return nil, err
	}
	var matches []string
	if err := b.idx.IterAllFiles(ctx, index.Path, func(f index.FileInfo) bool {
		if (includeHidden || !isHidden(f.Path)) && re.MatchString(f.Path) {
			matches = append(matches, f.Path)
		}
		return true
	}); err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
