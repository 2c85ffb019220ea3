// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"sort"
	"testing"
)

func TestWalkVisitsEveryDirectory(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)

	for _, path := range []string{"a/one", "a/two", "a/sub/three"} {
		if err := bc.Put(ctx, path, []byte("x"), false); err != nil {
			t.Fatalf("Put(%s): %v", path, err)
		}
	}

	var visited []string
	if err := bc.Walk(ctx, "", func(e WalkEntry) bool {
		visited = append(visited, e.Dir)
		return true
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	sort.Strings(visited)
	want := []string{"", "a", "a/sub"}
	if len(visited) != len(want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
	for i, v := range want {
		if visited[i] != v {
			t.Fatalf("visited = %v, want %v", visited, want)
		}
	}
}

func TestWalkReportsFilesAndSubdirs(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	if err := bc.Put(ctx, "a/one", []byte("x"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bc.Mkdir(ctx, "a/sub", 0o755, false); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	var entry WalkEntry
	if err := bc.Walk(ctx, "a", func(e WalkEntry) bool {
		if e.Dir == "a" {
			entry = e
		}
		return true
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entry.Files) != 1 || entry.Files[0] != "one" {
		t.Fatalf("Files = %v, want [one]", entry.Files)
	}
	if len(entry.Subdirs) != 1 || entry.Subdirs[0] != "sub" {
		t.Fatalf("Subdirs = %v, want [sub]", entry.Subdirs)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	for _, path := range []string{"a/one", "b/two"} {
		if err := bc.Put(ctx, path, []byte("x"), false); err != nil {
			t.Fatalf("Put(%s): %v", path, err)
		}
	}

	calls := 0
	if err := bc.Walk(ctx, "", func(e WalkEntry) bool {
		calls++
		return false
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (Walk must stop when fn returns false)", calls)
	}
}

func TestGlobMatchesFilesAndDirs(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	for _, path := range []string{"a/one.txt", "a/two.txt", "a/sub/three.txt", "b/four.txt"} {
		if err := bc.Put(ctx, path, []byte("x"), false); err != nil {
			t.Fatalf("Put(%s): %v", path, err)
		}
	}

	matches, err := bc.Glob(ctx, "a/*.txt", false, true)
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{"a/one.txt", "a/two.txt"}
	if len(matches) != len(want) {
		t.Fatalf("Glob(a/*.txt) = %v, want %v", matches, want)
	}
	for i, m := range want {
		if matches[i] != m {
			t.Fatalf("Glob(a/*.txt) = %v, want %v", matches, want)
		}
	}
}

func TestGlobRecursive(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	for _, path := range []string{"a/one.txt", "a/sub/two.txt", "b/three.txt"} {
		if err := bc.Put(ctx, path, []byte("x"), false); err != nil {
			t.Fatalf("Put(%s): %v", path, err)
		}
	}

	matches, err := bc.GlobFiles(ctx, "a/**", true, true)
	if err != nil {
		t.Fatalf("GlobFiles: %v", err)
	}
	want := []string{"a/one.txt", "a/sub/two.txt"}
	if len(matches) != len(want) {
		t.Fatalf("GlobFiles(a/**) = %v, want %v", matches, want)
	}
	for i, m := range want {
		if matches[i] != m {
			t.Fatalf("GlobFiles(a/**) = %v, want %v", matches, want)
		}
	}
}

func TestGlobHiddenFilter(t *testing.T) {
	ctx := context.Background()
	bc := newTestArchive(t, ReadWriteMode)
	if err := bc.Put(ctx, "a/.hidden", []byte("x"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bc.Put(ctx, "a/visible", []byte("x"), false); err != nil {
		t.Fatalf("Put: %v", err)
	}

	matches, err := bc.GlobFiles(ctx, "a/*", false, false)
	if err != nil {
		t.Fatalf("GlobFiles: %v", err)
	}
	if len(matches) != 1 || matches[0] != "a/visible" {
		t.Fatalf("GlobFiles(includeHidden=false) = %v, want [a/visible]", matches)
	}
}
