// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive locates and removes the on-disk files that make up
// an archive at a given base path, independent of the Index/Store
// connections used to read or write it (spec §6's on-disk layout).
package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// legacyIndexSuffix is the index file name used by the pre-0.3
// on-disk layout, where the index lived alongside the base path
// rather than at it.
const legacyIndexSuffix = "-sqlite-index"

// IndexPath returns the path of the index file for an archive at
// basePath, accounting for the legacy "B-sqlite-index" layout if the
// current-layout file ("B" itself) is absent but the legacy one
// exists.
func IndexPath(basePath string) string {
	if _, err := os.Stat(basePath); err == nil {
		return basePath
	}
	legacy := basePath + legacyIndexSuffix
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}
	return basePath
}

// Exists reports whether any file of an archive at basePath exists on
// disk: the current-layout index, the legacy-layout index, or at
// least one shard file.
func Exists(basePath string) bool {
	if info, err := os.Stat(basePath); err == nil && !info.IsDir() {
		return true
	}
	if _, err := os.Stat(basePath + legacyIndexSuffix); err == nil {
		return true
	}
	shards, err := filepath.Glob(basePath + "-shard-?????")
	return err == nil && len(shards) > 0
}

// RemoveIndexFile deletes a single index file and its SQLite
// journal/WAL/SHM sidecars, without touching any shard file. Used by
// migration to discard the old index once a freshly migrated one has
// been put in its place.
func RemoveIndexFile(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("archive: removing %s: %w", p, err)
		}
	}
	return nil
}

// Remove deletes every file belonging to an archive at basePath: both
// possible index file layouts, every shard file, and any SQLite
// journal/WAL/SHM sidecar files for either index layout. Missing
// files are not an error.
func Remove(basePath string) error {
	indexPaths := []string{basePath, basePath + legacyIndexSuffix}

	shardPaths, err := filepath.Glob(basePath + "-shard-?????")
	if err != nil {
		return fmt.Errorf("archive: globbing shards for %s: %w", basePath, err)
	}

	var sqliteExtras []string
	for _, p := range indexPaths {
		sqliteExtras = append(sqliteExtras, p+"-journal", p+"-wal", p+"-shm")
	}

	all := append(append(indexPaths, shardPaths...), sqliteExtras...)
	for _, p := range all {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("archive: removing %s: %w", p, err)
		}
	}
	return nil
}
