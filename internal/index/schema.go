// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

// schemaScript creates the three tables of §3 and their supporting
// indexes. parent is a stored column rather than a generated one:
// subtree rename/delete rewrites both path and parent in the same bulk
// UPDATE (see rename.go), and a generated column computed from
// path would have to be recomputed row by row anyway once path changes,
// giving up the one advantage generation would have bought. This
// follows the original Python index, which also stores parent as a
// plain column populated by application code (see path.Parent).
const schemaScript = `
CREATE TABLE IF NOT EXISTS files (
	path     TEXT PRIMARY KEY,
	parent   TEXT NOT NULL,
	shard    INTEGER NOT NULL,
	offset   INTEGER NOT NULL,
	size     INTEGER NOT NULL,
	crc32c   INTEGER,
	mode     INTEGER,
	uid      INTEGER,
	gid      INTEGER,
	mtime_ns INTEGER
);

CREATE INDEX IF NOT EXISTS files_parent ON files(parent);
CREATE INDEX IF NOT EXISTS files_shard_offset ON files(shard, offset);

CREATE TABLE IF NOT EXISTS dirs (
	path           TEXT PRIMARY KEY,
	parent         TEXT,
	num_subdirs    INTEGER NOT NULL DEFAULT 0,
	num_files      INTEGER NOT NULL DEFAULT 0,
	num_files_tree INTEGER NOT NULL DEFAULT 0,
	size_tree      INTEGER NOT NULL DEFAULT 0,
	mode           INTEGER,
	uid            INTEGER,
	gid            INTEGER,
	mtime_ns       INTEGER
);

CREATE INDEX IF NOT EXISTS dirs_parent ON dirs(parent);

CREATE TABLE IF NOT EXISTS config (
	key        TEXT PRIMARY KEY,
	value_text TEXT,
	value_int  INTEGER
);
`

// triggersScript implements the Stats engine of §4.5 as cascading
// triggers guarded by config.use_triggers. num_files counts only
// direct children of a directory and must never be propagated through
// ancestors — that is exactly the 0.2-schema bug this module's
// migration corrects (see internal/migration). num_files_tree and
// size_tree, by contrast, propagate to every strict ancestor via the
// recursive CTE in each trigger body.
const triggersScript = `
DROP TRIGGER IF EXISTS files_ai_stats;
CREATE TRIGGER files_ai_stats AFTER INSERT ON files
WHEN (SELECT value_int FROM config WHERE key = 'use_triggers') = 1
BEGIN
	UPDATE dirs SET num_files = num_files + 1 WHERE path = NEW.parent;
	UPDATE dirs SET
		num_files_tree = num_files_tree + 1,
		size_tree = size_tree + NEW.size
	WHERE path IN (
		WITH RECURSIVE ancestors(path) AS (
			SELECT NEW.parent
			UNION ALL
			SELECT dirs.parent FROM dirs JOIN ancestors ON dirs.path = ancestors.path
			WHERE dirs.parent IS NOT NULL
		)
		SELECT path FROM ancestors
	);
END;

DROP TRIGGER IF EXISTS files_ad_stats;
CREATE TRIGGER files_ad_stats AFTER DELETE ON files
WHEN (SELECT value_int FROM config WHERE key = 'use_triggers') = 1
BEGIN
	UPDATE dirs SET num_files = num_files - 1 WHERE path = OLD.parent;
	UPDATE dirs SET
		num_files_tree = num_files_tree - 1,
		size_tree = size_tree - OLD.size
	WHERE path IN (
		WITH RECURSIVE ancestors(path) AS (
			SELECT OLD.parent
			UNION ALL
			SELECT dirs.parent FROM dirs JOIN ancestors ON dirs.path = ancestors.path
			WHERE dirs.parent IS NOT NULL
		)
		SELECT path FROM ancestors
	);
END;

DROP TRIGGER IF EXISTS dirs_ai_stats;
CREATE TRIGGER dirs_ai_stats AFTER INSERT ON dirs
WHEN (SELECT value_int FROM config WHERE key = 'use_triggers') = 1
	AND NEW.parent IS NOT NULL
BEGIN
	UPDATE dirs SET num_subdirs = num_subdirs + 1 WHERE path = NEW.parent;
END;

DROP TRIGGER IF EXISTS dirs_ad_stats;
CREATE TRIGGER dirs_ad_stats AFTER DELETE ON dirs
WHEN (SELECT value_int FROM config WHERE key = 'use_triggers') = 1
	AND OLD.parent IS NOT NULL
BEGIN
	UPDATE dirs SET num_subdirs = num_subdirs - 1 WHERE path = OLD.parent;
END;
`

// configDefaults seeds the config table and the root directory entry
// on first creation of a fresh archive.
const configDefaultsScript = `
INSERT OR IGNORE INTO config(key, value_int) VALUES ('use_triggers', 1);
INSERT OR IGNORE INTO config(key, value_int) VALUES ('shard_size_limit', 9223372036854775807);
INSERT OR IGNORE INTO config(key, value_int) VALUES ('schema_version_major', 0);
INSERT OR IGNORE INTO config(key, value_int) VALUES ('schema_version_minor', 3);
INSERT OR IGNORE INTO dirs(path, parent, num_subdirs, num_files, num_files_tree, size_tree)
	VALUES ('', NULL, 0, 0, 0, 0);
`
