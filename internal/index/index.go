// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/barecat-project/barecat/internal/barecaterr"
	"github.com/barecat-project/barecat/lib/sqlitepool"
)

// Mode selects how the index database is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Config configures Open.
type Config struct {
	// Path is the index database file's path — the archive's base
	// path in the current on-disk layout (spec §6).
	Path string

	Mode Mode

	// PoolSize is the reader connection pool size. See
	// sqlitepool.Config.PoolSize.
	PoolSize int

	Logger *slog.Logger
}

// Index is the relational store described in spec §4.4. Readers each
// borrow their own connection from an internal pool (spec §5's
// per-reader-thread connection model); writes are additionally
// serialized by writerMu, the process-wide writer mutex spec §5
// requires on top of WAL's own MVCC.
type Index struct {
	pool     *sqlitepool.Pool
	writerMu sync.Mutex
	readOnly bool
	logger   *slog.Logger
	path     string
}

// Open opens or creates the index database at cfg.Path, applying the
// schema, triggers and config defaults (all idempotent) on every
// connection of a read-write open and checking the schema version on
// every open.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("index: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			if cfg.Mode == ReadWrite {
				if err := sqlitex.ExecuteScript(conn, schemaScript, nil); err != nil {
					return fmt.Errorf("applying schema: %w", err)
				}
				if err := sqlitex.ExecuteScript(conn, triggersScript, nil); err != nil {
					return fmt.Errorf("applying triggers: %w", err)
				}
				if err := sqlitex.ExecuteScript(conn, configDefaultsScript, nil); err != nil {
					return fmt.Errorf("applying config defaults: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	idx := &Index{
		pool:     pool,
		readOnly: cfg.Mode == ReadOnly,
		logger:   logger,
		path:     cfg.Path,
	}

	if err := idx.checkSchemaVersion(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return idx, nil
}

// checkSchemaVersion reads config.schema_version_{major,minor} and
// rejects archives whose major version differs from the one this
// package handles. A minor-version skew only produces a warning, matching
// the original's _check_schema_version distinction between breaking
// and additive changes.
func (idx *Index) checkSchemaVersion(ctx context.Context) error {
	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer idx.pool.Put(conn)

	hasConfig := false
	err = sqlitex.Execute(conn,
		`SELECT 1 FROM sqlite_master WHERE type='table' AND name='config'`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				hasConfig = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("index: checking for config table: %w", err)
	}
	if !hasConfig {
		if idx.readOnly {
			return barecaterr.UnsupportedSchema(-1, -1)
		}
		// A brand-new archive created by this Open call; config was
		// just seeded by configDefaultsScript on the write path.
		return nil
	}

	major, err := idx.configInt(ctx, conn, "schema_version_major", -1)
	if err != nil {
		return err
	}
	minor, err := idx.configInt(ctx, conn, "schema_version_minor", -1)
	if err != nil {
		return err
	}
	if major < 0 {
		// Pre-versioned archive (schema predates the config table
		// carrying version numbers, or the key is missing).
		return barecaterr.UnsupportedSchema(0, 0)
	}
	if major != SchemaVersionMajor {
		return barecaterr.UnsupportedSchema(int(major), int(minor))
	}
	if minor > SchemaVersionMinor {
		idx.logger.Warn("index schema minor version is newer than this build supports",
			"on_disk_minor", minor, "supported_minor", SchemaVersionMinor)
	} else if minor < SchemaVersionMinor {
		idx.logger.Warn("index schema minor version is older; some statistics may use the pre-0.3 trigger semantics until migrated",
			"on_disk_minor", minor, "supported_minor", SchemaVersionMinor)
	}
	return nil
}

func (idx *Index) configInt(ctx context.Context, conn *sqlite.Conn, key string, fallback int64) (int64, error) {
	value := fallback
	found := false
	err := sqlitex.Execute(conn,
		`SELECT value_int FROM config WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return fallback, fmt.Errorf("index: reading config[%s]: %w", key, err)
	}
	if !found {
		return fallback, nil
	}
	return value, nil
}

// Close closes every pooled connection.
func (idx *Index) Close() error {
	return idx.pool.Close()
}

// withReader borrows a read connection, runs fn, and returns it.
func (idx *Index) withReader(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer idx.pool.Put(conn)
	return fn(conn)
}

// withWriter serializes fn against every other writer on this Index
// and runs it inside an immediate transaction, matching spec §5's
// "per-archive process-wide mutex serializes writer-side transactions"
// on top of SQLite's own WAL concurrency.
func (idx *Index) withWriter(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	if idx.readOnly {
		return barecaterr.ReadOnly("write", idx.path)
	}

	idx.writerMu.Lock()
	defer idx.writerMu.Unlock()

	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer idx.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("index: beginning transaction: %w", err)
	}
	defer endTx(&err)

	return fn(conn)
}
