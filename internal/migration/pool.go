// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"log/slog"

	"github.com/barecat-project/barecat/lib/sqlitepool"
)

// openRawPool opens a single-connection pool against an existing index
// file with no schema-applying OnConnect hook, for reading a database
// whose version hasn't been decided yet (or is known to predate the
// current schema). Using index.Open here would be wrong: it seeds a
// fresh config table and schema on every read-write open, which would
// corrupt a pre-versioned or 0.x-schema database before migration has
// had a chance to read it.
func openRawPool(path string, logger *slog.Logger) (*sqlitepool.Pool, error) {
	return sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 1,
		Logger:   logger,
	})
}
