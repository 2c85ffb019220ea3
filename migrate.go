// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package barecat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/barecat-project/barecat/internal/migration"
	"github.com/barecat-project/barecat/lib/clock"
)

// SchemaVersion identifies an archive's on-disk schema version, as
// read directly off disk without opening it through Open.
type SchemaVersion = migration.Version

// MigrationStats reports how much work a migration run did.
type MigrationStats = migration.Stats

// DetectSchemaVersion reports the on-disk schema version of the
// archive at basePath without mutating it. Callers use this ahead of
// Migrate to decide whether an upgrade is needed, since opening an
// out-of-date archive through Open for writing silently refreshes its
// triggers without rebuilding stats or bumping the recorded version.
func DetectSchemaVersion(ctx context.Context, basePath string, logger *slog.Logger) (SchemaVersion, error) {
	return migration.DetectVersion(ctx, basePath, logger)
}

// Migrate brings the archive at basePath up to the current schema
// version (spec §4.11). It must be called with no other Barecat or
// index.Index open against basePath. If the archive is already
// current, Migrate is a no-op.
func Migrate(ctx context.Context, basePath string, clk clock.Clock, logger *slog.Logger) (MigrationStats, error) {
	if clk == nil {
		clk = clock.Real()
	}

	version, err := migration.DetectVersion(ctx, basePath, logger)
	if err != nil {
		return MigrationStats{}, fmt.Errorf("barecat: migrate: detecting schema version: %w", err)
	}
	if version.Current() {
		return MigrationStats{}, nil
	}

	if version.Major < 0 {
		stats, err := migration.UpgradePreVersioned(ctx, basePath, clk, logger)
		if err != nil {
			return stats, fmt.Errorf("barecat: migrate: upgrading pre-versioned archive: %w", err)
		}
		return stats, nil
	}

	stats, err := migration.Upgrade02To03(ctx, basePath, logger)
	if err != nil {
		return stats, fmt.Errorf("barecat: migrate: upgrading to current schema: %w", err)
	}
	return stats, nil
}
