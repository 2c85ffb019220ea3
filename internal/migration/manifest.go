// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/barecat-project/barecat/lib/codec"
)

// manifestSuffix names the progress sidecar written alongside a
// pre-versioned upgrade run. It exists purely as a crash-recovery
// breadcrumb — barecat doesn't resume a partial upgrade automatically
// today, but an operator finding this file after a crash knows which
// run was in flight and can re-run the upgrade from scratch, since
// UpgradePreVersioned never mutates the old index in place.
const manifestSuffix = "-migration-manifest.cbor.zst"

// manifest is the sidecar's contents: cbor tag only, it is never
// consumed by anything outside this package.
type manifest struct {
	RunID            string `cbor:"run_id"`
	BasePath         string `cbor:"base_path"`
	SourceIndexPath  string `cbor:"source_index_path"`
	DirCountAtStart  int    `cbor:"dir_count_at_start"`
	FileCountAtStart int    `cbor:"file_count_at_start"`
	StartedAtNs      int64  `cbor:"started_at_ns"`
}

// zstdEncoder is reused across calls the way
// lib/artifactstore/compress.go reuses its package-level encoder;
// zstd.Encoder is safe for concurrent use.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("migration: zstd encoder initialization failed: " + err.Error())
	}
}

func manifestPath(basePath string) string {
	return basePath + manifestSuffix
}

func writeManifest(basePath string, m manifest) error {
	data, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	if err := os.WriteFile(manifestPath(basePath), compressed, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func removeManifest(basePath string) {
	_ = os.Remove(manifestPath(basePath))
}
