// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile loads optional YAML CLI-default overrides for the
// barecat-merge and barecat-reshard commands from a .barecat.yaml
// file, grounded on the teacher's lib/config YAML loading convention.
// Unlike lib/config's Load, a missing profile file is not an error:
// the profile only supplies defaults a caller may still override on
// the command line.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds CLI-default overrides read from .barecat.yaml.
type Profile struct {
	// DuplicatePolicy names the default policy barecat-merge applies
	// to a path present in more than one source archive: one of
	// "fail", "ignore", or "append".
	DuplicatePolicy string `yaml:"duplicate_policy,omitempty"`

	// ShardSizeLimit is the default shard size limit, in bytes,
	// barecat-reshard targets when --shard-size-limit is not passed
	// explicitly. Zero means unlimited.
	ShardSizeLimit int64 `yaml:"shard_size_limit,omitempty"`
}

// Load reads and parses the profile at path. A path that does not
// exist returns a zero-value Profile and no error, since the profile
// is optional: every field it would have supplied falls back to the
// command's own built-in default.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("profile: reading %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile: parsing %s: %w", path, err)
	}
	return p, nil
}
