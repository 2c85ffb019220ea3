// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// barecat-merge combines one or more source archives into a freshly
// created output archive (spec §4.10), either copying every source
// file's bytes into the output's own shards or, in --symlink mode,
// linking whole source shard files in place.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/barecat-project/barecat"
	"github.com/barecat-project/barecat/internal/profile"
)

func main() {
	os.Exit(run())
}

func run() int {
	var symlink bool
	var duplicatePolicy string
	var shardSizeLimit int64
	var profilePath string

	flagSet := pflag.NewFlagSet("barecat-merge", pflag.ContinueOnError)
	flagSet.BoolVar(&symlink, "symlink", false, "link source shard files instead of copying bytes (barecat sources only)")
	flagSet.StringVar(&duplicatePolicy, "on-duplicate", "", "how to resolve a path present in more than one source: fail, ignore, or append")
	flagSet.Int64Var(&shardSizeLimit, "shard-size-limit", 0, "shard size limit for the output archive, in bytes (0 means unlimited); ignored in --symlink mode")
	flagSet.StringVar(&profilePath, "profile", ".barecat.yaml", "optional YAML file supplying defaults for --on-duplicate and --shard-size-limit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	args := flagSet.Args()
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: barecat-merge [flags] OUT SOURCE [SOURCE...]\n")
		return 2
	}
	outBasePath := args[0]
	sources := args[1:]

	prof, err := profile.Load(profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if duplicatePolicy == "" {
		duplicatePolicy = prof.DuplicatePolicy
	}
	if !flagSet.Changed("shard-size-limit") && prof.ShardSizeLimit != 0 {
		shardSizeLimit = prof.ShardSizeLimit
	}

	policy, err := parseDuplicatePolicy(duplicatePolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	mode := barecat.MergeCopy
	if symlink {
		mode = barecat.MergeSymlink
	}

	stats, err := barecat.Merge(context.Background(), sources, outBasePath, shardSizeLimit, mode, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: merging into %s: %v\n", outBasePath, err)
		return 2
	}

	fmt.Printf("%s: merged %d source(s): %d file(s) copied, %d skipped, %d shard file(s) linked\n",
		outBasePath, len(sources), stats.FilesCopied, stats.FilesSkipped, stats.ShardFilesLinked)
	return 0
}

func parseDuplicatePolicy(name string) (barecat.DuplicatePolicy, error) {
	switch name {
	case "", "fail":
		return barecat.DuplicateFail, nil
	case "ignore":
		return barecat.DuplicateIgnoreKeepFirst, nil
	case "append":
		return barecat.DuplicateAppend, nil
	default:
		return 0, fmt.Errorf("unknown --on-duplicate value %q (want fail, ignore, or append)", name)
	}
}
