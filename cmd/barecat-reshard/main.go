// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// barecat-reshard repacks an archive's files into a fresh set of
// shard files sized to a new limit (spec §4.8), adopting the new
// layout in place.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/barecat-project/barecat"
	"github.com/barecat-project/barecat/internal/profile"
)

func main() {
	os.Exit(run())
}

func run() int {
	var shardSizeLimit int64
	var profilePath string

	flagSet := pflag.NewFlagSet("barecat-reshard", pflag.ContinueOnError)
	flagSet.Int64Var(&shardSizeLimit, "shard-size-limit", 0, "new shard size limit, in bytes (0 means unlimited)")
	flagSet.StringVar(&profilePath, "profile", ".barecat.yaml", "optional YAML file supplying a default --shard-size-limit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	args := flagSet.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: barecat-reshard [--shard-size-limit N] ARCHIVE\n")
		return 2
	}
	basePath := args[0]

	if !flagSet.Changed("shard-size-limit") {
		prof, err := profile.Load(profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		shardSizeLimit = prof.ShardSizeLimit
	}

	ctx := context.Background()
	bc, err := barecat.Open(ctx, barecat.Config{BasePath: basePath, Mode: barecat.ReadWriteMode})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening %s: %v\n", basePath, err)
		return 2
	}
	defer bc.Close()

	stats, err := bc.Reshard(ctx, shardSizeLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resharding %s: %v\n", basePath, err)
		return 2
	}

	fmt.Printf("%s: repacked %s file(s) into %s shard(s) (was %s)\n", basePath,
		humanize.Comma(int64(stats.FilesRepacked)), humanize.Comma(int64(stats.ShardsAfter)),
		humanize.Comma(int64(stats.ShardsBefore)))
	return 0
}
