// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// barecat-migrate brings an archive's on-disk schema up to date: from
// a pre-versioned layout (no config table at all) or from schema 0.2
// to the current schema (spec §4.11). Run with no other barecat
// process holding the archive open.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/barecat-project/barecat"
	"github.com/barecat-project/barecat/lib/clock"
)

func main() {
	os.Exit(run())
}

func run() int {
	var checkOnly bool
	var verbose bool

	flagSet := pflag.NewFlagSet("barecat-migrate", pflag.ContinueOnError)
	flagSet.BoolVar(&checkOnly, "check", false, "report the detected schema version and exit without migrating")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log migration progress to stderr")
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
		fmt.Fprintf(os.Stderr, "usage: barecat-migrate [--check] [--verbose] ARCHIVE\n")
		return 2
	}
	basePath := args[0]

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := context.Background()

	version, err := barecat.DetectSchemaVersion(ctx, basePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: detecting schema version of %s: %v\n", basePath, err)
		return 2
	}

	if version.Major < 0 {
		fmt.Printf("%s: pre-versioned schema\n", basePath)
	} else {
		fmt.Printf("%s: schema %d.%d\n", basePath, version.Major, version.Minor)
	}

	if checkOnly {
		if version.Current() {
			return 0
		}
		return 1
	}

	if version.Current() {
		fmt.Printf("%s: already current, nothing to do\n", basePath)
		return 0
	}

	stats, err := barecat.Migrate(ctx, basePath, clock.Real(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: migrating %s: %v\n", basePath, err)
		return 2
	}

	fmt.Printf("%s: migrated (%d director%s, %d file%s)\n", basePath,
		stats.DirsMigrated, plural(stats.DirsMigrated, "y", "ies"),
		stats.FilesMigrated, plural(stats.FilesMigrated, "", "s"))
	return 0
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
