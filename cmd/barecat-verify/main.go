// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// barecat-verify checks an archive for corruption: a quick pass that
// checks the storage engine's own integrity and shard-length
// coverage, or a full pass that additionally re-reads and
// re-checksums every file and recomputes every directory's aggregate
// stats from scratch.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/barecat-project/barecat"
)

func main() {
	os.Exit(run())
}

func run() int {
	var full bool
	var quiet bool

	flagSet := pflag.NewFlagSet("barecat-verify", pflag.ContinueOnError)
	flagSet.BoolVar(&full, "full", false, "re-read and re-checksum every file and recompute every directory's stats")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "print only a summary line")
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
		fmt.Fprintf(os.Stderr, "usage: barecat-verify [--full] [--quiet] ARCHIVE\n")
		return 2
	}
	basePath := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	b, err := barecat.Open(ctx, barecat.Config{BasePath: basePath, Mode: barecat.ReadOnlyMode, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening %s: %v\n", basePath, err)
		return 2
	}
	defer b.Close()

	report, err := b.VerifyIntegrity(ctx, full)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: verifying %s: %v\n", basePath, err)
		return 2
	}

	if report.Healthy() {
		if !quiet {
			fmt.Printf("%s: healthy\n", basePath)
		}
		return 0
	}

	printReport(basePath, report, quiet)
	return 1
}

func printReport(basePath string, report *barecat.VerifyReport, quiet bool) {
	fmt.Printf("%s: %d problem(s) found\n", basePath,
		len(report.CRCMismatches)+len(report.StatsMismatches)+len(report.IntegrityProblems)+len(report.ShardProblems))
	if quiet {
		return
	}

	for _, m := range report.CRCMismatches {
		fmt.Printf("  checksum mismatch: %s (expected %08x, got %08x)\n", m.Path, m.Expected, m.Actual)
	}
	for _, m := range report.StatsMismatches {
		fmt.Printf("  stats mismatch: %s.%s (stored %s, computed %s)\n",
			m.Path, m.Field, humanize.Comma(m.Stored), humanize.Comma(m.Computed))
	}
	for _, p := range report.ShardProblems {
		if p.Err != nil {
			fmt.Printf("  shard %d: %v\n", p.Shard, p.Err)
			continue
		}
		fmt.Printf("  shard %d: requires %s, has %s\n", p.Shard,
			humanize.Bytes(uint64(p.RequiredLength)), humanize.Bytes(uint64(p.ActualLength)))
	}
	for _, p := range report.IntegrityProblems {
		fmt.Printf("  %s\n", p)
	}
}
