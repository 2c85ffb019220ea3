// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/barecat-project/barecat"
)

func TestParseDuplicatePolicy(t *testing.T) {
	cases := map[string]barecat.DuplicatePolicy{
		"":       barecat.DuplicateFail,
		"fail":   barecat.DuplicateFail,
		"ignore": barecat.DuplicateIgnoreKeepFirst,
		"append": barecat.DuplicateAppend,
	}
	for name, want := range cases {
		got, err := parseDuplicatePolicy(name)
		if err != nil {
			t.Fatalf("parseDuplicatePolicy(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("parseDuplicatePolicy(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseDuplicatePolicyRejectsUnknown(t *testing.T) {
	if _, err := parseDuplicatePolicy("bogus"); err == nil {
		t.Fatalf("parseDuplicatePolicy(bogus): expected error")
	}
}
