// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package path implements the archive path algebra: normalization, parent
// extraction, and ancestor enumeration. Archive paths are slash-separated,
// have no leading or trailing slash, and treat the empty string as the
// root directory. Paths are compared bytewise; this package never
// normalizes case or Unicode form.
package path

import "strings"

// Normalize collapses repeated slashes and strips leading/trailing
// slashes. The root directory normalizes to "". Segments equal to "."
// or ".." are rejected by the caller (Validate), not silently resolved,
// because the archive is not a real filesystem and must not reinterpret
// a path component.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, "/")
}

// Validate normalizes p and rejects "." and ".." segments, which would
// otherwise let a path escape its intended position in the tree. Returns
// the normalized path and whether it is valid.
func Validate(p string) (string, bool) {
	normalized := Normalize(p)
	if normalized == "" {
		return normalized, true
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	return normalized, true
}

// Parent returns the path with its final "/segment" removed, or "" if p
// has no "/" (including when p is already "", the root). Parent does
// not normalize p; callers must normalize first.
func Parent(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Partition splits p into (parent, name), mirroring the Python
// original's partition_path: for non-root paths, the part before and
// after the last "/". The root ("") has no name; Partition returns
// ("", "") for it, and callers must treat the root specially since it
// has no parent of its own.
func Partition(p string) (parent, name string) {
	if p == "" {
		return "", ""
	}
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Ancestors returns every strict ancestor of p, from the root ("")
// down to (but not including) p itself, in top-down order:
// ["", "a", "a/b", ...] for p == "a/b/c". For p == "" (the root), it
// returns nil — the root has no ancestors.
func Ancestors(p string) []string {
	if p == "" {
		return nil
	}
	segments := strings.Split(p, "/")
	ancestors := make([]string, 0, len(segments))
	ancestors = append(ancestors, "")
	for i := 1; i < len(segments); i++ {
		ancestors = append(ancestors, strings.Join(segments[:i], "/"))
	}
	return ancestors
}

// Join appends child onto parent the way the archive tree does: "" + x
// == x, "a" + "b" == "a/b".
func Join(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "/" + child
}

// IsRoot reports whether p denotes the root directory.
func IsRoot(p string) bool { return p == "" }

// HasPrefix reports whether p is equal to prefix or is a descendant of
// the directory named prefix (p == prefix or p starts with prefix+"/").
// The root prefix ("") matches every path.
func HasPrefix(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// EscapeGlob escapes the GLOB metacharacters ('[', '?', '*') in a
// literal path segment so it can be embedded in a SQLite GLOB pattern
// as a literal prefix, following the bulk subtree rename/delete
// pattern used by the original index implementation.
func EscapeGlob(literal string) string {
	var b strings.Builder
	b.Grow(len(literal) + 4)
	for _, r := range literal {
		switch r {
		case '[', ']', '?', '*':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SubtreeGlob returns the GLOB pattern matching every path strictly
// inside the directory dir (not dir itself): an escaped dir followed
// by "/*". For the root, the pattern is "*", which also matches the
// root's own empty path.
func SubtreeGlob(dir string) string {
	if dir == "" {
		return "*"
	}
	return EscapeGlob(dir) + "/*"
}
