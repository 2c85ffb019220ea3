// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package path

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileGlob translates a Unix shell glob pattern into a regular
// expression anchored at both ends, following the conventions of
// spec §4.1: '*' matches within a path segment, '?' matches one
// character, '[...]' is a character class, and '**' matches any
// number of segments (including zero) when recursive is true. When
// recursive is false, '**' is treated the same as a single '*' — it
// still cannot cross a '/'.
func CompileGlob(pattern string, recursive bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			if recursive && i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString("(?:.*)")
				i++
				// A "**/" is allowed to match zero directories too;
				// swallow a following slash into the same group so
				// "a/**/b" also matches "a/b".
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := i + 1
			negate := false
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				negate = true
				j++
			}
			start := j
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				// Unterminated class: treat '[' literally.
				b.WriteString(regexp.QuoteMeta("["))
				continue
			}
			class := string(runes[start:j])
			b.WriteByte('[')
			if negate {
				b.WriteByte('^')
			}
			b.WriteString(escapeClassBody(class))
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("path: compiling glob %q: %w", pattern, err)
	}
	return re, nil
}

// escapeClassBody escapes characters that are regex-special inside a
// character class but not glob-special, while leaving a leading '-'
// or range syntax intact.
func escapeClassBody(class string) string {
	return strings.ReplaceAll(class, `\`, `\\`)
}
