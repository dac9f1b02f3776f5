// Package strings holds the text normalisation used when comparing answers.
package strings

import (
	"strings"
	"unicode"
)

// CollapseSpace trims s and folds every run of whitespace into one space.
//
//	CollapseSpace("  New\t\tYork ") // "New York"
func CollapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SameText reports whether a and b are equal once whitespace is collapsed.
func SameText(a, b string) bool {
	return CollapseSpace(a) == CollapseSpace(b)
}

// UniqueFields normalises names with CollapseSpace and returns each non-blank
// one once, in first-seen order. Nil when nothing is left.
func UniqueFields(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = CollapseSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
