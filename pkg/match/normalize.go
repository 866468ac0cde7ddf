// Package match filters listing entries by glob pattern, size and
// modification time.
//
// Globs use doublestar semantics and are matched against an entry's name
// relative to the listed prefix, so "*.html" matches "site/index.html" when
// browsing "site/".
package match

import (
	"strings"
)

// Glob metacharacters that can be escaped with backslash in patterns.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-provided glob pattern to canonical form.
//
// Unescaped backslashes become forward slashes (Windows compat); escaped
// glob metacharacters (\*, \?, \[ ...) are preserved for literal matching.
//
//	"data\2024\*.csv"  → "data/2024/*.csv"
//	"file\*.txt"       → "file\*.txt"
func NormalizePattern(pattern string) string {
	if pattern == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(pattern))

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			if strings.ContainsRune(globEscapable, next) {
				result.WriteRune('\\')
				result.WriteRune(next)
				i++
				continue
			}
			result.WriteRune('/')
			continue
		}

		if r == '\\' {
			result.WriteRune('/')
			continue
		}

		result.WriteRune(r)
	}

	return result.String()
}

// IsHidden returns true if any path segment starts with a dot.
//
//	"path/.hidden/file.txt" → true
//	"path/to/file.txt."     → false
func IsHidden(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if seg != "" && strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// RelativeName returns name with the listed prefix removed.
func RelativeName(name, prefix string) string {
	return strings.TrimPrefix(name, prefix)
}
