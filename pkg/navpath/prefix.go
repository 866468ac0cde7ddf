// Package navpath maps between listing prefixes, browser-style locations and
// the presentation metadata (breadcrumbs, row links) derived from them.
//
// The root prefix is the empty string. Every other prefix has no leading
// slash and exactly one trailing slash.
package navpath

import "strings"

// Normalize strips leading slashes and ensures a trailing slash unless the
// result is root. Whitespace is part of the key and is kept.
func Normalize(prefix string) string {
	p := strings.TrimLeft(prefix, "/")
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// IsRoot reports whether prefix denotes the container root.
func IsRoot(prefix string) bool {
	return Normalize(prefix) == ""
}

// Segments returns the non-empty "/"-separated components of prefix.
func Segments(prefix string) []string {
	parts := strings.Split(prefix, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ancestors returns every proper ancestor of prefix in root-to-leaf order,
// starting with the root "" and excluding prefix itself.
//
//	Ancestors("a/b/c/") == []string{"", "a/", "a/b/"}
func Ancestors(prefix string) []string {
	prefix = Normalize(prefix)
	if prefix == "" {
		return nil
	}
	segs := Segments(prefix)
	out := make([]string, 0, len(segs))
	out = append(out, "")
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/")+"/")
	}
	return out
}

// Parent returns the parent of prefix, or "" for top-level prefixes and root.
func Parent(prefix string) string {
	segs := Segments(Normalize(prefix))
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], "/") + "/"
}
