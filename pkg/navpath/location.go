package navpath

import (
	"net/url"
	"strings"
)

// PrefixParam is the query parameter carrying a prefix in query form.
const PrefixParam = "prefix"

// PrefixFromLocation extracts the normalized prefix from a location such as
// "/a/b/" or "/?prefix=a/b/". A non-root path wins over the query parameter.
func PrefixFromLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return Normalize(location)
	}

	path := u.Path
	if path != "" && path != "/" {
		return Normalize(path)
	}
	return Normalize(u.Query().Get(PrefixParam))
}

// LocationFor returns the query-form location for a prefix: "/" for root,
// "/?prefix=<prefix>" otherwise.
func LocationFor(prefix string) string {
	prefix = Normalize(prefix)
	if prefix == "" {
		return "/"
	}
	return "/?" + PrefixParam + "=" + escapePrefix(prefix)
}

// PathLocationFor returns the path-form location for a prefix ("/a/b/").
func PathLocationFor(prefix string) string {
	return "/" + escapePath(Normalize(prefix))
}

// ObjectLocation returns the direct location of an object key ("/a/b.txt").
func ObjectLocation(key string) string {
	return "/" + escapePath(strings.TrimLeft(key, "/"))
}

// escapePrefix query-escapes a prefix but keeps "/" readable.
func escapePrefix(prefix string) string {
	return strings.ReplaceAll(url.QueryEscape(prefix), "%2F", "/")
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
