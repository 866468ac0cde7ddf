package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/nimbusview/pkg/listing"
)

// Filter evaluates a listing entry.
type Filter interface {
	Match(e listing.Entry) bool
}

// SizeFilter keeps files whose content length lies within [Min, Max].
// Folders and files without a reported size always pass.
type SizeFilter struct {
	Min int64
	Max int64 // 0 means no upper bound
}

// Match implements Filter.
func (f *SizeFilter) Match(e listing.Entry) bool {
	if e.IsFolder() || e.ContentLength == nil {
		return true
	}
	size := *e.ContentLength
	if f.Min > 0 && size < f.Min {
		return false
	}
	if f.Max > 0 && size > f.Max {
		return false
	}
	return true
}

// DateFilter keeps files modified within [After, Before). Zero bounds are
// open. Folders and files without a timestamp always pass.
type DateFilter struct {
	After  time.Time
	Before time.Time
}

// Match implements Filter.
func (f *DateFilter) Match(e listing.Entry) bool {
	if e.IsFolder() || e.LastModified == nil {
		return true
	}
	mod := *e.LastModified
	if !f.After.IsZero() && mod.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && !mod.Before(f.Before) {
		return false
	}
	return true
}

// GlobFilter applies a Matcher to entry names relative to Prefix.
type GlobFilter struct {
	Matcher *Matcher
	Prefix  string
}

// Match implements Filter.
func (f *GlobFilter) Match(e listing.Entry) bool {
	if f.Matcher == nil {
		return true
	}
	return f.Matcher.Match(RelativeName(e.Name, f.Prefix), e.IsFolder())
}

// All combines filters with AND semantics. Nil filters are skipped.
type All []Filter

// Match implements Filter.
func (a All) Match(e listing.Entry) bool {
	for _, f := range a {
		if f != nil && !f.Match(e) {
			return false
		}
	}
	return true
}

// Entries returns the entries accepted by f in their original order.
// A nil filter returns entries unchanged.
func Entries(entries []listing.Entry, f Filter) []listing.Entry {
	if f == nil {
		return entries
	}
	out := make([]listing.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Size constants for human-readable parsing.
const (
	KB  int64 = 1000
	MB  int64 = 1000 * KB
	GB  int64 = 1000 * MB
	TB  int64 = 1000 * GB
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// ParseSize parses a human-readable size such as "1.5MB", "100KiB" or "512".
// Decimal suffixes are powers of 1000, binary ones powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number: %w", err)
	}

	var mult int64
	switch strings.ToUpper(m[2]) {
	case "", "B":
		mult = 1
	case "K", "KB":
		mult = KB
	case "M", "MB":
		mult = MB
	case "G", "GB":
		mult = GB
	case "T", "TB":
		mult = TB
	case "KIB":
		mult = KiB
	case "MIB":
		mult = MiB
	case "GIB":
		mult = GiB
	case "TIB":
		mult = TiB
	default:
		return 0, fmt.Errorf("unknown size unit: %q", m[2])
	}

	return int64(num * float64(mult)), nil
}

// ParseDate parses an RFC3339 timestamp or a plain YYYY-MM-DD date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date format: %q (expected RFC3339 or YYYY-MM-DD)", s)
}
