package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates include and exclude globs against entry names.
//
// An entry matches if it matches at least one include (or there are no
// includes) and no exclude. Folders are tested with their trailing slash
// removed. The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
	foldersToo    bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns an entry must match (at least one).
	// Empty means every entry is included.
	Includes []string

	// Excludes are glob patterns an entry must not match.
	Excludes []string

	// IncludeHidden keeps entries with a dot-prefixed segment.
	IncludeHidden bool

	// MatchFolders applies include patterns to folders too. By default
	// folders are only subject to excludes, so navigation stays possible.
	MatchFolders bool
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a Matcher, validating every pattern.
func New(cfg Config) (*Matcher, error) {
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
		foldersToo:    cfg.MatchFolders,
	}, nil
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		normalized := NormalizePattern(strings.TrimSpace(r))
		if normalized == "" {
			continue
		}
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: r, Err: ErrInvalidPattern}
		}
		out = append(out, normalized)
	}
	return out, nil
}

// Match reports whether name passes. isFolder selects folder semantics.
func (m *Matcher) Match(name string, isFolder bool) bool {
	if !m.includeHidden && IsHidden(name) {
		return false
	}
	subject := strings.TrimSuffix(name, "/")

	for _, exc := range m.excludes {
		if matchPattern(exc, subject) {
			return false
		}
	}

	if len(m.includes) == 0 || (isFolder && !m.foldersToo) {
		return true
	}
	for _, inc := range m.includes {
		if matchPattern(inc, subject) {
			return true
		}
	}
	return false
}

// IncludePatterns returns the normalized include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string(nil), m.includes...)
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}

func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		// Validated at construction time.
		return false
	}
	return matched
}
