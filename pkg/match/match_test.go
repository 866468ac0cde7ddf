package match

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/listing"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"*.html", "*.html"},
		{`data\2024\*.csv`, "data/2024/*.csv"},
		{`file\*.txt`, `file\*.txt`},
		{`trailing\`, "trailing/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePattern(tt.in))
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".env"))
	assert.True(t, IsHidden("a/.git/"))
	assert.False(t, IsHidden("a/file.txt."))
	assert.False(t, IsHidden(""))
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		entry    string
		isFolder bool
		want     bool
	}{
		{"no includes matches all", Config{}, "index.html", false, true},
		{"include hit", Config{Includes: []string{"*.html"}}, "index.html", false, true},
		{"include miss", Config{Includes: []string{"*.html"}}, "app.js", false, false},
		{"folder ignores includes", Config{Includes: []string{"*.html"}}, "assets/", true, true},
		{"folder with MatchFolders", Config{Includes: []string{"*.html"}, MatchFolders: true}, "assets/", true, false},
		{"folder trailing slash trimmed", Config{Includes: []string{"assets"}, MatchFolders: true}, "assets/", true, true},
		{"exclude wins", Config{Includes: []string{"*"}, Excludes: []string{"*.map"}}, "app.js.map", false, false},
		{"exclude folder", Config{Excludes: []string{"tmp"}}, "tmp/", true, false},
		{"hidden skipped", Config{}, ".DS_Store", false, false},
		{"hidden kept", Config{IncludeHidden: true}, ".DS_Store", false, true},
		{"brace set", Config{Includes: []string{"*.{png,jpg}"}}, "logo.jpg", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.entry, tt.isFolder))
		})
	}
}

func TestMatcher_InvalidPattern(t *testing.T) {
	_, err := New(Config{Includes: []string{"[abc"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	var pe *PatternError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "[abc", pe.Pattern)
}

func TestMatcher_PatternsCopied(t *testing.T) {
	m, err := New(Config{Includes: []string{" *.css ", ""}, Excludes: []string{`min\*`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.css"}, m.IncludePatterns())
	assert.Equal(t, []string{`min\*`}, m.ExcludePatterns())
}

func TestFilters(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	small := listing.File("site/a.txt", ptr(int64(10)), &jan)
	big := listing.File("site/b.bin", ptr(int64(10*MiB)), &jun)
	bare := listing.File("site/c", nil, nil)
	folder := listing.Folder("site/img")

	t.Run("size", func(t *testing.T) {
		f := &SizeFilter{Min: 100, Max: GiB}
		assert.False(t, f.Match(small))
		assert.True(t, f.Match(big))
		assert.True(t, f.Match(bare))
		assert.True(t, f.Match(folder))
	})

	t.Run("date", func(t *testing.T) {
		f := &DateFilter{After: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
		assert.False(t, f.Match(small))
		assert.True(t, f.Match(big))
		assert.True(t, f.Match(bare))

		f = &DateFilter{Before: jun}
		assert.True(t, f.Match(small))
		assert.False(t, f.Match(big))
	})

	t.Run("glob relative to prefix", func(t *testing.T) {
		m, err := New(Config{Includes: []string{"*.txt"}})
		require.NoError(t, err)
		f := &GlobFilter{Matcher: m, Prefix: "site/"}
		assert.True(t, f.Match(small))
		assert.False(t, f.Match(big))
		assert.True(t, f.Match(folder))
	})

	t.Run("all and entries", func(t *testing.T) {
		f := All{&SizeFilter{Min: 1}, nil, &DateFilter{Before: jun}}
		got := Entries([]listing.Entry{folder, small, big, bare}, f)
		assert.Equal(t, []listing.Entry{folder, small, bare}, got)

		in := []listing.Entry{small}
		assert.Equal(t, in, Entries(in, nil))
	})
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"512", 512, false},
		{"1KB", 1000, false},
		{"1.5MB", 1500000, false},
		{"100KiB", 100 * 1024, false},
		{"2 GiB", 2 * GiB, false},
		{"1k", 1000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10XB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = ParseDate("15/01/2024")
	assert.Error(t, err)
}
