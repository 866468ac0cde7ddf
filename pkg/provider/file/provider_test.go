package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/provider"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(f), 0o644))
	}
	return root
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{BaseDir: "/tmp"}.Validate())
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(Config{BaseDir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.True(t, provider.IsBucketNotFound(err))
}

func TestListWithDelimiter_Root(t *testing.T) {
	root := writeTree(t, "a.txt", "docs/readme.md", "docs/sub/x.bin", "img/logo.png")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/", "img/"}, res.CommonPrefixes)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "a.txt", res.Objects[0].Key)
	assert.Equal(t, int64(5), res.Objects[0].Size)
	assert.True(t, res.Objects[0].HasSize)
	assert.False(t, res.IsTruncated)
}

func TestListWithDelimiter_NestedPrefix(t *testing.T) {
	root := writeTree(t, "docs/readme.md", "docs/sub/x.bin")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "docs/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/sub/"}, res.CommonPrefixes)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "docs/readme.md", res.Objects[0].Key)
}

func TestListWithDelimiter_Pagination(t *testing.T) {
	root := writeTree(t, "d/1", "d/2", "d/3")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "d/", Delimiter: "/", MaxKeys: 2})
	require.NoError(t, err)
	require.Len(t, first.Objects, 2)
	assert.True(t, first.IsTruncated)
	assert.Equal(t, "d/2", first.ContinuationToken)

	second, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "d/", Delimiter: "/", MaxKeys: 2, ContinuationToken: first.ContinuationToken})
	require.NoError(t, err)
	require.Len(t, second.Objects, 1)
	assert.Equal(t, "d/3", second.Objects[0].Key)
	assert.False(t, second.IsTruncated)
	assert.Empty(t, second.ContinuationToken)
}

func TestListWithDelimiter_MissingPrefixIsEmpty(t *testing.T) {
	root := writeTree(t, "a.txt")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "nope/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
	assert.Empty(t, res.CommonPrefixes)
}

func TestListWithDelimiter_ForeignCursorRejected(t *testing.T) {
	root := writeTree(t, "d/1")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	_, err = p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "d/", Delimiter: "/", ContinuationToken: "other/1"})
	require.Error(t, err)
	assert.True(t, provider.IsInvalidCursor(err))
}

func TestListWithDelimiter_TraversalStaysInBase(t *testing.T) {
	root := writeTree(t, "a.txt")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "../../", Delimiter: "/"})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "../../a.txt", res.Objects[0].Key)
}

func TestListWithDelimiter_LeadingSpaceFolder(t *testing.T) {
	root := writeTree(t, " archive/old.txt", "archive/new.txt")
	p, err := New(Config{BaseDir: root})
	require.NoError(t, err)

	ctx := context.Background()
	res, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{" archive/", "archive/"}, res.CommonPrefixes)

	res, err = p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: " archive/", Delimiter: "/"})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, " archive/old.txt", res.Objects[0].Key)
}
