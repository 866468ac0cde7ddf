//go:build cloudintegration

package s3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/provider"
	"github.com/3leaps/nimbusview/pkg/provider/s3"
	"github.com/3leaps/nimbusview/test/cloudtest"
)

func newMotoProvider(t *testing.T, ctx context.Context, bucket string) *s3.Provider {
	t.Helper()
	p, err := s3.New(ctx, s3.Config{
		Bucket:          bucket,
		Endpoint:        cloudtest.Endpoint,
		Region:          cloudtest.Region,
		AccessKeyID:     cloudtest.TestAccessKeyID,
		SecretAccessKey: cloudtest.TestSecretAccessKey,
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_ListWithDelimiter_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()
	cloudtest.ResetT(t, ctx)

	t.Run("site merges folders first and hides view", func(t *testing.T) {
		bucket := cloudtest.SeedSite(t, ctx)
		p := newMotoProvider(t, ctx, bucket)

		page, err := listing.NewFetcher(p, nil).ListPage(ctx, "", "", listing.DefaultPageSize)
		require.NoError(t, err)

		var names []string
		for _, e := range listing.Merge(page) {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{"docs/", "img/", "index.html"}, names)

		page, err = listing.NewFetcher(p, nil).ListPage(ctx, "docs/", "", listing.DefaultPageSize)
		require.NoError(t, err)
		require.Len(t, page.Files(), 2)
		assert.Equal(t, int64(len(cloudtest.SiteTree["docs/b.md"])), *page.Files()[1].ContentLength)
		assert.NotNil(t, page.Files()[1].LastModified)
	})

	t.Run("splits folders and files at one level", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{
			"index.html",
			"docs/a.txt",
			"docs/sub/b.txt",
			"img/logo.png",
		})
		p := newMotoProvider(t, ctx, bucket)

		res, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Delimiter: "/"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"docs/", "img/"}, res.CommonPrefixes)
		require.Len(t, res.Objects, 1)
		assert.Equal(t, "index.html", res.Objects[0].Key)
		assert.True(t, res.Objects[0].HasSize)

		res, err = p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "docs/", Delimiter: "/"})
		require.NoError(t, err)
		assert.Equal(t, []string{"docs/sub/"}, res.CommonPrefixes)
		require.Len(t, res.Objects, 1)
		assert.Equal(t, "docs/a.txt", res.Objects[0].Key)
	})

	t.Run("paginates with continuation token", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{"f1", "f2", "f3"})
		p := newMotoProvider(t, ctx, bucket)

		first, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Delimiter: "/", MaxKeys: 2})
		require.NoError(t, err)
		assert.Len(t, first.Objects, 2)
		assert.True(t, first.IsTruncated)
		require.NotEmpty(t, first.ContinuationToken)

		second, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Delimiter:         "/",
			MaxKeys:           2,
			ContinuationToken: first.ContinuationToken,
		})
		require.NoError(t, err)
		assert.Len(t, second.Objects, 1)
		assert.False(t, second.IsTruncated)
	})

	t.Run("returns ErrBucketNotFound for missing bucket", func(t *testing.T) {
		p := newMotoProvider(t, ctx, "nonexistent-bucket-12345")

		_, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Delimiter: "/"})
		require.Error(t, err)
		assert.True(t, provider.IsBucketNotFound(err))
	})
}
