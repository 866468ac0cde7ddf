package azure

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/provider"
)

type fakeSegmentLister struct {
	delimiter string
	opts      *container.ListBlobsHierarchyOptions
	resp      container.ListBlobsHierarchyResponse
	err       error
}

func (f *fakeSegmentLister) ListSegment(_ context.Context, delimiter string, opts *container.ListBlobsHierarchyOptions) (container.ListBlobsHierarchyResponse, error) {
	f.delimiter = delimiter
	f.opts = opts
	return f.resp, f.err
}

func hierarchyResponse(prefixes []string, items []*container.BlobItem, next string) container.ListBlobsHierarchyResponse {
	seg := &container.BlobHierarchyListSegment{BlobItems: items}
	for _, p := range prefixes {
		seg.BlobPrefixes = append(seg.BlobPrefixes, &container.BlobPrefix{Name: to.Ptr(p)})
	}
	resp := container.ListBlobsHierarchyResponse{}
	resp.Segment = seg
	if next != "" {
		resp.NextMarker = to.Ptr(next)
	}
	return resp
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"missing container", Config{Account: "acct"}, "container name is required"},
		{"missing account and endpoint", Config{Container: "$web"}, "account name or endpoint is required"},
		{"account", Config{Account: "acct", Container: "$web"}, ""},
		{"endpoint", Config{Endpoint: "http://127.0.0.1:10000/devstoreaccount1", Container: "$web"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ServiceURL(t *testing.T) {
	assert.Equal(t, "https://acct.blob.core.windows.net/", (&Config{Account: "acct"}).ServiceURL())
	assert.Equal(t, "https://acct.blob.core.windows.net/?sv=1&sig=x", (&Config{Account: "acct", SASToken: "?sv=1&sig=x"}).ServiceURL())
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1/", (&Config{Endpoint: "http://127.0.0.1:10000/devstoreaccount1/"}).ServiceURL())
}

func TestNew_ValidationError(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNew_Anonymous(t *testing.T) {
	p, err := New(Config{Account: "acct", Container: "$web"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestListWithDelimiter_MapsSegment(t *testing.T) {
	mod := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	fake := &fakeSegmentLister{resp: hierarchyResponse(
		[]string{"docs/a/", "docs/b/"},
		[]*container.BlobItem{
			{Name: to.Ptr("docs/index.html"), Properties: &container.BlobProperties{ContentLength: to.Ptr(int64(12)), LastModified: to.Ptr(mod)}},
			{Name: to.Ptr("docs/empty")},
			nil,
		},
		"marker-2",
	)}
	p := newWithLister(fake, Config{Account: "acct", Container: "$web"})

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{
		Prefix:            "docs/",
		ContinuationToken: "marker-1",
		MaxKeys:           9000,
	})
	require.NoError(t, err)

	assert.Equal(t, "/", fake.delimiter)
	require.NotNil(t, fake.opts)
	assert.Equal(t, "docs/", *fake.opts.Prefix)
	assert.Equal(t, "marker-1", *fake.opts.Marker)
	assert.Equal(t, int32(MaxAllowedResults), *fake.opts.MaxResults)

	assert.Equal(t, []string{"docs/a/", "docs/b/"}, res.CommonPrefixes)
	require.Len(t, res.Objects, 2)
	assert.Equal(t, "docs/index.html", res.Objects[0].Key)
	assert.Equal(t, int64(12), res.Objects[0].Size)
	assert.True(t, res.Objects[0].HasSize)
	assert.Equal(t, mod, res.Objects[0].LastModified)
	assert.False(t, res.Objects[1].HasSize)
	assert.False(t, res.Objects[1].HasLastModified)
	assert.True(t, res.IsTruncated)
	assert.Equal(t, "marker-2", res.ContinuationToken)
}

func TestListWithDelimiter_LastPage(t *testing.T) {
	fake := &fakeSegmentLister{resp: hierarchyResponse(nil, nil, "")}
	p := newWithLister(fake, Config{Account: "acct", Container: "$web", MaxResults: 50})

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{})
	require.NoError(t, err)
	assert.Nil(t, fake.opts.Prefix)
	assert.Nil(t, fake.opts.Marker)
	assert.Equal(t, int32(50), *fake.opts.MaxResults)
	assert.False(t, res.IsTruncated)
	assert.Empty(t, res.ContinuationToken)
}

func TestListWithDelimiter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		hadMarker bool
		expected  error
	}{
		{"container not found", &azcore.ResponseError{ErrorCode: "ContainerNotFound", StatusCode: http.StatusNotFound}, false, provider.ErrBucketNotFound},
		{"bad marker", &azcore.ResponseError{ErrorCode: "OutOfRangeInput", StatusCode: http.StatusBadRequest}, true, provider.ErrInvalidCursor},
		{"auth failure", &azcore.ResponseError{ErrorCode: "AuthorizationFailure", StatusCode: http.StatusForbidden}, false, provider.ErrAccessDenied},
		{"server busy", &azcore.ResponseError{ErrorCode: "ServerBusy", StatusCode: http.StatusServiceUnavailable}, false, provider.ErrThrottled},
		{"bare 503", &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable}, false, provider.ErrProviderUnavailable},
		{"bare 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, false, provider.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSegmentLister{err: tt.err}
			p := newWithLister(fake, Config{Account: "acct", Container: "$web"})
			opts := provider.ListWithDelimiterOptions{Prefix: "docs/"}
			if tt.hadMarker {
				opts.ContinuationToken = "stale"
			}
			_, err := p.ListWithDelimiter(context.Background(), opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)

			var provErr *provider.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, provider.ProviderAzureBlob, provErr.Provider)
			assert.Equal(t, "$web", provErr.Bucket)
		})
	}
}

func TestListWithDelimiter_OutOfRangeWithoutMarkerIsNotCursorError(t *testing.T) {
	fake := &fakeSegmentLister{err: &azcore.ResponseError{ErrorCode: "OutOfRangeInput", StatusCode: http.StatusBadRequest}}
	p := newWithLister(fake, Config{Account: "acct", Container: "$web"})

	_, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{})
	require.Error(t, err)
	assert.False(t, provider.IsInvalidCursor(err))
}
