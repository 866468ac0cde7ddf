package azure

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/3leaps/nimbusview/pkg/provider"
)

// segmentLister fetches one hierarchy listing segment.
type segmentLister interface {
	ListSegment(ctx context.Context, delimiter string, opts *container.ListBlobsHierarchyOptions) (container.ListBlobsHierarchyResponse, error)
}

// pagerLister drives a container client's hierarchy pager for exactly one page.
type pagerLister struct {
	client *container.Client
}

func (l pagerLister) ListSegment(ctx context.Context, delimiter string, opts *container.ListBlobsHierarchyOptions) (container.ListBlobsHierarchyResponse, error) {
	pager := l.client.NewListBlobsHierarchyPager(delimiter, opts)
	return pager.NextPage(ctx)
}

// Provider implements provider.Provider for an Azure Blob container.
type Provider struct {
	lister     segmentLister
	container  string
	maxResults int
}

var _ provider.Provider = (*Provider)(nil)

// New creates a provider for the configured container.
//
// SDK-level retries are disabled; callers retry transient failures.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithNoCredential(cfg.ServiceURL(), &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderAzureBlob,
			Bucket:   cfg.Container,
			Err:      err,
		}
	}

	lister := pagerLister{client: client.ServiceClient().NewContainerClient(cfg.Container)}
	return newWithLister(lister, cfg), nil
}

func newWithLister(lister segmentLister, cfg Config) *Provider {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Provider{
		lister:     lister,
		container:  cfg.Container,
		maxResults: maxResults,
	}
}

// ListWithDelimiter lists one pseudo-directory level of the container.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	maxResults := opts.MaxKeys
	if maxResults <= 0 {
		maxResults = p.maxResults
	}
	if maxResults > MaxAllowedResults {
		maxResults = MaxAllowedResults
	}

	listOpts := &container.ListBlobsHierarchyOptions{
		MaxResults: to.Ptr(int32(maxResults)),
	}
	if opts.Prefix != "" {
		listOpts.Prefix = to.Ptr(opts.Prefix)
	}
	if opts.ContinuationToken != "" {
		listOpts.Marker = to.Ptr(opts.ContinuationToken)
	}

	resp, err := p.lister.ListSegment(ctx, delimiter, listOpts)
	if err != nil {
		return nil, p.wrapError(opts.Prefix, opts.ContinuationToken != "", err)
	}

	return fromHierarchyResponse(resp), nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func fromHierarchyResponse(resp container.ListBlobsHierarchyResponse) *provider.ListWithDelimiterResult {
	result := &provider.ListWithDelimiterResult{}

	if seg := resp.Segment; seg != nil {
		for _, bp := range seg.BlobPrefixes {
			if bp == nil || bp.Name == nil {
				continue
			}
			result.CommonPrefixes = append(result.CommonPrefixes, *bp.Name)
		}
		for _, item := range seg.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			summary := provider.ObjectSummary{Key: *item.Name}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					summary.Size = *props.ContentLength
					summary.HasSize = true
				}
				if props.LastModified != nil {
					summary.LastModified = props.LastModified.UTC()
					summary.HasLastModified = true
				}
			}
			result.Objects = append(result.Objects, summary)
		}
	}

	if resp.NextMarker != nil && *resp.NextMarker != "" {
		result.ContinuationToken = *resp.NextMarker
		result.IsTruncated = true
	}
	return result
}

// wrapError converts Azure errors to provider errors with sentinel errors.
func (p *Provider) wrapError(prefix string, hadMarker bool, err error) error {
	wrapped := &provider.ProviderError{
		Op:       "ListWithDelimiter",
		Provider: provider.ProviderAzureBlob,
		Bucket:   p.container,
		Key:      prefix,
		Err:      err,
	}

	switch {
	case hadMarker && bloberror.HasCode(err, bloberror.OutOfRangeInput, bloberror.InvalidQueryParameterValue):
		wrapped.Err = provider.ErrInvalidCursor
		return wrapped
	case bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.ContainerBeingDeleted):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.NoAuthenticationInformation):
		wrapped.Err = provider.ErrInvalidCredentials
		return wrapped
	case bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		wrapped.Err = provider.ErrAccessDenied
		return wrapped
	case bloberror.HasCode(err, bloberror.ServerBusy):
		wrapped.Err = provider.ErrThrottled
		return wrapped
	case bloberror.HasCode(err, bloberror.InternalError, bloberror.OperationTimedOut):
		wrapped.Err = provider.ErrProviderUnavailable
		return wrapped
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			wrapped.Err = provider.ErrNotFound
		case http.StatusUnauthorized:
			wrapped.Err = provider.ErrInvalidCredentials
		case http.StatusForbidden:
			wrapped.Err = provider.ErrAccessDenied
		case http.StatusTooManyRequests:
			wrapped.Err = provider.ErrThrottled
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}
	return wrapped
}
