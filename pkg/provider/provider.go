// Package provider defines abstractions for delimiter-based object listing.
//
// Providers implement a minimal surface area focused on listing a single
// pseudo-directory level at a time. Authentication uses SDK default credential
// chains or anonymous access - providers should not implement custom auth logic.
package provider

import (
	"context"
	"time"
)

// DelimiterLister supports delimiter-based listing.
//
// Delimiter listing returns:
//   - Objects directly under Prefix (no nested delimiter in the remainder)
//   - CommonPrefixes (immediate child prefixes, i.e. folder groups)
//
// Implementations should map to provider-native delimiter listing
// (S3 ListObjectsV2 with Delimiter, Azure List Blobs with delimiter) and
// must be safe for concurrent use.
type DelimiterLister interface {
	ListWithDelimiter(ctx context.Context, opts ListWithDelimiterOptions) (*ListWithDelimiterResult, error)
}

// Provider is a DelimiterLister that holds releasable resources.
type Provider interface {
	DelimiterLister

	// Close releases any resources held by the provider.
	Close() error
}

// ListWithDelimiterOptions configures a delimiter listing operation.
type ListWithDelimiterOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists the container root.
	Prefix string

	// Delimiter groups keys (e.g., "/").
	Delimiter string

	// ContinuationToken resumes listing from a previous ListWithDelimiterResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of keys returned per page.
	// Zero uses the provider default.
	MaxKeys int
}

// ListWithDelimiterResult contains a page of results from a delimiter listing.
type ListWithDelimiterResult struct {
	// Objects are object summaries directly under the requested Prefix,
	// in the order returned by the API.
	Objects []ObjectSummary

	// CommonPrefixes are the immediate child prefixes, in API order.
	CommonPrefixes []string

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from listing operations.
type ObjectSummary struct {
	// Key is the full object key (path) in the container.
	Key string

	// Size is the object size in bytes. Only meaningful when HasSize is true.
	Size int64

	// HasSize is false when the API omitted the content length.
	HasSize bool

	// LastModified is when the object was last modified.
	// Only meaningful when HasLastModified is true.
	LastModified time.Time

	// HasLastModified is false when the API omitted the timestamp.
	HasLastModified bool
}

// ProviderType identifies a listing provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderAzureBlob represents an Azure Blob Storage container.
	ProviderAzureBlob ProviderType = "azblob"

	// ProviderFile represents a local directory tree.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
