package listing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/pkg/provider"
)

// Delimiter is the hierarchy separator used for every listing request.
const Delimiter = "/"

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 5000

// PageFetcher issues one listing request for a prefix page.
type PageFetcher interface {
	ListPage(ctx context.Context, prefix, cursor string, pageSize int) (*Page, error)
}

// Fetcher adapts a provider.DelimiterLister into a PageFetcher.
//
// Each ListPage call issues exactly one provider request. There is no retry
// here; transport errors are returned as the provider reported them.
type Fetcher struct {
	lister provider.DelimiterLister
	logger *zap.Logger
}

var _ PageFetcher = (*Fetcher)(nil)

// NewFetcher returns a fetcher over lister. A nil logger disables logging.
func NewFetcher(lister provider.DelimiterLister, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{lister: lister, logger: logger}
}

// ListPage lists one page of the level directly under prefix.
func (f *Fetcher) ListPage(ctx context.Context, prefix, cursor string, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	start := time.Now()
	res, err := f.lister.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
		Prefix:            prefix,
		Delimiter:         Delimiter,
		ContinuationToken: cursor,
		MaxKeys:           pageSize,
	})
	if err != nil {
		f.logger.Debug("listing request failed",
			zap.String("prefix", prefix),
			zap.Bool("has_cursor", cursor != ""),
			zap.Error(err),
		)
		return nil, err
	}

	page := &Page{
		Prefix:     prefix,
		Entries:    make([]Entry, 0, len(res.CommonPrefixes)+len(res.Objects)),
		NextCursor: res.ContinuationToken,
	}
	if !res.IsTruncated {
		page.NextCursor = ""
	}

	for _, cp := range res.CommonPrefixes {
		page.Entries = append(page.Entries, Folder(cp))
	}
	for _, obj := range res.Objects {
		// Zero-byte directory marker objects share the prefix's own name.
		if obj.Key == prefix && prefix != "" {
			continue
		}
		var size *int64
		if obj.HasSize {
			s := obj.Size
			size = &s
		}
		var modified *time.Time
		if obj.HasLastModified {
			m := obj.LastModified
			modified = &m
		}
		page.Entries = append(page.Entries, File(obj.Key, size, modified))
	}

	f.logger.Debug("listed page",
		zap.String("prefix", prefix),
		zap.Int("folders", len(res.CommonPrefixes)),
		zap.Int("files", len(res.Objects)),
		zap.Bool("has_next", page.NextCursor != ""),
		zap.Duration("elapsed", time.Since(start)),
	)
	return page, nil
}
