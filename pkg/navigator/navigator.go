// Package navigator implements the browsing state machine: it maps a prefix
// to a cached listing page, tracks pagination cursors and sort order, warms
// the cache ahead of the user, and commits only the newest navigation.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navpath"
	"github.com/3leaps/nimbusview/pkg/provider"
)

var (
	// ErrPageOutOfRange indicates a page beyond the cursors observed so far.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrSuperseded indicates a newer navigation started before this one
	// resolved. The cache was still populated; the state was not changed.
	ErrSuperseded = errors.New("navigation superseded by a newer request")

	// ErrNoHistory indicates Back or Forward had nowhere to go.
	ErrNoHistory = errors.New("no history entry in that direction")
)

// InvalidCursorWarning is the warning set after a rejected cursor reset paging.
const InvalidCursorWarning = "pagination cursor was rejected; restarted from the first page"

// Metrics receives navigator events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	PrefetchIssued(kind string)
	StaleDropped()
}

type nopMetrics struct{}

func (nopMetrics) PrefetchIssued(string) {}
func (nopMetrics) StaleDropped()         {}

// Config configures a Navigator.
type Config struct {
	PageSize          int
	Sort              listing.SortSpec
	PrefetchAncestors bool
	PrefetchChildren  bool
	Prefetch          PrefetchConfig
	Retry             RetryPolicy
	Logger            *zap.Logger
	Metrics           Metrics
}

// DefaultConfig returns a config with both prefetch kinds enabled.
func DefaultConfig() Config {
	return Config{
		PageSize:          listing.DefaultPageSize,
		PrefetchAncestors: true,
		PrefetchChildren:  true,
		Prefetch:          DefaultPrefetchConfig(),
		Retry:             DefaultRetryPolicy(),
	}
}

// State is a snapshot of the navigation state. Snapshots are copies; callers
// may keep and modify them freely.
type State struct {
	CurrentPrefix string
	PageIndex     int
	// Cursors[i] starts page i; Cursors[0] is always "".
	Cursors    []string
	Sort       listing.SortSpec
	Loading    bool
	Data       []listing.Entry
	Err        error
	Warning    string
	Generation uint64
}

// TotalPages is the number of pages observed so far.
func (s State) TotalPages() int { return len(s.Cursors) }

func (s State) clone() State {
	s.Cursors = append([]string(nil), s.Cursors...)
	s.Sort = append(listing.SortSpec(nil), s.Sort...)
	s.Data = append([]listing.Entry(nil), s.Data...)
	return s
}

// Navigator is the browsing state machine for one session. Several
// navigators may share one cache.
type Navigator struct {
	cache    *listing.Cache
	history  History
	cfg      Config
	logger   *zap.Logger
	metrics  Metrics
	prefetch *prefetcher

	mu    sync.Mutex
	state State
}

// New returns a navigator whose initial prefix is read from history. It is
// idle and holds no data until Start or Navigate is called.
func New(cache *listing.Cache, history History, cfg Config) *Navigator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = listing.DefaultPageSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if history == nil {
		history = NewMemoryHistory("/")
	}

	return &Navigator{
		cache:    cache,
		history:  history,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		prefetch: newPrefetcher(cache, cfg.Prefetch, logger, metrics),
		state: State{
			CurrentPrefix: navpath.PrefixFromLocation(history.Location()),
			Cursors:       []string{""},
			Sort:          append(listing.SortSpec(nil), cfg.Sort...),
		},
	}
}

// Start loads the prefix given by the history's current location.
func (n *Navigator) Start(ctx context.Context) (View, error) {
	return n.Navigate(ctx, navpath.PrefixFromLocation(n.history.Location()), "")
}

// Navigate moves to target and loads its current page. Paging restarts at
// page 0 when target differs from the current prefix. A non-empty push is
// recorded in history.
func (n *Navigator) Navigate(ctx context.Context, target, push string) (View, error) {
	target = navpath.Normalize(target)

	n.mu.Lock()
	page := n.state.PageIndex
	if target != n.state.CurrentPrefix {
		page = 0
	}
	req := n.beginLocked(target, page)
	n.mu.Unlock()

	if push != "" {
		n.history.Push(push)
	}
	return n.run(ctx, req)
}

// FetchPage loads pageIndex of the current prefix using the cursor recorded
// for it. Pages beyond those observed return ErrPageOutOfRange.
func (n *Navigator) FetchPage(ctx context.Context, pageIndex int) (View, error) {
	n.mu.Lock()
	if pageIndex < 0 || pageIndex >= len(n.state.Cursors) {
		total := len(n.state.Cursors)
		n.mu.Unlock()
		return n.View(), fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, pageIndex+1, total)
	}
	req := n.beginLocked(n.state.CurrentPrefix, pageIndex)
	n.mu.Unlock()

	return n.run(ctx, req)
}

// SetSort replaces the sort spec and re-sorts the committed data in place.
func (n *Navigator) SetSort(spec listing.SortSpec) View {
	n.mu.Lock()
	n.state.Sort = append(listing.SortSpec(nil), spec...)
	data := append([]listing.Entry(nil), n.state.Data...)
	listing.Sort(data, n.state.Sort)
	n.state.Data = data
	n.mu.Unlock()
	return n.View()
}

// Back moves history back one entry and loads that location without pushing.
func (n *Navigator) Back(ctx context.Context) (View, error) {
	loc, ok := n.history.Back()
	if !ok {
		return n.View(), ErrNoHistory
	}
	return n.Navigate(ctx, navpath.PrefixFromLocation(loc), "")
}

// Forward moves history forward one entry and loads it without pushing.
func (n *Navigator) Forward(ctx context.Context) (View, error) {
	loc, ok := n.history.Forward()
	if !ok {
		return n.View(), ErrNoHistory
	}
	return n.Navigate(ctx, navpath.PrefixFromLocation(loc), "")
}

// Snapshot returns a copy of the current state.
func (n *Navigator) Snapshot() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.clone()
}

// Close waits for outstanding prefetches. The navigator must not be used
// afterwards.
func (n *Navigator) Close() {
	n.prefetch.close()
}

type request struct {
	gen    uint64
	prefix string
	page   int
	cursor string
}

// beginLocked enters Loading for prefix/page and bumps the generation.
// n.mu must be held.
func (n *Navigator) beginLocked(prefix string, page int) request {
	if prefix != n.state.CurrentPrefix {
		n.state.Cursors = []string{""}
		n.state.Data = nil
	}
	n.state.Generation++
	n.state.CurrentPrefix = prefix
	n.state.PageIndex = page
	n.state.Loading = true
	n.state.Err = nil
	n.state.Warning = ""

	return request{
		gen:    n.state.Generation,
		prefix: prefix,
		page:   page,
		cursor: n.state.Cursors[page],
	}
}

func (n *Navigator) key(prefix, cursor string) listing.Key {
	return listing.Key{Prefix: prefix, Cursor: cursor, PageSize: n.cfg.PageSize}
}

func (n *Navigator) run(ctx context.Context, req request) (View, error) {
	if n.cfg.PrefetchAncestors {
		for _, anc := range navpath.Ancestors(req.prefix) {
			n.prefetch.schedule(n.key(anc, ""), PrefetchAncestor)
		}
	}

	page, err := n.fetch(ctx, req)
	if err != nil && provider.IsInvalidCursor(err) && req.page > 0 {
		if !n.resetCursors(req) {
			n.metrics.StaleDropped()
			return n.View(), ErrSuperseded
		}
		req.page, req.cursor = 0, ""
		page, err = n.fetch(ctx, req)
	}
	if err != nil {
		return n.fail(req, err)
	}

	if n.cfg.PrefetchChildren {
		for _, e := range page.Folders() {
			if e.IsReserved() {
				continue
			}
			n.prefetch.schedule(n.key(e.Name, ""), PrefetchChild)
		}
	}

	return n.commit(req, page)
}

func (n *Navigator) fetch(ctx context.Context, req request) (*listing.Page, error) {
	var page *listing.Page
	err := n.cfg.Retry.do(ctx, func() error {
		var err error
		page, err = n.cache.FetchOrGet(ctx, n.key(req.prefix, req.cursor))
		return err
	}, func(attempt int, wait time.Duration, err error) {
		n.logger.Warn("listing failed, retrying",
			zap.String("prefix", req.prefix),
			zap.Int("page", req.page),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	return page, err
}

// resetCursors discards paging history after a rejected cursor. It reports
// false when req is no longer the active navigation.
func (n *Navigator) resetCursors(req request) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if req.gen != n.state.Generation {
		return false
	}
	n.logger.Warn("cursor rejected, restarting at first page",
		zap.String("prefix", req.prefix),
		zap.Int("page", req.page),
	)
	n.state.Cursors = []string{""}
	n.state.PageIndex = 0
	n.state.Warning = InvalidCursorWarning
	return true
}

func (n *Navigator) fail(req request, err error) (View, error) {
	n.mu.Lock()
	if req.gen != n.state.Generation {
		n.mu.Unlock()
		n.metrics.StaleDropped()
		return n.View(), ErrSuperseded
	}
	n.state.Loading = false
	n.state.Err = err
	n.mu.Unlock()

	n.logger.Error("listing failed",
		zap.String("prefix", req.prefix),
		zap.Int("page", req.page),
		zap.Error(err),
	)
	return n.View(), err
}

func (n *Navigator) commit(req request, page *listing.Page) (View, error) {
	data := listing.Merge(page)

	n.mu.Lock()
	if req.gen != n.state.Generation {
		n.mu.Unlock()
		n.metrics.StaleDropped()
		n.logger.Debug("dropping stale listing", zap.String("prefix", req.prefix))
		return n.View(), ErrSuperseded
	}

	if page.HasNext() {
		next := req.page + 1
		if next == len(n.state.Cursors) {
			n.state.Cursors = append(n.state.Cursors, page.NextCursor)
		} else {
			n.state.Cursors[next] = page.NextCursor
		}
	}

	listing.Sort(data, n.state.Sort)
	n.state.Data = data
	n.state.Loading = false
	n.state.Err = nil
	n.mu.Unlock()

	return n.View(), nil
}
