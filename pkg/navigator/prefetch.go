package navigator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/nimbusview/pkg/listing"
)

// Prefetch kinds reported to Metrics.
const (
	PrefetchAncestor = "ancestor"
	PrefetchChild    = "child"
)

// PrefetchConfig bounds background cache warming.
type PrefetchConfig struct {
	Parallel int           // concurrent prefetches
	Rate     float64       // prefetches started per second (0 = unlimited)
	Burst    int           // limiter burst
	Timeout  time.Duration // per-prefetch deadline
}

// DefaultPrefetchConfig returns the prefetch bounds used when none are configured.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Parallel: 4,
		Rate:     20,
		Burst:    4,
		Timeout:  30 * time.Second,
	}
}

// prefetcher warms the cache on background goroutines. Prefetches are
// detached from the navigation that issued them and never touch state.
type prefetcher struct {
	cache   *listing.Cache
	logger  *zap.Logger
	metrics Metrics
	cfg     PrefetchConfig

	sem     chan struct{}
	limiter *rate.Limiter
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newPrefetcher(cache *listing.Cache, cfg PrefetchConfig, logger *zap.Logger, metrics Metrics) *prefetcher {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPrefetchConfig().Timeout
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &prefetcher{
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.Parallel),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// schedule starts a fire-and-forget fetch of key unless it is already cached.
func (p *prefetcher) schedule(key listing.Key, kind string) {
	if p.cache.Contains(key) {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.PrefetchIssued(kind)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()

		if _, err := p.cache.FetchOrGet(ctx, key); err != nil {
			p.logger.Debug("prefetch failed",
				zap.String("kind", kind),
				zap.String("prefix", key.Prefix),
				zap.Error(err),
			)
		}
	}()
}

// close stops new prefetches and waits for outstanding ones.
func (p *prefetcher) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
