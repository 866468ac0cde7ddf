package listing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (g *gatedFetcher) ListPage(ctx context.Context, prefix, cursor string, pageSize int) (*Page, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	return &Page{Prefix: prefix, Entries: []Entry{File(prefix+"f", nil, nil)}}, nil
}

type countingObserver struct {
	hits, misses, fetches atomic.Int32
}

func (o *countingObserver) CacheHit(Key)                        { o.hits.Add(1) }
func (o *countingObserver) CacheMiss(Key)                       { o.misses.Add(1) }
func (o *countingObserver) FetchDone(Key, time.Duration, error) { o.fetches.Add(1) }

func TestCache_ConcurrentCallersShareOneFetch(t *testing.T) {
	fetcher := &gatedFetcher{release: make(chan struct{})}
	cache := NewCache(fetcher)
	key := Key{Prefix: "a/", PageSize: 10}

	var wg sync.WaitGroup
	pages := make([]*Page, 8)
	for i := range pages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.FetchOrGet(context.Background(), key)
			assert.NoError(t, err)
			pages[i] = p
		}(i)
	}

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, p := range pages {
		assert.Same(t, pages[0], p)
	}
	assert.True(t, cache.Contains(key))
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ResolvedPageIsReturnedUnchanged(t *testing.T) {
	fetcher := &gatedFetcher{}
	obs := &countingObserver{}
	cache := NewCache(fetcher, WithObserver(obs))
	key := Key{Prefix: "a/", PageSize: 10}

	first, err := cache.FetchOrGet(context.Background(), key)
	require.NoError(t, err)
	second, err := cache.FetchOrGet(context.Background(), key)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), obs.hits.Load())
	assert.Equal(t, int32(1), obs.misses.Load())
	assert.Equal(t, int32(1), obs.fetches.Load())
}

func TestCache_KeyIncludesCursorAndPageSize(t *testing.T) {
	fetcher := &gatedFetcher{}
	cache := NewCache(fetcher)
	ctx := context.Background()

	_, err := cache.FetchOrGet(ctx, Key{Prefix: "a/", PageSize: 10})
	require.NoError(t, err)
	_, err = cache.FetchOrGet(ctx, Key{Prefix: "a/", PageSize: 20})
	require.NoError(t, err)
	_, err = cache.FetchOrGet(ctx, Key{Prefix: "a/", Cursor: "c1", PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, int32(3), fetcher.calls.Load())
	assert.Equal(t, 3, cache.Len())
}

func TestCache_FailuresAreNotMemoized(t *testing.T) {
	fetcher := &gatedFetcher{err: errors.New("boom")}
	cache := NewCache(fetcher)
	key := Key{Prefix: "a/", PageSize: 10}

	_, err := cache.FetchOrGet(context.Background(), key)
	require.Error(t, err)
	assert.False(t, cache.Contains(key))

	fetcher.err = nil
	page, err := cache.FetchOrGet(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "a/", page.Prefix)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestCache_CallerCancelDoesNotAbortFetch(t *testing.T) {
	fetcher := &gatedFetcher{release: make(chan struct{})}
	cache := NewCache(fetcher)
	key := Key{Prefix: "slow/", PageSize: 10}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.FetchOrGet(ctx, key)
		done <- err
	}()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(fetcher.release)
	require.Eventually(t, func() bool { return cache.Contains(key) }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}
