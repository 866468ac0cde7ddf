package listing

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached page.
//
// PageSize and Cursor are part of the key, so the same prefix listed with a
// different page size is fetched separately. For first pages the key reduces
// to one entry per prefix.
type Key struct {
	Prefix   string
	Cursor   string
	PageSize int
}

func (k Key) flightKey() string {
	return strconv.Itoa(k.PageSize) + "\x00" + k.Cursor + "\x00" + k.Prefix
}

// Observer receives cache and fetch events. Implementations must be safe for
// concurrent use.
type Observer interface {
	CacheHit(key Key)
	CacheMiss(key Key)
	FetchDone(key Key, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CacheHit(Key)                        {}
func (nopObserver) CacheMiss(Key)                       {}
func (nopObserver) FetchDone(Key, time.Duration, error) {}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithObserver attaches an observer for hit/miss/fetch events.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// Cache memoizes listing pages for the lifetime of a session.
//
// At most one fetch is outstanding per key: concurrent callers for the same
// key share the in-flight request. Resolved pages are kept until the cache is
// discarded; failed fetches are not kept, so a later request retries.
type Cache struct {
	fetcher  PageFetcher
	observer Observer
	group    singleflight.Group

	mu    sync.RWMutex
	pages map[Key]*Page
}

// NewCache returns an empty cache backed by fetcher.
func NewCache(fetcher PageFetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		observer: nopObserver{},
		pages:    make(map[Key]*Page),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOrGet returns the page for key, fetching it at most once.
//
// The shared fetch is not bound to the caller's cancellation: if ctx ends
// first, FetchOrGet returns ctx.Err() while the fetch keeps running and still
// populates the cache.
func (c *Cache) FetchOrGet(ctx context.Context, key Key) (*Page, error) {
	if page, ok := c.lookup(key); ok {
		c.observer.CacheHit(key)
		return page, nil
	}
	c.observer.CacheMiss(key)

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.flightKey(), func() (any, error) {
		// A fetch for this key may have finished between lookup and DoChan.
		if page, ok := c.lookup(key); ok {
			return page, nil
		}

		start := time.Now()
		page, err := c.fetcher.ListPage(fetchCtx, key.Prefix, key.Cursor, key.PageSize)
		c.observer.FetchDone(key, time.Since(start), err)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.pages[key] = page
		c.mu.Unlock()
		return page, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Page), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Contains reports whether a resolved page is cached for key.
func (c *Cache) Contains(key Key) bool {
	_, ok := c.lookup(key)
	return ok
}

// Len returns the number of resolved pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

func (c *Cache) lookup(key Key) (*Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.pages[key]
	return page, ok
}
