package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/nimbusview/internal/errors"
	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/navpath"
)

// SessionCookie carries the browsing session id.
const SessionCookie = "nv_session"

// NavigatorFactory builds a navigator for a new session whose history
// starts at location. All navigators it returns should share one cache.
type NavigatorFactory func(location string) *navigator.Navigator

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	NewNavigator NavigatorFactory
	MaxSessions  int
	Logger       *zap.Logger
	// OnSessions, when set, is called with the session count after it changes.
	OnSessions func(n int)
}

// Browser serves the listing API. Each cookie-identified session owns one
// navigator; sessions beyond MaxSessions evict the least recently used.
type Browser struct {
	cfg    BrowserConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	nav      *navigator.Navigator
	lastUsed time.Time
}

// NewBrowser returns a Browser with no sessions.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{cfg: cfg, logger: logger, sessions: make(map[string]*session)}
}

// Routes registers the listing API on r.
func (b *Browser) Routes(r chi.Router) {
	r.Get("/api/v1/listing", b.Listing)
	r.Post("/api/v1/back", b.Back)
	r.Post("/api/v1/forward", b.Forward)
	r.Get("/browse", b.BrowsePath)
	r.Get("/browse/*", b.BrowsePath)
}

// Sessions returns the number of live sessions.
func (b *Browser) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Close closes every session navigator.
func (b *Browser) Close() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[string]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		s.nav.Close()
	}
	b.reportSessions(0)
}

// Listing serves GET /api/v1/listing?prefix=&page=&sort=.
//
// A prefix different from the session's current one navigates there and
// records history; page selects a page among the cursors already seen; sort
// re-sorts the committed data. With no parameters the current page is
// reloaded from cache.
func (b *Browser) Listing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		page    int
		hasPage bool
	)
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, r, apperrors.BadRequest("page", errInvalidPage(raw)))
			return
		}
		page, hasPage = n, true
	}

	var spec listing.SortSpec
	hasSort := q.Has("sort")
	if hasSort {
		s, err := listing.ParseSortSpec(q.Get("sort"))
		if err != nil {
			respondWithError(w, r, apperrors.BadRequest("sort", err))
			return
		}
		spec = s
	}

	nav := b.session(w, r, navpath.LocationFor(q.Get(navpath.PrefixParam)))
	if hasSort {
		nav.SetSort(spec)
	}

	st := nav.Snapshot()
	target := st.CurrentPrefix
	if q.Has(navpath.PrefixParam) {
		target = navpath.Normalize(q.Get(navpath.PrefixParam))
	}

	ctx := r.Context()
	var (
		view navigator.View
		err  error
	)
	switch {
	case st.Generation == 0 || target != st.CurrentPrefix:
		push := ""
		if target != st.CurrentPrefix {
			push = navpath.LocationFor(target)
		}
		view, err = nav.Navigate(ctx, target, push)
		if err == nil && hasPage && page != view.PageIndex {
			view, err = nav.FetchPage(ctx, page)
		}
	case hasPage:
		view, err = nav.FetchPage(ctx, page)
	default:
		view, err = nav.FetchPage(ctx, st.PageIndex)
	}
	b.reply(w, r, view, err)
}

// Back serves POST /api/v1/back.
func (b *Browser) Back(w http.ResponseWriter, r *http.Request) {
	nav := b.session(w, r, "/")
	view, err := nav.Back(r.Context())
	b.reply(w, r, view, err)
}

// Forward serves POST /api/v1/forward.
func (b *Browser) Forward(w http.ResponseWriter, r *http.Request) {
	nav := b.session(w, r, "/")
	view, err := nav.Forward(r.Context())
	b.reply(w, r, view, err)
}

// BrowsePath serves GET /browse/<prefix>, the path-form entry point. The
// path wins over any ?prefix= query.
func (b *Browser) BrowsePath(w http.ResponseWriter, r *http.Request) {
	location := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	target := navpath.PrefixFromLocation(location)

	nav := b.session(w, r, navpath.LocationFor(target))
	push := ""
	if target != nav.Snapshot().CurrentPrefix {
		push = navpath.LocationFor(target)
	}
	view, err := nav.Navigate(r.Context(), target, push)
	b.reply(w, r, view, err)
}

func (b *Browser) reply(w http.ResponseWriter, r *http.Request, view navigator.View, err error) {
	if err != nil {
		b.logger.Debug("listing request failed",
			zap.String("prefix", view.Prefix),
			zap.Error(err),
		)
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// session returns the caller's navigator, creating a session (and cookie)
// at location when the cookie is missing, malformed or expired.
func (b *Browser) session(w http.ResponseWriter, r *http.Request, location string) *navigator.Navigator {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			id = c.Value
		}
	}

	b.mu.Lock()
	if s, ok := b.sessions[id]; ok && id != "" {
		s.lastUsed = time.Now()
		b.mu.Unlock()
		return s.nav
	}

	id = uuid.NewString()
	s := &session{nav: b.cfg.NewNavigator(location), lastUsed: time.Now()}
	b.sessions[id] = s
	evicted := b.evictLocked()
	n := len(b.sessions)
	b.mu.Unlock()

	for _, old := range evicted {
		go old.nav.Close()
	}
	b.reportSessions(n)
	b.logger.Debug("session created", zap.String("session", id), zap.Int("sessions", n))

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.nav
}

func (b *Browser) evictLocked() []*session {
	var evicted []*session
	for len(b.sessions) > b.cfg.MaxSessions {
		oldestID := ""
		var oldest time.Time
		for id, s := range b.sessions {
			if oldestID == "" || s.lastUsed.Before(oldest) {
				oldestID, oldest = id, s.lastUsed
			}
		}
		evicted = append(evicted, b.sessions[oldestID])
		delete(b.sessions, oldestID)
	}
	return evicted
}

func (b *Browser) reportSessions(n int) {
	if b.cfg.OnSessions != nil {
		b.cfg.OnSessions(n)
	}
}

type errInvalidPage string

func (e errInvalidPage) Error() string {
	return "invalid page " + strconv.Quote(string(e)) + " (want a non-negative integer)"
}
