package navigator

import "sync"

// History is the navigation port: the browser-style location the navigator
// reads at startup and writes on every pushed navigation.
type History interface {
	// Location returns the current location (path plus optional query).
	Location() string
	// Push records a new location as the current one.
	Push(location string)
	// Back moves one entry back. It returns false at the oldest entry.
	Back() (string, bool)
	// Forward moves one entry forward. It returns false at the newest entry.
	Forward() (string, bool)
}

// MemoryHistory is an in-memory History with browser semantics: pushing
// discards any forward entries.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	index   int
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory returns a history positioned at initial ("/" if empty).
func NewMemoryHistory(initial string) *MemoryHistory {
	if initial == "" {
		initial = "/"
	}
	return &MemoryHistory{entries: []string{initial}}
}

// Location returns the entry at the cursor.
func (h *MemoryHistory) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Push appends location after the cursor and drops any forward entries.
// Pushing the current location again is a no-op.
func (h *MemoryHistory) Push(location string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[h.index] == location {
		return
	}
	h.entries = append(h.entries[:h.index+1], location)
	h.index++
}

// Back moves the cursor one entry back. At the oldest entry it stays put and
// returns that entry with false.
func (h *MemoryHistory) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return h.entries[0], false
	}
	h.index--
	return h.entries[h.index], true
}

// Forward moves the cursor one entry forward. At the newest entry it stays
// put and returns that entry with false.
func (h *MemoryHistory) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == len(h.entries)-1 {
		return h.entries[h.index], false
	}
	h.index++
	return h.entries[h.index], true
}

// Len returns the number of recorded entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
