package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryHistory(t *testing.T) {
	h := NewMemoryHistory("")
	assert.Equal(t, "/", h.Location())

	h.Push("/?prefix=a/")
	h.Push("/?prefix=a/")
	h.Push("/?prefix=a/b/")
	assert.Equal(t, 3, h.Len())

	loc, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "/?prefix=a/", loc)

	h.Push("/?prefix=c/")
	assert.Equal(t, 3, h.Len())
	_, ok = h.Forward()
	assert.False(t, ok)

	h.Back()
	h.Back()
	loc, ok = h.Back()
	assert.False(t, ok)
	assert.Equal(t, "/", loc)
}

func TestMemoryHistory_BoundsKeepCursor(t *testing.T) {
	h := NewMemoryHistory("/?prefix=docs/")

	loc, ok := h.Forward()
	assert.False(t, ok)
	assert.Equal(t, "/?prefix=docs/", loc)

	loc, ok = h.Back()
	assert.False(t, ok)
	assert.Equal(t, "/?prefix=docs/", loc)
	assert.Equal(t, "/?prefix=docs/", h.Location())

	h.Push("/?prefix=docs/api/")
	loc, ok = h.Back()
	assert.True(t, ok)
	assert.Equal(t, "/?prefix=docs/", loc)
	loc, ok = h.Forward()
	assert.True(t, ok)
	assert.Equal(t, "/?prefix=docs/api/", loc)
	assert.Equal(t, "/?prefix=docs/api/", h.Location())
}
