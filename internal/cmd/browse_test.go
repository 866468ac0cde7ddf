package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/navigator"
)

func runScript(t *testing.T, nav *navigator.Navigator, script string) string {
	t.Helper()
	var out bytes.Buffer
	r := &repl{nav: nav, out: &out}
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))
	return out.String()
}

func TestREPL_Session(t *testing.T) {
	nav := newTestNavigator(t, newSiteLister(), "/")

	out := runScript(t, nav, strings.Join([]string{
		"cd docs",
		"next",
		"prev",
		"page 3",
		"cd 2",
		"pwd",
		"back",
		"back",
		"forward",
		"crumbs",
		"bogus",
		"quit",
		"cd img",
	}, "\n"))

	assert.Contains(t, out, "page 2 of 2")
	assert.Contains(t, out, "no such page")
	assert.Contains(t, out, "root / docs / api\n")
	assert.Contains(t, out, "/docs/api/\n")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.NotContains(t, out, "logo.png", "commands after quit must not run")

	st := nav.Snapshot()
	assert.Equal(t, "docs/", st.CurrentPrefix)
	assert.Equal(t, 0, st.PageIndex)
}

func TestREPL_StartsAtHistoryLocation(t *testing.T) {
	nav := newTestNavigator(t, newSiteLister(), "/?prefix=img/")

	out := runScript(t, nav, "")
	assert.True(t, strings.HasPrefix(out, "root / img\n"))
	assert.Contains(t, out, "logo.png")
	assert.Contains(t, out, "2.0 KiB")
	assert.NotContains(t, out, "page 1 of")
}

func TestREPL_Errors(t *testing.T) {
	nav := newTestNavigator(t, newSiteLister(), "/")

	out := runScript(t, nav, "back\nforward\nprev\npage x\npage\nsort bogus\ncd 3\n")
	assert.Equal(t, 2, strings.Count(out, "no history in that direction"))
	assert.Contains(t, out, "no such page")
	assert.Contains(t, out, `invalid page "x"`)
	assert.Contains(t, out, "usage: page <n>")
	assert.Contains(t, out, "unknown sort field")
	assert.Contains(t, out, "not a folder: 3")
	assert.Equal(t, "", nav.Snapshot().CurrentPrefix)
}

func TestREPL_Sort(t *testing.T) {
	nav := newTestNavigator(t, newSiteLister(), "/?prefix=docs/")

	runScript(t, nav, "sort name\n")
	data := nav.Snapshot().Data
	require.Len(t, data, 3)
	assert.Equal(t, "docs/a.md", data[0].Name)
	assert.Equal(t, "docs/api/", data[1].Name)
	assert.Equal(t, "docs/b.md", data[2].Name)
}

func TestResolveTarget(t *testing.T) {
	nav := newTestNavigator(t, newSiteLister(), "/?prefix=docs/")
	_, err := nav.Start(context.Background())
	require.NoError(t, err)
	st := nav.Snapshot()
	r := &repl{nav: nav}

	tests := []struct {
		arg    string
		want   string
		wantOK bool
	}{
		{"", "", true},
		{"/", "", true},
		{"..", "", true},
		{"/img", "img/", true},
		{"api", "docs/api/", true},
		{"api/", "docs/api/", true},
		{"1", "", true},
		{"2", "docs/api/", true},
		{"3", "", false},
		{"99", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, ok := r.resolveTarget(st, tt.arg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
