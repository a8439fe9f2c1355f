package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/phrasemark/highlighter"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/settings"
	"github.com/hazyhaar/phrasemark/surface"
)

var (
	_ surface.Document = (*Page)(nil)
	_ surface.Surface  = (*element)(nil)
	_ surface.Shadow   = (*shadow)(nil)
)

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent(`{"kind":"annotation_click","surface":"s1","annotation":{"phrase":"нельзя","replacements":["можно"],"box":{"x":1,"y":2,"width":3,"height":4}}}`)
	require.NoError(t, err)
	assert.Equal(t, surface.KindAnnotationClick, ev.Kind)
	assert.Equal(t, "s1", ev.Surface)
	require.NotNil(t, ev.Annotation)
	assert.Equal(t, []string{"можно"}, ev.Annotation.Replacements)
	assert.Equal(t, surface.Rect{X: 1, Y: 2, Width: 3, Height: 4}, ev.Annotation.Box)

	ev, err = parseEvent(`{"kind":"removed","surfaces":["a","b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ev.Surfaces)

	ev, err = parseEvent(`{"kind":"menu_select","index":2}`)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Index)

	_, err = parseEvent(`{"surface":"x"}`)
	assert.Error(t, err)
	_, err = parseEvent(`not json`)
	assert.Error(t, err)
}

func TestAgentScript(t *testing.T) {
	js := strings.TrimSpace(agentJS)
	assert.Contains(t, js, bindingName)
	assert.True(t, strings.HasSuffix(js, "}"))
	assert.Contains(t, js, "window.__phrasemark = api")
}

// TestPage_EndToEnd drives a real Chrome. Set PHRASEMARK_CHROME=1 to run it.
func TestPage_EndToEnd(t *testing.T) {
	if os.Getenv("PHRASEMARK_CHROME") == "" {
		t.Skip("PHRASEMARK_CHROME not set")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><body>
<div id="chat" contenteditable="true" style="width:300px;height:80px">Это неправильно.</div>
</body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mgr := NewManager(Config{Headless: true})
	_, err := mgr.Start(ctx)
	require.NoError(t, err)
	defer mgr.Close()

	tab, err := OpenTab(ctx, mgr, srv.URL, true)
	require.NoError(t, err)
	defer tab.Close()

	page, err := Attach(ctx, tab, nil)
	require.NoError(t, err)
	defer page.Close()

	h := highlighter.New(page)
	s := settings.Default()
	s.AllowedHosts = []string{page.Host()}
	s.Phrases = []phrase.Phrase{{Find: "неправильно", Replacements: []string{"правильно"}}}
	require.NoError(t, h.Apply(s))
	defer h.Disable()

	require.Equal(t, int64(1), h.Stats().Overlay.Bound)
	markup, err := tab.Eval(`() => document.querySelector('.highlight-overlay').innerHTML`)
	require.NoError(t, err)
	assert.Contains(t, markup.Value.Str(), `class="highlighted-phrase"`)

	assert.Equal(t, "replaced", h.Replace("неправильно", "правильно").String())
	require.Eventually(t, func() bool {
		res, err := tab.Eval(`() => document.querySelector('.highlight-overlay').innerHTML`)
		return err == nil && !strings.Contains(res.Value.Str(), "highlighted-phrase")
	}, 5*time.Second, 50*time.Millisecond)
}
