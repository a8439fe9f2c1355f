package highlighter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/phrasemark/dbopen"
	"github.com/hazyhaar/phrasemark/idgen"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/settings"
	"github.com/hazyhaar/phrasemark/surface/memdoc"

	_ "modernc.org/sqlite"
)

const page = `<html><body>
<div id="chat" contenteditable="true">Это неправильно.</div>
<textarea id="note">нельзя так</textarea>
</body></html>`

func testSettings() settings.Settings {
	s := settings.Default()
	s.Phrases = []phrase.Phrase{
		{Find: "неправильно", Replacements: []string{"правильно", "точнее"}},
		{Find: "нельзя"},
	}
	return s
}

func start(t *testing.T, host, markup string) (*Highlighter, *memdoc.Doc) {
	t.Helper()
	doc := memdoc.MustParse(host, markup)
	h := New(doc, WithIDGenerator(idgen.Sequence("b")))
	require.NoError(t, h.Apply(testSettings()))
	doc.Flush()
	t.Cleanup(h.Disable)
	return h, doc
}

func TestApply_DisallowedHost(t *testing.T) {
	h, doc := start(t, "example.com", page)
	assert.False(t, h.Enabled())
	assert.Equal(t, 0, doc.OverlayCount())
}

func TestApply_BindsEveryEditable(t *testing.T) {
	h, doc := start(t, "www.app.intercom.com", page)
	require.True(t, h.Enabled())

	assert.Equal(t, 2, doc.OverlayCount())
	assert.Equal(t, []string{"неправильно"}, doc.OverlayAnnotations("chat"))
	assert.Equal(t, []string{"нельзя"}, doc.OverlayAnnotations("note"))
	assert.Equal(t, int64(2), h.Stats().Overlay.Bound)
}

func TestEnable_ClearsStaleOverlays(t *testing.T) {
	stale := `<html><body>
<div id="chat" contenteditable="true" data-phrase-highlighter-overlay="true">Это неправильно.</div>
<div class="highlight-overlay" data-overlay-for="chat">old</div>
</body></html>`
	_, doc := start(t, "app.intercom.com", stale)

	assert.Equal(t, 1, doc.OverlayCount())
	assert.Equal(t, []string{"неправильно"}, doc.OverlayAnnotations("chat"))
}

func TestEnable_Idempotent(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)
	require.NoError(t, h.Enable())
	require.NoError(t, h.Apply(testSettings()))
	doc.Flush()

	assert.Equal(t, 2, doc.OverlayCount())
	assert.Equal(t, int64(2), h.Stats().Overlay.Binds)
}

func TestDiscovery_InsertedEditable(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	ids, err := doc.Insert(`<div id="late" contenteditable="true">нельзя</div>`)
	require.NoError(t, err)
	require.Equal(t, []string{"late"}, ids)
	doc.Flush()

	assert.Equal(t, 3, doc.OverlayCount())
	assert.Equal(t, []string{"нельзя"}, doc.OverlayAnnotations("late"))
	assert.Equal(t, int64(3), h.Stats().Overlay.Bound)
}

func TestDiscovery_RemovedEditable(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.Remove("chat"))
	doc.Flush()

	assert.Equal(t, 1, doc.OverlayCount())
	assert.Equal(t, int64(1), h.Stats().Overlay.Bound)
}

func TestContentChange_Rerenders(t *testing.T) {
	_, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.Type("note", "всё правильно"))
	doc.Flush()
	assert.Empty(t, doc.OverlayAnnotations("note"))

	require.NoError(t, doc.Type("note", "НЕЛЬЗЯ, нельзя"))
	doc.Flush()
	assert.Equal(t, []string{"НЕЛЬЗЯ", "нельзя"}, doc.OverlayAnnotations("note"))
}

func TestClickSelectReplace(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()
	st, open := h.Menu()
	require.True(t, open)
	assert.Equal(t, "неправильно", st.Phrase)
	assert.Equal(t, [][]string{{"правильно", "точнее"}}, doc.Menus())

	require.NoError(t, doc.SelectMenuItem(0))
	doc.Flush()

	assert.Equal(t, "Это правильно.", doc.Text("chat"))
	assert.Equal(t, 1, doc.Notifications("chat"))
	assert.Empty(t, doc.Menus())
	assert.Empty(t, doc.OverlayAnnotations("chat"))
	assert.Equal(t, "нельзя так", doc.Text("note"))
	assert.Equal(t, int64(1), h.Stats().Outcomes["replaced"])
}

func TestClick_TargetsClickedSurface(t *testing.T) {
	_, doc := start(t, "app.intercom.com", page)
	note, _ := doc.Surface("note")
	require.NoError(t, note.Focus())
	doc.Flush()

	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()
	require.NoError(t, doc.SelectMenuItem(1))
	doc.Flush()

	assert.Equal(t, "Это точнее.", doc.Text("chat"))
	assert.Equal(t, "нельзя так", doc.Text("note"))
}

func TestMenu_OneAtATime(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()
	require.NoError(t, doc.ClickAnnotation("note", 0))
	doc.Flush()

	assert.Equal(t, [][]string{{"можно", "возможно", "лучше не стоит"}}, doc.Menus())
	st, _ := h.Menu()
	assert.Equal(t, "нельзя", st.Phrase)
}

func TestMenu_DismissedByOutsideAndOverlayClicks(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()
	doc.ClickOutside()
	doc.Flush()
	_, open := h.Menu()
	assert.False(t, open)

	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()
	doc.ClickOverlay("note")
	doc.Flush()
	assert.Empty(t, doc.Menus())
}

func TestApply_NewPhrasesRerender(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	s := testSettings()
	s.Phrases = []phrase.Phrase{{Find: "это"}}
	require.NoError(t, h.Apply(s))
	doc.Flush()

	assert.Equal(t, []string{"Это"}, doc.OverlayAnnotations("chat"))
	assert.Empty(t, doc.OverlayAnnotations("note"))
	assert.Equal(t, 1, h.Index().Len())
}

func TestApply_DisableTearsDown(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)
	require.NoError(t, doc.ClickAnnotation("chat", 0))
	doc.Flush()

	s := testSettings()
	s.Enabled = false
	require.NoError(t, h.Apply(s))

	assert.False(t, h.Enabled())
	assert.Equal(t, 0, doc.OverlayCount())
	assert.Empty(t, doc.Menus())
	chat, _ := doc.Surface("chat")
	assert.False(t, chat.Marked())

	// Events after disabling are ignored.
	require.NoError(t, doc.Type("chat", "неправильно"))
	doc.Flush()
	assert.Equal(t, 0, doc.OverlayCount())
}

func TestDisable_PendingFrameIsNoop(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)

	require.NoError(t, doc.Type("chat", "нельзя"))
	h.Disable()
	h.Disable()
	doc.Flush()

	assert.Equal(t, 0, doc.OverlayCount())
	assert.Equal(t, int64(0), h.Stats().Overlay.Bound)
}

func TestUnload_Disables(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)
	doc.Unload()
	doc.Flush()

	assert.False(t, h.Enabled())
	assert.Equal(t, 0, doc.OverlayCount())
}

func TestReplace_Direct(t *testing.T) {
	h, doc := start(t, "app.intercom.com", page)
	note, _ := doc.Surface("note")
	require.NoError(t, note.Focus())
	doc.Flush()

	assert.Equal(t, "replaced", h.Replace("нельзя", "можно").String())
	assert.Equal(t, "not_found", h.Replace("нельзя", "можно").String())
	doc.Flush()

	assert.Equal(t, "можно так", doc.Text("note"))
	assert.Empty(t, doc.OverlayAnnotations("note"))
	assert.Equal(t, int64(1), h.Stats().Outcomes["not_found"])
}

func TestApply_StoreRowWithInvalidUTF8(t *testing.T) {
	db := dbopen.OpenMemory(t)
	st, err := settings.NewStore(db)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO phrases (position, find, replacements) VALUES
		(0, CAST(X'6E6FFF' AS TEXT), '["ok"]'),
		(1, 'неправильно', '["правильно"]')`)
	require.NoError(t, err)

	s, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Phrases, 2)

	doc := memdoc.MustParse("app.intercom.com", page)
	h := New(doc, WithIDGenerator(idgen.Sequence("b")))
	t.Cleanup(h.Disable)
	require.NotPanics(t, func() { require.NoError(t, h.Apply(s)) })
	doc.Flush()

	assert.True(t, h.Enabled())
	assert.Equal(t, 1, h.Index().Len())
	assert.Equal(t, []string{"неправильно"}, doc.OverlayAnnotations("chat"))
	assert.Empty(t, doc.OverlayAnnotations("note"))
}
