package replace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/phrasemark/surface"
	"github.com/hazyhaar/phrasemark/surface/memdoc"
)

const page = `<html><body>
<textarea id="flat">тут нельзя, совсем НЕЛЬЗЯ</textarea>
<div id="rich" contenteditable="true"><p>Нельзя <b>нельзя</b></p><p>ok</p></div>
</body></html>`

func leafTexts(t *testing.T, doc *memdoc.Doc, id string) []string {
	t.Helper()
	sf, ok := doc.Surface(id)
	require.True(t, ok)
	leaves, err := sf.Leaves()
	require.NoError(t, err)
	out := make([]string, len(leaves))
	for i, l := range leaves {
		out[i] = l.Text
	}
	return out
}

func TestReplace_FlatSurface(t *testing.T) {
	doc := memdoc.MustParse("example.com", page)
	e := New(doc, WithLastFocused(func() string { return "flat" }))

	assert.Equal(t, Replaced, e.Replace("нельзя", "можно"))
	assert.Equal(t, "тут можно, совсем можно", doc.Text("flat"))
	assert.Equal(t, 1, doc.Notifications("flat"))
	assert.Equal(t, 0, doc.Notifications("rich"))
}

func TestReplace_RichSurfaceKeepsStructure(t *testing.T) {
	doc := memdoc.MustParse("example.com", page)
	e := New(doc, WithLastFocused(func() string { return "rich" }))

	assert.Equal(t, Replaced, e.Replace("НЕЛЬЗЯ", "можно"))
	assert.Equal(t, []string{"можно ", "можно", "ok"}, leafTexts(t, doc, "rich"))
	assert.Equal(t, 1, doc.Notifications("rich"))
	assert.Contains(t, doc.HTML(), "<b>можно</b>")
}

func TestReplace_RoundTrip(t *testing.T) {
	doc := memdoc.MustParse("example.com", `<body><textarea id="t">так нельзя</textarea></body>`)
	e := New(doc)

	require.Equal(t, Replaced, e.Replace("нельзя", "можно"))
	assert.Equal(t, "так можно", doc.Text("t"))
	require.Equal(t, Replaced, e.Replace("можно", "нельзя"))
	assert.Equal(t, "так нельзя", doc.Text("t"))
	assert.Equal(t, 2, doc.Notifications("t"))
}

func TestReplace_AbsentPhraseIsNoop(t *testing.T) {
	doc := memdoc.MustParse("example.com", page)
	e := New(doc, WithLastFocused(func() string { return "rich" }))
	before := leafTexts(t, doc, "rich")

	assert.Equal(t, NotFound, e.Replace("отсутствует", "x"))
	assert.Equal(t, before, leafTexts(t, doc, "rich"))
	assert.Equal(t, 0, doc.Notifications("rich"))
}

func TestReplace_NoSurface(t *testing.T) {
	doc := memdoc.MustParse("example.com", `<body><p>нельзя</p></body>`)
	assert.Equal(t, NoSurface, New(doc).Replace("нельзя", "можно"))
}

func TestReplace_TargetResolution(t *testing.T) {
	t.Run("document focus", func(t *testing.T) {
		doc := memdoc.MustParse("example.com", page)
		sf, _ := doc.Surface("rich")
		require.NoError(t, sf.Focus())

		assert.Equal(t, Replaced, New(doc).Replace("нельзя", "можно"))
		assert.Equal(t, 1, doc.Notifications("rich"))
		assert.Equal(t, 0, doc.Notifications("flat"))
	})

	t.Run("first editable", func(t *testing.T) {
		doc := memdoc.MustParse("example.com", page)
		assert.Equal(t, Replaced, New(doc).Replace("нельзя", "можно"))
		assert.Equal(t, 1, doc.Notifications("flat"))
	})

	t.Run("stale last focus falls through", func(t *testing.T) {
		doc := memdoc.MustParse("example.com", page)
		require.NoError(t, doc.Remove("rich"))
		e := New(doc, WithLastFocused(func() string { return "rich" }))

		assert.Equal(t, Replaced, e.Replace("нельзя", "можно"))
		assert.Equal(t, 1, doc.Notifications("flat"))
	})

	t.Run("focuses target", func(t *testing.T) {
		doc := memdoc.MustParse("example.com", page)
		New(doc, WithLastFocused(func() string { return "rich" })).Replace("x", "y")
		active, ok := doc.Active()
		require.True(t, ok)
		assert.Equal(t, "rich", active.ID())
	})
}

func TestReplaceAll_LiteralReplacement(t *testing.T) {
	doc := memdoc.MustParse("example.com", `<body><textarea id="t">a.b a+b</textarea></body>`)
	sf, _ := doc.Surface("t")

	n, err := ReplaceAll(sf, "a.b", "$1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "$1 a+b", doc.Text("t"))
}

func TestReplaceAll_EmptyOld(t *testing.T) {
	doc := memdoc.MustParse("example.com", page)
	sf, _ := doc.Surface("flat")
	n, err := ReplaceAll(sf, "", "x")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 0, doc.Notifications("flat"))
}

func TestReplaceAll_Detached(t *testing.T) {
	doc := memdoc.MustParse("example.com", page)
	sf, _ := doc.Surface("flat")
	require.NoError(t, doc.Remove("flat"))

	_, err := ReplaceAll(sf, "нельзя", "можно")
	assert.ErrorIs(t, err, surface.ErrDetached)
}

func TestSuggestions(t *testing.T) {
	assert.Equal(t, []string{"можно", "возможно", "лучше не стоит"}, Suggestions("НЕЛЬЗЯ"))
	assert.Equal(t, []string{"правильно", "верно", "точнее"}, Suggestions("неправильно"))
	assert.Equal(t, []string{}, Suggestions("другое"))

	s := Suggestions("нельзя")
	s[0] = "x"
	assert.Equal(t, "можно", Suggestions("нельзя")[0])
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "replaced", Replaced.String())
	assert.Equal(t, "no_surface", NoSurface.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
