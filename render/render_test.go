package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/phrasemark/phrase"
)

type annotation struct {
	text         string
	replacements []string
}

// parse splits rendered markup into annotations, plain text and <br> count.
func parse(t *testing.T, markup string) (anns []annotation, plain string, breaks int) {
	t.Helper()
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	require.NoError(t, err)

	var sb strings.Builder
	for _, n := range nodes {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			breaks++
			sb.WriteString("\n")
		case n.Type == html.ElementNode && n.Data == "span":
			var a annotation
			for _, attr := range n.Attr {
				if attr.Key == ReplacementsAttr {
					a.replacements = ParseReplacements(attr.Val)
				}
				if attr.Key == "class" {
					assert.Equal(t, AnnotationClass, attr.Val)
				}
			}
			if n.FirstChild != nil {
				a.text = n.FirstChild.Data
			}
			anns = append(anns, a)
			sb.WriteString(a.text)
		default:
			t.Fatalf("unexpected node in overlay markup: %v %q", n.Type, n.Data)
		}
	}
	return anns, sb.String(), breaks
}

func TestRender_Scenario(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{
		{Find: "неправильно", Replacements: []string{"правильно", "точнее"}},
	})
	out := New().Render("Это неправильно.", idx)

	anns, plain, _ := parse(t, out)
	require.Len(t, anns, 1)
	assert.Equal(t, "неправильно", anns[0].text)
	assert.Equal(t, []string{"правильно", "точнее"}, anns[0].replacements)
	assert.Equal(t, "Это неправильно.", plain)
	assert.True(t, strings.HasPrefix(out, "Это "))
	assert.True(t, strings.HasSuffix(out, "</span>."))
}

func TestRender_EscapesEverythingElse(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{{Find: "ok", Replacements: []string{"fine"}}})
	text := `<script>alert(1)</script> & <img src=x onerror=alert(1)> ok`
	out := New().Render(text, idx)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp;")

	anns, plain, _ := parse(t, out)
	require.Len(t, anns, 1)
	assert.Equal(t, text, plain)
}

func TestRender_PhraseWithMarkupCharacters(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{{Find: "a<b", Replacements: []string{"a&b"}}})
	out := New().Render("x a<b y", idx)

	anns, plain, _ := parse(t, out)
	require.Len(t, anns, 1)
	assert.Equal(t, "a<b", anns[0].text)
	assert.Equal(t, []string{"a&b"}, anns[0].replacements)
	assert.Equal(t, "x a<b y", plain)
}

func TestRender_Newlines(t *testing.T) {
	idx := phrase.Build(nil)
	out := New().Render("one\ntwo\r\nthree", idx)
	_, plain, breaks := parse(t, out)
	assert.Equal(t, 2, breaks)
	assert.Equal(t, "one\ntwo\nthree", plain)
}

func TestRender_EmptyText(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{{Find: "x"}})
	r := New()
	assert.Equal(t, "", r.Render("", idx))
	assert.Equal(t, "", r.Render(" \n\t", idx))
}

func TestRender_NoReplacementsStillAnnotated(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{{Find: "нельзя"}})
	anns, _, _ := parse(t, New().Render("так нельзя", idx))
	require.Len(t, anns, 1)
	assert.Empty(t, anns[0].replacements)
}

func TestRender_EveryOccurrenceCaseInsensitive(t *testing.T) {
	idx := phrase.Build([]phrase.Phrase{
		{Find: "foo", Replacements: []string{"f"}},
		{Find: "bar", Replacements: []string{"b"}},
	})
	anns, _, _ := parse(t, New().Render("Foo bar FOO baz", idx))
	require.Len(t, anns, 3)
	assert.Equal(t, "Foo", anns[0].text)
	assert.Equal(t, "bar", anns[1].text)
	assert.Equal(t, "FOO", anns[2].text)
	assert.Equal(t, []string{"f"}, anns[2].replacements)
}

func TestRender_Idempotent(t *testing.T) {
	ps := []phrase.Phrase{{Find: "ab", Replacements: []string{"c"}}}
	idx := phrase.Build(ps)
	r := New()
	text := "ab\nAB <ab>"
	first := r.Render(text, idx)
	assert.Equal(t, first, r.Render(text, idx))
	assert.Equal(t, first, r.Render(text, phrase.Build(ps)))
	assert.Equal(t, 1, idx.Len())
}

func TestParseReplacements(t *testing.T) {
	assert.Equal(t, []string{}, ParseReplacements(""))
	assert.Equal(t, []string{}, ParseReplacements("[]"))
	assert.Equal(t, []string{"a", "b"}, ParseReplacements(`["a","b"]`))
	assert.Equal(t, []string{"a", "b c"}, ParseReplacements("a / b c"))
}
