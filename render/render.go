// Package render turns raw editable text into highlighted overlay markup.
//
// Matching runs on the raw text, never on escaped markup, so a phrase that
// contains "&" or "<" still matches. The assembled markup is then passed
// through a bluemonday policy that only admits the annotation span and line
// breaks: nothing the user typed can introduce an element or a handler.
package render

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/phrasemark/phrase"
)

const (
	// AnnotationClass marks every highlighted span.
	AnnotationClass = "highlighted-phrase"
	// ReplacementsAttr carries the JSON-encoded replacement list.
	ReplacementsAttr = "data-replacements"
	// LineBreak is the overlay's line separator.
	LineBreak = "<br>"

	legacySeparator = " / "
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r\n", LineBreak,
	"\n", LineBreak,
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Renderer produces sanitized overlay markup. It holds no per-call state
// and is safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
}

// New returns a Renderer using Policy.
func New() *Renderer {
	return &Renderer{policy: Policy()}
}

// Policy is the sanitizing policy applied to every rendered overlay: plain
// text, <br>, and annotation spans with their data attributes.
func Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br")
	p.AllowAttrs("class").
		Matching(regexp.MustCompile(`^` + AnnotationClass + `$`)).
		OnElements("span")
	p.AllowDataAttributes()
	return p
}

// Render returns the highlighted markup for text. Every match of idx is
// wrapped in an annotation span carrying its replacement list; everything
// else is escaped and newlines become <br>. Text that is empty or only
// whitespace renders to "", which callers treat as "clear the overlay".
func (r *Renderer) Render(text string, idx *phrase.Index) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	last := 0
	for _, loc := range idx.FindAll(text) {
		b.WriteString(textEscaper.Replace(text[last:loc[0]]))
		match := text[loc[0]:loc[1]]
		writeAnnotation(&b, match, lookupReplacements(idx, match))
		last = loc[1]
	}
	b.WriteString(textEscaper.Replace(text[last:]))

	return r.policy.Sanitize(b.String())
}

func lookupReplacements(idx *phrase.Index, match string) []string {
	p, ok := idx.Lookup(match)
	if !ok || p.Replacements == nil {
		return []string{}
	}
	return p.Replacements
}

func writeAnnotation(b *strings.Builder, match string, replacements []string) {
	data, _ := json.Marshal(replacements)
	b.WriteString(`<span class="`)
	b.WriteString(AnnotationClass)
	b.WriteString(`" `)
	b.WriteString(ReplacementsAttr)
	b.WriteString(`="`)
	b.WriteString(attrEscaper.Replace(string(data)))
	b.WriteString(`">`)
	b.WriteString(textEscaper.Replace(match))
	b.WriteString(`</span>`)
}

// ParseReplacements decodes an annotation's data-replacements value. The
// legacy " / "-joined form is accepted for overlays rendered by older
// versions.
func ParseReplacements(attr string) []string {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return []string{}
	}
	var out []string
	if strings.HasPrefix(attr, "[") {
		if err := json.Unmarshal([]byte(attr), &out); err == nil {
			if out == nil {
				out = []string{}
			}
			return out
		}
	}
	return strings.Split(attr, legacySeparator)
}
