package phrase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Index is the compiled, immutable form of a phrase list: one
// case-insensitive matcher over every non-blank Find plus a reverse lookup
// from matched text back to its Phrase. Both are derived from the same
// snapshot and an Index is never modified after Build.
//
// Overlap policy: the leftmost match in the text wins; when two phrases match
// at the same position, the one listed first wins. Duplicate Finds resolve to
// the first occurrence in list order.
type Index struct {
	matcher *regexp.Regexp
	lookup  map[string]Phrase
	phrases []Phrase
	skipped []Phrase
}

// Build compiles phrases into an Index. Blank entries are dropped, and
// entries whose Find is not valid UTF-8 are dropped and reported by Skipped.
// Every Find is escaped, so no phrase is ever interpreted as a pattern. An
// empty list yields an Index that matches nothing. Build never fails.
func Build(phrases []Phrase) *Index {
	idx := &Index{lookup: make(map[string]Phrase, len(phrases))}

	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p.Blank() {
			continue
		}
		if !utf8.ValidString(p.Find) {
			idx.skipped = append(idx.skipped, p)
			continue
		}
		key := Fold(p.Find)
		if _, dup := idx.lookup[key]; dup {
			continue
		}
		p.Replacements = append([]string(nil), p.Replacements...)
		idx.lookup[key] = p
		idx.phrases = append(idx.phrases, p)
		alts = append(alts, regexp.QuoteMeta(p.Find))
	}

	if len(alts) > 0 {
		re, err := regexp.Compile("(?i)" + strings.Join(alts, "|"))
		if err != nil {
			// Quoted valid UTF-8 always compiles; match nothing otherwise.
			idx.skipped = append(idx.skipped, idx.phrases...)
			idx.phrases = nil
			idx.lookup = map[string]Phrase{}
			return idx
		}
		idx.matcher = re
	}
	return idx
}

// Skipped returns the Finds Build could not index, in list order.
func (idx *Index) Skipped() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.skipped))
	for i, p := range idx.skipped {
		out[i] = p.Find
	}
	return out
}

// Lookup finds the phrase whose Find equals text, ignoring case.
func (idx *Index) Lookup(text string) (Phrase, bool) {
	if idx == nil {
		return Phrase{}, false
	}
	p, ok := idx.lookup[Fold(text)]
	if !ok {
		return Phrase{}, false
	}
	p.Replacements = append([]string(nil), p.Replacements...)
	return p, true
}

// FindAll returns the byte offsets of every non-overlapping match in text.
func (idx *Index) FindAll(text string) [][]int {
	if idx == nil || idx.matcher == nil || text == "" {
		return nil
	}
	return idx.matcher.FindAllStringIndex(text, -1)
}

// Match reports whether text contains at least one phrase.
func (idx *Index) Match(text string) bool {
	if idx == nil || idx.matcher == nil {
		return false
	}
	return idx.matcher.MatchString(text)
}

// Len is the number of distinct phrases in the index.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.phrases)
}

// Phrases returns a copy of the indexed phrases in list order.
func (idx *Index) Phrases() []Phrase {
	if idx == nil {
		return nil
	}
	out := make([]Phrase, len(idx.phrases))
	for i, p := range idx.phrases {
		p.Replacements = append([]string(nil), p.Replacements...)
		out[i] = p
	}
	return out
}
