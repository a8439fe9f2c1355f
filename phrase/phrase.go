// Package phrase holds the phrase model and the compiled PhraseIndex that the
// renderer and the replacement menu share.
//
// A Phrase is matched as literal text, case-insensitively. The configured list
// is compiled once into an immutable Index; configuration changes build a new
// Index rather than mutating the old one.
package phrase

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Phrase is a find/replacements pair.
type Phrase struct {
	Find         string   `json:"find" yaml:"find"`
	Replacements []string `json:"replacements" yaml:"replacements"`
}

// rawPhrase accepts both the current shape and the legacy one, where a phrase
// carried a single "replace" string.
type rawPhrase struct {
	Find         string   `json:"find" yaml:"find"`
	Replace      string   `json:"replace,omitempty" yaml:"replace,omitempty"`
	Replacements []string `json:"replacements,omitempty" yaml:"replacements,omitempty"`
}

func (r rawPhrase) normalize() Phrase {
	if r.Replace != "" && len(r.Replacements) == 0 {
		return Phrase{Find: r.Find, Replacements: []string{r.Replace}}
	}
	return Phrase{Find: r.Find, Replacements: r.Replacements}
}

// UnmarshalJSON decodes either {find, replacements} or legacy {find, replace}.
func (p *Phrase) UnmarshalJSON(data []byte) error {
	var r rawPhrase
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = r.normalize()
	return nil
}

// UnmarshalYAML decodes either {find, replacements} or legacy {find, replace}.
func (p *Phrase) UnmarshalYAML(node *yaml.Node) error {
	var r rawPhrase
	if err := node.Decode(&r); err != nil {
		return err
	}
	*p = r.normalize()
	return nil
}

// Legacy builds a phrase from the single-replacement legacy shape.
func Legacy(find, replace string) Phrase {
	return rawPhrase{Find: find, Replace: replace}.normalize()
}

// Fold returns the case-folded key used for every phrase comparison.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Blank reports whether p has nothing to match.
func (p Phrase) Blank() bool {
	return strings.TrimSpace(p.Find) == ""
}
