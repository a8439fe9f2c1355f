// Package replace edits the text of a host surface in place. Replacement
// works on text leaves, not on markup, so the structure of rich editors
// (paragraphs, formatting, mentions) survives the edit.
package replace

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/surface"
)

// Outcome is the result of a Replace call.
type Outcome int

const (
	Replaced Outcome = iota
	NotFound
	NoSurface
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case NotFound:
		return "not_found"
	case NoSurface:
		return "no_surface"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLastFocused sets the function reporting the ID of the surface that
// last had focus. It is the preferred replacement target.
func WithLastFocused(fn func() string) Option {
	return func(e *Engine) { e.lastFocused = fn }
}

// Engine applies chosen replacements to the document.
type Engine struct {
	doc         surface.Document
	logger      *slog.Logger
	lastFocused func() string
}

// New creates an Engine for doc.
func New(doc surface.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:         doc,
		logger:      slog.Default(),
		lastFocused: func() string { return "" },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Replace substitutes every case-insensitive occurrence of old with new in
// the target surface: the last focused one, else the focused one, else the
// first editable of the document.
func (e *Engine) Replace(old, new string) Outcome {
	target, ok := e.target()
	if !ok {
		e.logger.Warn("replace: no editable surface", "phrase", old)
		return NoSurface
	}
	if err := target.Focus(); err != nil {
		e.logger.Warn("replace: focus", "surface", target.ID(), "error", err)
		return Failed
	}

	n, err := ReplaceAll(target, old, new)
	if err != nil {
		e.logger.Warn("replace: edit failed", "surface", target.ID(), "phrase", old, "error", err)
		return Failed
	}
	if n == 0 {
		e.logger.Info("replace: phrase not found", "surface", target.ID(), "phrase", old)
		return NotFound
	}
	e.logger.Debug("replace: done", "surface", target.ID(), "phrase", old, "replacement", new, "leaves", n)
	return Replaced
}

func (e *Engine) target() (surface.Surface, bool) {
	if id := e.lastFocused(); id != "" {
		if sf, ok := e.doc.Surface(id); ok {
			return sf, true
		}
	}
	if sf, ok := e.doc.Active(); ok {
		return sf, true
	}
	all, err := e.doc.Editables()
	if err != nil {
		e.logger.Warn("replace: list editables", "error", err)
		return nil, false
	}
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// ReplaceAll rewrites every leaf of t containing old, ignoring case, and
// notifies t once if anything changed. It returns the number of leaves
// written. An empty old never matches.
func ReplaceAll(t surface.TextLeaves, old, new string) (int, error) {
	if old == "" {
		return 0, nil
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(old))
	if err != nil {
		return 0, fmt.Errorf("replace: compile %q: %w", old, err)
	}

	leaves, err := t.Leaves()
	if err != nil {
		return 0, fmt.Errorf("replace: leaves: %w", err)
	}
	changed := 0
	for _, leaf := range leaves {
		if !re.MatchString(leaf.Text) {
			continue
		}
		next := re.ReplaceAllLiteralString(leaf.Text, new)
		if next == leaf.Text {
			continue
		}
		if err := t.WriteLeaf(leaf.ID, next); err != nil {
			return changed, fmt.Errorf("replace: write leaf %d: %w", leaf.ID, err)
		}
		changed++
	}
	if changed > 0 {
		if err := t.NotifyChanged(); err != nil {
			return changed, fmt.Errorf("replace: notify: %w", err)
		}
	}
	return changed, nil
}

var suggestions = map[string][]string{
	phrase.Fold("нельзя"):      {"можно", "возможно", "лучше не стоит"},
	phrase.Fold("неправильно"): {"правильно", "верно", "точнее"},
}

// Suggestions returns built-in alternatives for a phrase configured without
// replacements. Unknown phrases get an empty list.
func Suggestions(p string) []string {
	s, ok := suggestions[phrase.Fold(p)]
	if !ok {
		return []string{}
	}
	return append([]string(nil), s...)
}
