// Package menu is the replacement menu state machine. A Menu is either
// closed or open on exactly one phrase; opening a new menu closes the
// previous one first, so no two menus are ever shown together.
package menu

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/phrasemark/surface"
)

// anchorLift is how far above the annotation the menu's anchor sits.
const anchorLift = 5

// State describes the open menu.
type State struct {
	Phrase       string
	Replacements []string
	Anchor       surface.Point
}

// SelectFunc receives the phrase and the chosen replacement.
type SelectFunc func(phrase, replacement string)

// SuggestFunc supplies candidates for phrases configured without any.
type SuggestFunc func(phrase string) []string

// Option configures a Menu.
type Option func(*Menu)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Menu) { m.logger = l }
}

// WithSuggestions sets the fallback used when a phrase has no replacements.
func WithSuggestions(fn SuggestFunc) Option {
	return func(m *Menu) { m.suggest = fn }
}

// Menu is not safe for concurrent use.
type Menu struct {
	host     surface.Presenter
	onSelect SelectFunc
	suggest  SuggestFunc
	logger   *slog.Logger

	state  *State
	handle surface.MenuHandle
}

// New creates a closed Menu drawing through host.
func New(host surface.Presenter, onSelect SelectFunc, opts ...Option) *Menu {
	m := &Menu{
		host:     host,
		onSelect: onSelect,
		suggest:  func(string) []string { return nil },
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open shows the menu for phrase above box. Any open menu is closed first.
// With no replacements the suggestion fallback is used; an empty result
// still opens a menu, which the next outside click dismisses.
func (m *Menu) Open(phrase string, replacements []string, box surface.Rect) error {
	m.Close()

	items := append([]string(nil), replacements...)
	if len(items) == 0 {
		items = m.suggest(phrase)
	}
	st := &State{
		Phrase:       phrase,
		Replacements: items,
		Anchor:       surface.Point{X: box.X, Y: box.Y - anchorLift},
	}

	h, err := m.host.ShowMenu(surface.MenuView{
		Phrase: st.Phrase,
		Items:  st.Replacements,
		Anchor: st.Anchor,
	})
	if err != nil {
		return fmt.Errorf("menu: show %q: %w", phrase, err)
	}
	m.state, m.handle = st, h
	m.logger.Debug("menu: opened", "phrase", phrase, "items", len(items))
	return nil
}

// Select picks item i of the open menu, hands it to the selection callback
// and closes the menu. Selecting with no menu open is ignored.
func (m *Menu) Select(i int) error {
	if m.state == nil {
		return nil
	}
	st := m.state
	if i < 0 || i >= len(st.Replacements) {
		m.Close()
		return fmt.Errorf("menu: item %d out of range (%d items)", i, len(st.Replacements))
	}
	choice := st.Replacements[i]
	m.onSelect(st.Phrase, choice)
	m.Close()
	return nil
}

// Close removes the open menu, if any.
func (m *Menu) Close() {
	if m.handle != nil {
		if err := m.handle.Remove(); err != nil {
			m.logger.Warn("menu: remove", "error", err)
		}
	}
	if m.state != nil {
		m.logger.Debug("menu: closed", "phrase", m.state.Phrase)
	}
	m.state, m.handle = nil, nil
}

// Current returns the open menu's state.
func (m *Menu) Current() (State, bool) {
	if m.state == nil {
		return State{}, false
	}
	st := *m.state
	st.Replacements = append([]string(nil), st.Replacements...)
	return st, true
}
