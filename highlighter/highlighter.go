// Package highlighter ties the pieces together for one host document: it
// decides from the settings whether to run, binds an overlay to every
// editable surface, routes host events, and applies chosen replacements.
//
// A Highlighter is an explicit context object. Every entry point (Apply,
// Enable, Disable, Handle, Frame, Replace) runs under one mutex, so host
// events are processed one at a time, to completion, the way a page's event
// loop runs listeners. Hosts must deliver events and frames asynchronously
// and never from inside one of these calls.
package highlighter

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/phrasemark/idgen"
	"github.com/hazyhaar/phrasemark/menu"
	"github.com/hazyhaar/phrasemark/overlay"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/render"
	"github.com/hazyhaar/phrasemark/replace"
	"github.com/hazyhaar/phrasemark/settings"
	"github.com/hazyhaar/phrasemark/surface"
)

// Stats describe a running highlighter.
type Stats struct {
	Host     string           `json:"host"`
	Enabled  bool             `json:"enabled"`
	Phrases  int              `json:"phrases"`
	Overlay  overlay.Stats    `json:"overlay"`
	Outcomes map[string]int64 `json:"outcomes"`
}

type config struct {
	logger   *slog.Logger
	ids      idgen.Generator
	suggest  menu.SuggestFunc
	renderer *render.Renderer
}

// Option configures a Highlighter.
type Option func(*config)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithIDGenerator sets the generator for overlay binding IDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(c *config) { c.ids = g }
}

// WithSuggestions overrides the menu fallback for phrases configured without
// replacements. Default: replace.Suggestions.
func WithSuggestions(fn menu.SuggestFunc) Option {
	return func(c *config) { c.suggest = fn }
}

// Highlighter runs the phrase highlighter on one document.
type Highlighter struct {
	mu     sync.Mutex
	doc    surface.Document
	logger *slog.Logger

	index   atomic.Pointer[phrase.Index]
	overlay *overlay.Sync
	menu    *menu.Menu
	engine  *replace.Engine

	enabled     bool
	lastFocused string
	stop        func()

	outcomes [replace.Failed + 1]atomic.Int64
}

// New creates a disabled Highlighter with an empty phrase list. Call Apply
// with the current settings to start it.
func New(doc surface.Document, opts ...Option) *Highlighter {
	cfg := config{
		logger:   slog.Default(),
		ids:      idgen.Prefixed("b_", idgen.NanoID(10)),
		suggest:  replace.Suggestions,
		renderer: render.New(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Highlighter{doc: doc, logger: cfg.logger}
	h.index.Store(phrase.Build(nil))
	h.overlay = overlay.New(doc, cfg.renderer, h.index.Load,
		overlay.WithLogger(cfg.logger),
		overlay.WithIDGenerator(cfg.ids),
		overlay.WithFrameHandler(h.Frame),
	)
	h.menu = menu.New(doc, h.replaceLocked,
		menu.WithLogger(cfg.logger),
		menu.WithSuggestions(cfg.suggest),
	)
	h.engine = replace.New(doc,
		replace.WithLogger(cfg.logger),
		replace.WithLastFocused(func() string { return h.lastFocused }),
	)
	return h
}

// Apply installs new settings: the phrase index is rebuilt, the highlighter
// is enabled or disabled according to the activation policy for the
// document's host, and every overlay re-renders against the new phrases.
func (h *Highlighter) Apply(s settings.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := phrase.Build(s.Phrases)
	if skipped := idx.Skipped(); len(skipped) > 0 {
		h.logger.Warn("highlighter: phrases skipped", "count", len(skipped), "finds", skipped)
	}
	h.index.Store(idx)
	allowed := s.Allowed(h.doc.Host())
	h.logger.Info("highlighter: settings applied",
		"host", h.doc.Host(), "allowed", allowed, "phrases", h.index.Load().Len())

	switch {
	case allowed && !h.enabled:
		return h.enableLocked()
	case !allowed && h.enabled:
		h.disableLocked()
	case allowed:
		h.overlay.Invalidate()
	}
	return nil
}

// Enable starts the highlighter. Enabling twice is a no-op.
func (h *Highlighter) Enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enableLocked()
}

func (h *Highlighter) enableLocked() error {
	if h.enabled {
		return nil
	}
	if err := h.doc.ClearOverlays(); err != nil {
		return fmt.Errorf("highlighter: clear stale overlays: %w", err)
	}
	h.stop = h.doc.Observe(h.Handle)
	h.enabled = true

	surfaces, err := h.doc.Editables()
	if err != nil {
		h.disableLocked()
		return fmt.Errorf("highlighter: list editables: %w", err)
	}
	for _, sf := range surfaces {
		h.bind(sf)
	}
	h.logger.Info("highlighter: enabled", "host", h.doc.Host(), "surfaces", len(surfaces))
	return nil
}

// Disable stops the highlighter and removes everything it added to the
// document. Disabling twice is a no-op.
func (h *Highlighter) Disable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disableLocked()
}

func (h *Highlighter) disableLocked() {
	if !h.enabled {
		return
	}
	h.enabled = false
	h.overlay.UnbindAll()
	h.menu.Close()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	h.lastFocused = ""
	h.logger.Info("highlighter: disabled", "host", h.doc.Host())
}

// Enabled reports whether the highlighter is running.
func (h *Highlighter) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Handle processes one host event. Events are ignored while disabled.
func (h *Highlighter) Handle(ev surface.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return
	}

	switch ev.Kind {
	case surface.KindContentChanged:
		h.overlay.Schedule(ev.Surface)

	case surface.KindScrolled:
		if err := h.overlay.Scroll(ev.Surface); err != nil {
			h.logger.Warn("highlighter: scroll", "surface", ev.Surface, "error", err)
		}

	case surface.KindFocused:
		h.lastFocused = ev.Surface
		if _, bound := h.overlay.Binding(ev.Surface); !bound {
			if sf, ok := h.doc.Surface(ev.Surface); ok {
				h.bind(sf)
			}
		}

	case surface.KindAdded:
		for _, id := range ev.Surfaces {
			if sf, ok := h.doc.Surface(id); ok {
				h.bind(sf)
			}
		}

	case surface.KindRemoved:
		for _, id := range ev.Surfaces {
			h.overlay.Unbind(id)
			if h.lastFocused == id {
				h.lastFocused = ""
			}
		}

	case surface.KindAnnotationClick:
		if ev.Annotation == nil {
			return
		}
		if ev.Surface != "" {
			h.lastFocused = ev.Surface
		}
		a := ev.Annotation
		if err := h.menu.Open(a.Phrase, a.Replacements, a.Box); err != nil {
			h.logger.Warn("highlighter: open menu", "phrase", a.Phrase, "error", err)
		}

	case surface.KindOverlayClick, surface.KindOutsideClick:
		h.menu.Close()

	case surface.KindMenuSelect:
		if err := h.menu.Select(ev.Index); err != nil {
			h.logger.Warn("highlighter: menu select", "error", err)
		}

	case surface.KindUnload:
		h.disableLocked()

	default:
		h.logger.Debug("highlighter: ignored event", "event", ev.String())
	}
}

func (h *Highlighter) bind(sf surface.Surface) {
	if _, err := h.overlay.Bind(sf); err != nil {
		h.logger.Warn("highlighter: bind", "surface", sf.ID(), "error", err)
	}
}

// Frame runs the pending overlay resyncs. Hosts call it from RequestFrame.
func (h *Highlighter) Frame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return
	}
	h.overlay.Frame()
}

// Replace applies a replacement outside the menu flow.
func (h *Highlighter) Replace(old, new string) replace.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replace(old, new)
}

// replaceLocked is the menu's selection callback; it runs under h.mu.
func (h *Highlighter) replaceLocked(old, new string) {
	h.replace(old, new)
}

func (h *Highlighter) replace(old, new string) replace.Outcome {
	out := h.engine.Replace(old, new)
	h.outcomes[out].Add(1)
	return out
}

// Menu returns the open replacement menu.
func (h *Highlighter) Menu() (menu.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.menu.Current()
}

// Index returns the phrase index in effect.
func (h *Highlighter) Index() *phrase.Index { return h.index.Load() }

// Stats returns a snapshot of the highlighter's state.
func (h *Highlighter) Stats() Stats {
	h.mu.Lock()
	enabled := h.enabled
	h.mu.Unlock()

	out := make(map[string]int64, len(h.outcomes))
	for i := range h.outcomes {
		out[replace.Outcome(i).String()] = h.outcomes[i].Load()
	}
	return Stats{
		Host:     h.doc.Host(),
		Enabled:  enabled,
		Phrases:  h.index.Load().Len(),
		Overlay:  h.overlay.Stats(),
		Outcomes: out,
	}
}
