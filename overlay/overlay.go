// Package overlay keeps a shadow element aligned with every bound editable
// surface and showing the highlighted version of its text.
//
// A Sync is not safe for concurrent use; its owner serializes calls, the way
// a page's event loop serializes listeners. Content signals go through
// Schedule and are coalesced into at most one resync per binding per frame.
package overlay

import (
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/hazyhaar/phrasemark/idgen"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/render"
	"github.com/hazyhaar/phrasemark/surface"
)

// Binding ties one surface to its shadow. The surface itself is not held:
// it is resolved through the document by SurfaceID on every pass.
type Binding struct {
	ID        string
	SurfaceID string

	shadow       surface.Shadow
	lastRendered string
	rendered     bool
}

// LastRendered is the text the shadow currently reflects.
func (b *Binding) LastRendered() string { return b.lastRendered }

// Stats are point-in-time counters.
type Stats struct {
	Bound    int64 `json:"bound"`
	Binds    int64 `json:"binds"`
	Unbinds  int64 `json:"unbinds"`
	Signals  int64 `json:"signals"`
	Frames   int64 `json:"frames"`
	Resyncs  int64 `json:"resyncs"`
	Renders  int64 `json:"renders"`
	Failures int64 `json:"failures"`
}

// Option configures a Sync.
type Option func(*Sync)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sync) { s.logger = l }
}

// WithIDGenerator sets the generator for binding IDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Sync) { s.ids = g }
}

// WithFrameHandler sets the callback handed to the host when a frame is
// needed. Owners that serialize access pass a wrapper that takes their lock
// and calls Frame. Default: Frame.
func WithFrameHandler(fn func()) Option {
	return func(s *Sync) { s.onFrame = fn }
}

// Sync owns the bindings of one document.
type Sync struct {
	doc      surface.Document
	renderer *render.Renderer
	index    func() *phrase.Index
	logger   *slog.Logger
	ids      idgen.Generator
	onFrame  func()

	bindings map[string]*Binding // keyed by surface ID
	sched    *scheduler

	binds, unbinds, signals, frames atomic.Int64
	resyncs, renders, failures      atomic.Int64
	bound                           atomic.Int64
}

// New creates a Sync rendering with r against whatever index returns at
// render time.
func New(doc surface.Document, r *render.Renderer, index func() *phrase.Index, opts ...Option) *Sync {
	s := &Sync{
		doc:      doc,
		renderer: r,
		index:    index,
		logger:   slog.Default(),
		ids:      idgen.Prefixed("b_", idgen.NanoID(10)),
		bindings: make(map[string]*Binding),
		sched:    newScheduler(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.onFrame == nil {
		s.onFrame = s.Frame
	}
	return s
}

// Bind attaches a shadow to sf and renders it once. Binding an already bound
// surface returns the existing binding. A surface carrying the marker of
// another owner is left alone and Bind returns nil.
func (s *Sync) Bind(sf surface.Surface) (*Binding, error) {
	id := sf.ID()
	if b, ok := s.bindings[id]; ok {
		return b, nil
	}
	if sf.Marked() {
		s.logger.Debug("overlay: surface already marked, skipping", "surface", id)
		return nil, nil
	}

	if err := sf.EnsurePositioned(); err != nil {
		return nil, fmt.Errorf("overlay: bind %s: position: %w", id, err)
	}
	layout, err := sf.Layout()
	if err != nil {
		return nil, fmt.Errorf("overlay: bind %s: layout: %w", id, err)
	}
	shadow, err := sf.AttachShadow(layout)
	if err != nil {
		return nil, fmt.Errorf("overlay: bind %s: attach: %w", id, err)
	}
	if err := sf.SetMarked(true); err != nil {
		shadow.Remove()
		return nil, fmt.Errorf("overlay: bind %s: mark: %w", id, err)
	}

	b := &Binding{ID: s.ids(), SurfaceID: id, shadow: shadow}
	s.bindings[id] = b
	s.binds.Add(1)
	s.bound.Store(int64(len(s.bindings)))

	if err := shadow.SetScroll(layout.Scroll); err != nil {
		s.Unbind(id)
		return nil, fmt.Errorf("overlay: bind %s: scroll: %w", id, err)
	}
	if err := s.sync(b, sf); err != nil {
		s.Unbind(id)
		return nil, fmt.Errorf("overlay: bind %s: %w", id, err)
	}

	s.logger.Debug("overlay: bound", "surface", id, "binding", b.ID)
	return b, nil
}

// Schedule queues a resync of the binding for surfaceID at the next frame.
// Signals for unbound surfaces are ignored.
func (s *Sync) Schedule(surfaceID string) {
	if _, ok := s.bindings[surfaceID]; !ok {
		return
	}
	s.signals.Add(1)
	if s.sched.add(surfaceID) {
		s.doc.RequestFrame(s.onFrame)
	}
}

// Frame runs one resync pass for every binding scheduled since the last
// frame. A failing binding is torn down and does not stop the others.
func (s *Sync) Frame() {
	ids := s.sched.drain()
	if len(ids) == 0 {
		return
	}
	s.frames.Add(1)
	for _, id := range ids {
		if err := s.Resync(id); err != nil {
			s.logger.Warn("overlay: resync failed, binding removed", "surface", id, "error", err)
		}
	}
}

// Resync brings the binding for surfaceID up to date. It re-renders only
// when the text changed and always re-applies geometry. Resyncing a surface
// that is no longer bound is a no-op. If the surface is gone or any step
// fails, the binding is torn down and the error returned.
func (s *Sync) Resync(surfaceID string) error {
	b, ok := s.bindings[surfaceID]
	if !ok {
		return nil
	}
	s.resyncs.Add(1)

	sf, ok := s.doc.Surface(surfaceID)
	if !ok || !sf.Connected() {
		s.failures.Add(1)
		s.Unbind(surfaceID)
		return fmt.Errorf("overlay: resync %s: %w", surfaceID, surface.ErrDetached)
	}
	if err := s.sync(b, sf); err != nil {
		s.failures.Add(1)
		s.Unbind(surfaceID)
		return fmt.Errorf("overlay: resync %s: %w", surfaceID, err)
	}
	return nil
}

func (s *Sync) sync(b *Binding, sf surface.Surface) error {
	text, err := sf.Text()
	if err != nil {
		return fmt.Errorf("read text: %w", err)
	}

	if !b.rendered || text != b.lastRendered {
		markup := s.renderer.Render(text, s.index())
		if err := b.shadow.SetContent(markup); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		if markup != "" {
			if err := b.shadow.ActivateAnnotations(render.AnnotationClass); err != nil {
				return fmt.Errorf("activate annotations: %w", err)
			}
		}
		b.lastRendered = text
		b.rendered = true
		s.renders.Add(1)
	}

	layout, err := sf.Layout()
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := b.shadow.SetGeometry(layout.Box); err != nil {
		return fmt.Errorf("geometry: %w", err)
	}
	return nil
}

// Scroll copies the surface's scroll offset onto its shadow. Nothing is
// re-rendered. Like Resync, a failure tears the binding down.
func (s *Sync) Scroll(surfaceID string) error {
	b, ok := s.bindings[surfaceID]
	if !ok {
		return nil
	}
	sf, ok := s.doc.Surface(surfaceID)
	if !ok || !sf.Connected() {
		s.failures.Add(1)
		s.Unbind(surfaceID)
		return fmt.Errorf("overlay: scroll %s: %w", surfaceID, surface.ErrDetached)
	}
	layout, err := sf.Layout()
	if err == nil {
		err = b.shadow.SetScroll(layout.Scroll)
	}
	if err != nil {
		s.failures.Add(1)
		s.Unbind(surfaceID)
		return fmt.Errorf("overlay: scroll %s: %w", surfaceID, err)
	}
	return nil
}

// Unbind removes the shadow and the surface's marker. Any queued resync
// for it is dropped.
func (s *Sync) Unbind(surfaceID string) {
	b, ok := s.bindings[surfaceID]
	if !ok {
		return
	}
	delete(s.bindings, surfaceID)
	s.sched.cancel(surfaceID)
	s.unbinds.Add(1)
	s.bound.Store(int64(len(s.bindings)))

	if err := b.shadow.Remove(); err != nil {
		s.logger.Warn("overlay: remove shadow", "surface", surfaceID, "error", err)
	}
	if sf, ok := s.doc.Surface(surfaceID); ok {
		if err := sf.SetMarked(false); err != nil {
			s.logger.Warn("overlay: clear marker", "surface", surfaceID, "error", err)
		}
	}
	s.logger.Debug("overlay: unbound", "surface", surfaceID, "binding", b.ID)
}

// UnbindAll tears down every binding and forgets pending frames.
func (s *Sync) UnbindAll() {
	for id := range s.bindings {
		s.Unbind(id)
	}
	s.sched.reset()
}

// Invalidate drops every render cache and schedules all bindings, so the
// next frame re-renders against the current index.
func (s *Sync) Invalidate() {
	for _, b := range s.bindings {
		b.rendered = false
	}
	for _, id := range s.Bindings() {
		s.Schedule(id)
	}
}

// Binding returns the binding for surfaceID.
func (s *Sync) Binding(surfaceID string) (*Binding, bool) {
	b, ok := s.bindings[surfaceID]
	return b, ok
}

// Bindings lists bound surface IDs in sorted order.
func (s *Sync) Bindings() []string {
	ids := make([]string, 0, len(s.bindings))
	for id := range s.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pending is the number of bindings waiting for the next frame.
func (s *Sync) Pending() int { return s.sched.len() }

// Stats returns the current counters. Safe to call from any goroutine.
func (s *Sync) Stats() Stats {
	return Stats{
		Bound:    s.bound.Load(),
		Binds:    s.binds.Load(),
		Unbinds:  s.unbinds.Load(),
		Signals:  s.signals.Load(),
		Frames:   s.frames.Load(),
		Resyncs:  s.resyncs.Load(),
		Renders:  s.renders.Load(),
		Failures: s.failures.Load(),
	}
}
