package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/phrasemark/surface"
)

//go:embed agent.js
var agentJS string

const (
	bindingName = "__phrasemark_binding"
	// FrameDelay approximates one display frame.
	FrameDelay = 16 * time.Millisecond
	queueSize  = 256
)

// Page is a surface.Document backed by a Chrome tab. Host events arrive
// through the CDP binding and, like frame callbacks, are delivered to
// observers from a single goroutine, one at a time and never from inside a
// Page method.
type Page struct {
	page   *rod.Page
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	host   string

	mu        sync.Mutex
	observers map[int]func(surface.Event)
	nextObs   int

	queue chan func()
	done  chan struct{}
}

// Attach installs the agent in page and starts delivering its events. The
// agent is also registered for future navigations of the tab. Close detaches.
func Attach(ctx context.Context, page *rod.Page, logger *slog.Logger) (*Page, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Page{
		page:      page.Context(ctx),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		observers: make(map[int]func(surface.Event)),
		queue:     make(chan func(), queueSize),
		done:      make(chan struct{}),
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.page); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}
	if _, err := p.page.EvalOnNewDocument("(" + agentJS + ")()"); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: register agent: %w", err)
	}
	if _, err := p.page.Eval(agentJS); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject agent: %w", err)
	}
	host, err := p.evalStr(`() => window.__phrasemark.host()`)
	if err != nil {
		cancel()
		return nil, err
	}
	p.host = host

	go p.listen()
	go p.loop()
	logger.Info("browser: page attached", "host", host)
	return p, nil
}

// listen turns binding calls into queued events.
func (p *Page) listen() {
	p.page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		ev, err := parseEvent(e.Payload)
		if err != nil {
			p.logger.Warn("browser: bad event payload", "error", err)
			return
		}
		p.enqueue(func() { p.dispatch(ev) })
	})()
}

func (p *Page) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.queue:
			fn()
		}
	}
}

func (p *Page) enqueue(fn func()) {
	select {
	case p.queue <- fn:
	case <-p.ctx.Done():
	}
}

func (p *Page) dispatch(ev surface.Event) {
	p.mu.Lock()
	fns := make([]func(surface.Event), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// parseEvent decodes one binding payload.
func parseEvent(payload string) (surface.Event, error) {
	var ev surface.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return surface.Event{}, fmt.Errorf("browser: decode event: %w", err)
	}
	if ev.Kind == "" {
		return surface.Event{}, fmt.Errorf("browser: event without kind")
	}
	return ev, nil
}

// Close stops event delivery. The tab itself stays open.
func (p *Page) Close() {
	p.cancel()
	<-p.done
}

// Done is closed once the page stops delivering events.
func (p *Page) Done() <-chan struct{} { return p.done }

func (p *Page) eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := p.page.Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res, nil
}

func (p *Page) evalStr(js string, args ...any) (string, error) {
	res, err := p.eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *Page) evalBool(js string, args ...any) (bool, error) {
	res, err := p.eval(js, args...)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *Page) evalJSON(v any, js string, args ...any) error {
	s, err := p.evalStr(js, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("browser: decode eval result: %w", err)
	}
	return nil
}

// Host implements surface.Document.
func (p *Page) Host() string { return p.host }

// Editables implements surface.Document.
func (p *Page) Editables() ([]surface.Surface, error) {
	var ids []string
	if err := p.evalJSON(&ids, `() => window.__phrasemark.editables()`); err != nil {
		return nil, err
	}
	out := make([]surface.Surface, len(ids))
	for i, id := range ids {
		out[i] = &element{page: p, id: id}
	}
	return out, nil
}

// Surface implements surface.Document.
func (p *Page) Surface(id string) (surface.Surface, bool) {
	ok, err := p.evalBool(`(id) => window.__phrasemark.exists(id)`, id)
	if err != nil || !ok {
		return nil, false
	}
	return &element{page: p, id: id}, true
}

// Active implements surface.Document.
func (p *Page) Active() (surface.Surface, bool) {
	id, err := p.evalStr(`() => window.__phrasemark.active()`)
	if err != nil || id == "" {
		return nil, false
	}
	return &element{page: p, id: id}, true
}

// Observe implements surface.Document.
func (p *Page) Observe(fn func(surface.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextObs++
	id := p.nextObs
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// RequestFrame implements surface.Document.
func (p *Page) RequestFrame(fn func()) {
	time.AfterFunc(FrameDelay, func() { p.enqueue(fn) })
}

// ClearOverlays implements surface.Document.
func (p *Page) ClearOverlays() error {
	_, err := p.eval(`() => window.__phrasemark.clearOverlays()`)
	return err
}

// ShowMenu implements surface.Presenter.
func (p *Page) ShowMenu(view surface.MenuView) (surface.MenuHandle, error) {
	items := view.Items
	if items == nil {
		items = []string{}
	}
	mid, err := p.evalStr(`(phrase, items, x, y) => window.__phrasemark.showMenu(phrase, items, x, y)`,
		view.Phrase, items, view.Anchor.X, view.Anchor.Y)
	if err != nil {
		return nil, fmt.Errorf("browser: show menu: %w", err)
	}
	return &menuHandle{page: p, id: mid}, nil
}

type menuHandle struct {
	page *Page
	id   string
}

func (m *menuHandle) Remove() error {
	_, err := m.page.eval(`(id) => window.__phrasemark.removeMenu(id)`, m.id)
	return err
}
