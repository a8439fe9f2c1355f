// Package memdoc is an in-memory host document built on golang.org/x/net/html.
//
// It behaves like a browser page as far as the highlighter can tell:
// contenteditable elements are nested rich surfaces, textareas are flat
// single-value surfaces, overlays and menus are real nodes in the tree, and
// host events are queued and delivered asynchronously by Flush, the way
// mutation observers and animation frames fire after the current task.
//
// The driver methods (Type, Insert, Remove, Scroll, Click*, SelectMenuItem)
// simulate user activity.
package memdoc

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/phrasemark/idgen"
	"github.com/hazyhaar/phrasemark/surface"
)

const (
	// IDAttr holds the surface ID assigned on discovery.
	IDAttr = "data-phrasemark-id"
	// MarkerAttr is the binding marker on a surface.
	MarkerAttr = "data-phrase-highlighter-overlay"
	// OverlayClass marks shadow elements.
	OverlayClass = "highlight-overlay"
	// OverlayForAttr links a shadow to its surface.
	OverlayForAttr = "data-overlay-for"
	// MenuClass marks replacement menus.
	MenuClass = "replacement-menu"
	// MenuItemClass marks menu entries.
	MenuItemClass = "replacement-item"

	maxFlushRounds = 64
)

type observer struct {
	id int
	fn func(surface.Event)
}

// Doc is an in-memory document. It is safe for concurrent use; observer
// callbacks and frame callbacks always run without the document lock held.
type Doc struct {
	mu   sync.Mutex
	host string
	root *html.Node
	body *html.Node
	ids  idgen.Generator

	nodes   map[string]*html.Node
	layouts map[string]surface.Layout
	shadows map[*html.Node]*shadowState
	active  string

	observers []observer
	nextObs   int
	events    []surface.Event
	frames    []func()
	notified  map[string]int
}

// Option configures a Doc.
type Option func(*Doc)

// WithIDGenerator overrides the generator used for surfaces that carry
// neither a data-phrasemark-id nor an id attribute.
func WithIDGenerator(g idgen.Generator) Option {
	return func(d *Doc) { d.ids = g }
}

// Parse builds a document for the page at host from full or partial HTML.
func Parse(host, markup string, opts ...Option) (*Doc, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse: %w", err)
	}
	d := &Doc{
		host:     host,
		root:     root,
		ids:      idgen.Prefixed("s_", idgen.NanoID(10)),
		nodes:    make(map[string]*html.Node),
		layouts:  make(map[string]surface.Layout),
		shadows:  make(map[*html.Node]*shadowState),
		notified: make(map[string]int),
	}
	for _, o := range opts {
		o(d)
	}
	d.body = findElement(root, "body")
	if d.body == nil {
		return nil, fmt.Errorf("memdoc: document has no body")
	}
	d.register(d.body)
	return d, nil
}

// MustParse is Parse for fixtures.
func MustParse(host, markup string, opts ...Option) *Doc {
	d, err := Parse(host, markup, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func isEditable(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "textarea" {
		return true
	}
	v, ok := getAttr(n, "contenteditable")
	return ok && v == "true"
}

// register assigns IDs to every editable under root and returns them in
// document order. Callers hold d.mu or own d exclusively.
func (d *Doc) register(root *html.Node) []string {
	var ids []string
	walk(root, func(n *html.Node) bool {
		if !isEditable(n) {
			return true
		}
		id, ok := getAttr(n, IDAttr)
		if !ok || id == "" {
			id, ok = getAttr(n, "id")
			if !ok || id == "" {
				id = d.ids()
			}
			setAttr(n, IDAttr, id)
		}
		d.nodes[id] = n
		ids = append(ids, id)
		return true
	})
	return ids
}

func (d *Doc) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

func (d *Doc) handle(id string, n *html.Node) *editable {
	return &editable{doc: d, node: n, id: id, flat: n.Data == "textarea"}
}

// Host implements surface.Document.
func (d *Doc) Host() string { return d.host }

// Editables implements surface.Document.
func (d *Doc) Editables() ([]surface.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []surface.Surface
	for _, id := range d.register(d.body) {
		out = append(out, d.handle(id, d.nodes[id]))
	}
	return out, nil
}

// Surface implements surface.Document.
func (d *Doc) Surface(id string) (surface.Surface, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok || !d.attached(n) {
		return nil, false
	}
	return d.handle(id, n), true
}

// Active implements surface.Document.
func (d *Doc) Active() (surface.Surface, bool) {
	d.mu.Lock()
	id := d.active
	d.mu.Unlock()
	if id == "" {
		return nil, false
	}
	return d.Surface(id)
}

// Observe implements surface.Document.
func (d *Doc) Observe(fn func(surface.Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextObs++
	id := d.nextObs
	d.observers = append(d.observers, observer{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// RequestFrame implements surface.Document. Frames run during Flush, after
// pending events.
func (d *Doc) RequestFrame(fn func()) {
	d.mu.Lock()
	d.frames = append(d.frames, fn)
	d.mu.Unlock()
}

// ClearOverlays implements surface.Document.
func (d *Doc) ClearOverlays() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stale []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if hasClass(n, OverlayClass) {
			stale = append(stale, n)
			return false
		}
		delAttr(n, MarkerAttr)
		return true
	})
	for _, n := range stale {
		detach(n)
		delete(d.shadows, n)
	}
	return nil
}

// ShowMenu implements surface.Presenter. The menu is appended to <body>,
// positioned above its anchor.
func (d *Doc) ShowMenu(view surface.MenuView) (surface.MenuHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	menu := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	setAttr(menu, "class", MenuClass)
	setAttr(menu, "data-phrase", view.Phrase)
	setStyle(menu,
		"position", "fixed",
		"left", px(view.Anchor.X),
		"top", px(view.Anchor.Y),
		"z-index", "100001",
		"transform", "translateY(-100%)",
	)
	for i, item := range view.Items {
		el := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		class := MenuItemClass
		if i == 0 {
			class += " main"
		}
		setAttr(el, "class", class)
		el.AppendChild(&html.Node{Type: html.TextNode, Data: item})
		menu.AppendChild(el)
	}
	d.body.AppendChild(menu)
	return &menuHandle{doc: d, node: menu}, nil
}

type menuHandle struct {
	doc  *Doc
	node *html.Node
}

func (m *menuHandle) Remove() error {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	detach(m.node)
	return nil
}

// emit queues an event for the next Flush. Callers hold d.mu.
func (d *Doc) emit(ev surface.Event) {
	d.events = append(d.events, ev)
}

// Flush delivers queued events to observers, then runs requested frames,
// and repeats until nothing is pending.
func (d *Doc) Flush() {
	for range maxFlushRounds {
		d.mu.Lock()
		events, frames := d.events, d.frames
		d.events, d.frames = nil, nil
		obs := append([]observer(nil), d.observers...)
		d.mu.Unlock()

		if len(events) == 0 && len(frames) == 0 {
			return
		}
		for _, ev := range events {
			for _, o := range obs {
				o.fn(ev)
			}
		}
		for _, fn := range frames {
			fn()
		}
	}
}

// PendingFrames is the number of frame callbacks waiting for Flush.
func (d *Doc) PendingFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

// HTML renders the whole document.
func (d *Doc) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sb strings.Builder
	_ = html.Render(&sb, d.root)
	return sb.String()
}
