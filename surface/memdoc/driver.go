package memdoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/phrasemark/render"
	"github.com/hazyhaar/phrasemark/surface"
)

// Type replaces the content of a surface as if the user typed text. Rich
// surfaces get one <p> per line.
func (d *Doc) Type(id, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok || !d.attached(n) {
		return fmt.Errorf("memdoc: type into %s: %w", id, surface.ErrDetached)
	}

	removeChildren(n)
	if n.Data == "textarea" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	} else {
		for _, line := range strings.Split(text, "\n") {
			p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
			p.AppendChild(&html.Node{Type: html.TextNode, Data: line})
			n.AppendChild(p)
		}
	}
	d.emit(surface.Event{Kind: surface.KindContentChanged, Surface: id})
	return nil
}

// Touch queues a content-changed signal for a surface without editing it.
func (d *Doc) Touch(id string) {
	d.mu.Lock()
	d.emit(surface.Event{Kind: surface.KindContentChanged, Surface: id})
	d.mu.Unlock()
}

// Insert parses markup, appends it to <body>, and reports any editable
// surfaces it introduced. It returns their IDs.
func (d *Doc) Insert(markup string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := html.ParseFragment(strings.NewReader(markup), d.body)
	if err != nil {
		return nil, fmt.Errorf("memdoc: insert: %w", err)
	}
	var ids []string
	for _, n := range nodes {
		d.body.AppendChild(n)
		ids = append(ids, d.register(n)...)
	}
	if len(ids) > 0 {
		d.emit(surface.Event{Kind: surface.KindAdded, Surfaces: ids})
	}
	return ids, nil
}

// Remove detaches a surface from the document. The surface and any
// editable nested in it are forgotten; handles already given out report
// ErrDetached.
func (d *Doc) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok || !d.attached(n) {
		return fmt.Errorf("memdoc: remove %s: %w", id, surface.ErrDetached)
	}
	detach(n)
	removed := d.forget(n)
	d.emit(surface.Event{Kind: surface.KindRemoved, Surfaces: removed})
	return nil
}

// forget drops every registered surface in the subtree at root and returns
// their IDs in document order. Callers hold d.mu.
func (d *Doc) forget(root *html.Node) []string {
	var ids []string
	walk(root, func(n *html.Node) bool {
		id, ok := getAttr(n, IDAttr)
		if !ok || d.nodes[id] != n {
			return true
		}
		delete(d.nodes, id)
		delete(d.layouts, id)
		if d.active == id {
			d.active = ""
		}
		ids = append(ids, id)
		return true
	})
	return ids
}

// Registered is the number of surfaces the document tracks.
func (d *Doc) Registered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// SetBox sets the content box a surface reports in its layout.
func (d *Doc) SetBox(id string, box surface.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.layouts[id]
	l.Box = box
	d.layouts[id] = l
}

// Scroll moves a surface's scroll offset and queues a scroll event.
func (d *Doc) Scroll(id string, offset surface.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.layouts[id]
	l.Scroll = offset
	d.layouts[id] = l
	d.emit(surface.Event{Kind: surface.KindScrolled, Surface: id})
}

// Blur drops document focus.
func (d *Doc) Blur() {
	d.mu.Lock()
	d.active = ""
	d.mu.Unlock()
}

// ClickAnnotation clicks the n-th annotation in a surface's overlay. The
// event carries the phrase and the replacements read back from the markup.
func (d *Doc) ClickAnnotation(id string, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ov := d.overlayLocked(id)
	if ov == nil {
		return fmt.Errorf("memdoc: no overlay for %s", id)
	}
	var spans []*html.Node
	walk(ov, func(c *html.Node) bool {
		if c != ov && c.Type == html.ElementNode && hasClass(c, render.AnnotationClass) {
			spans = append(spans, c)
		}
		return true
	})
	if n < 0 || n >= len(spans) {
		return fmt.Errorf("memdoc: overlay %s has %d annotations, want index %d", id, len(spans), n)
	}
	span := spans[n]
	attr, _ := getAttr(span, render.ReplacementsAttr)
	ann := &surface.Annotation{
		Phrase:       textContent(span),
		Replacements: render.ParseReplacements(attr),
		Box:          d.layouts[id].Box,
	}
	d.emit(surface.Event{Kind: surface.KindAnnotationClick, Surface: id, Annotation: ann})
	return nil
}

// ClickOverlay clicks an empty area of a surface's overlay.
func (d *Doc) ClickOverlay(id string) {
	d.mu.Lock()
	d.emit(surface.Event{Kind: surface.KindOverlayClick, Surface: id})
	d.mu.Unlock()
}

// ClickOutside clicks somewhere on the page outside any menu.
func (d *Doc) ClickOutside() {
	d.mu.Lock()
	d.emit(surface.Event{Kind: surface.KindOutsideClick})
	d.mu.Unlock()
}

// SelectMenuItem clicks the i-th item of the open menu.
func (d *Doc) SelectMenuItem(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	menus := d.menusLocked()
	if len(menus) == 0 {
		return fmt.Errorf("memdoc: no menu open")
	}
	d.emit(surface.Event{Kind: surface.KindMenuSelect, Index: i})
	return nil
}

// Unload signals that the page is going away.
func (d *Doc) Unload() {
	d.mu.Lock()
	d.emit(surface.Event{Kind: surface.KindUnload})
	d.mu.Unlock()
}

func (d *Doc) overlayLocked(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && hasClass(n, OverlayClass) {
			if v, _ := getAttr(n, OverlayForAttr); v == id {
				found = n
			}
			return false
		}
		return true
	})
	return found
}

func (d *Doc) menusLocked() []*html.Node {
	var out []*html.Node
	walk(d.body, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, MenuClass) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// Overlay renders the inner markup of a surface's overlay.
func (d *Doc) Overlay(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ov := d.overlayLocked(id)
	if ov == nil {
		return "", false
	}
	var sb strings.Builder
	for c := ov.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String(), true
}

// OverlayAnnotations returns the text of every annotation in a surface's
// overlay.
func (d *Doc) OverlayAnnotations(id string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ov := d.overlayLocked(id)
	if ov == nil {
		return nil
	}
	var out []string
	walk(ov, func(n *html.Node) bool {
		if n != ov && n.Type == html.ElementNode && hasClass(n, render.AnnotationClass) {
			out = append(out, textContent(n))
			return false
		}
		return true
	})
	return out
}

// OverlayGeometry returns the box and scroll offset last applied to a
// surface's overlay, and how many times its content was written.
func (d *Doc) OverlayGeometry(id string) (box surface.Rect, scroll surface.Point, writes int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n, st := range d.shadows {
		if st.surface == id && d.attached(n) {
			return st.box, st.scroll, st.writes, true
		}
	}
	return surface.Rect{}, surface.Point{}, 0, false
}

// OverlayCount is the number of overlays in the document.
func (d *Doc) OverlayCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, OverlayClass) {
			count++
			return false
		}
		return true
	})
	return count
}

// Menus returns the items of every open menu.
func (d *Doc) Menus() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [][]string
	for _, m := range d.menusLocked() {
		items := []string{}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			if hasClass(c, MenuItemClass) {
				items = append(items, textContent(c))
			}
		}
		out = append(out, items)
	}
	return out
}

// Notifications counts NotifyChanged calls on a surface.
func (d *Doc) Notifications(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notified[id]
}

// Text is the current text of a surface, or "" if it is gone.
func (d *Doc) Text(id string) string {
	s, ok := d.Surface(id)
	if !ok {
		return ""
	}
	t, _ := s.Text()
	return t
}
