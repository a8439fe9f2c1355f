package memdoc

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/phrasemark/surface"
)

// editable is a surface handle. Flat surfaces (textarea) expose their value
// as a single leaf; rich surfaces (contenteditable) expose every text node
// under them, however deeply nested.
type editable struct {
	doc  *Doc
	node *html.Node
	id   string
	flat bool
}

func (e *editable) ID() string { return e.id }

func (e *editable) Text() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return "", surface.ErrDetached
	}
	if e.flat {
		return textContent(e.node), nil
	}
	return innerText(e.node), nil
}

func (e *editable) Leaves() ([]surface.Leaf, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return nil, surface.ErrDetached
	}
	if e.flat {
		return []surface.Leaf{{ID: 0, Text: textContent(e.node)}}, nil
	}
	nodes := textNodes(e.node)
	leaves := make([]surface.Leaf, len(nodes))
	for i, n := range nodes {
		leaves[i] = surface.Leaf{ID: i, Text: n.Data}
	}
	return leaves, nil
}

func (e *editable) WriteLeaf(id int, text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return surface.ErrDetached
	}

	if e.flat {
		if id != 0 {
			return fmt.Errorf("memdoc: leaf %d: %w", id, surface.ErrNoLeaf)
		}
		removeChildren(e.node)
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	} else {
		nodes := textNodes(e.node)
		if id < 0 || id >= len(nodes) {
			return fmt.Errorf("memdoc: leaf %d: %w", id, surface.ErrNoLeaf)
		}
		nodes[id].Data = text
	}
	// A character-data mutation, as a MutationObserver would report it.
	e.doc.emit(surface.Event{Kind: surface.KindContentChanged, Surface: e.id})
	return nil
}

func (e *editable) NotifyChanged() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return surface.ErrDetached
	}
	e.doc.notified[e.id]++
	e.doc.emit(surface.Event{Kind: surface.KindContentChanged, Surface: e.id})
	return nil
}

func (e *editable) Focus() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return surface.ErrDetached
	}
	if e.doc.active != e.id {
		e.doc.active = e.id
		e.doc.emit(surface.Event{Kind: surface.KindFocused, Surface: e.id})
	}
	return nil
}

func (e *editable) Connected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.attached(e.node)
}

func (e *editable) Layout() (surface.Layout, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return surface.Layout{}, surface.ErrDetached
	}
	st := nodeStyle(e.node)
	l := e.doc.layouts[e.id]
	l.Position = st.get("position")
	if l.Position == "" {
		l.Position = "static"
	}
	l.Padding = st.get("padding")
	l.Font = st.get("font")
	l.LineHeight = st.get("line-height")
	return l, nil
}

func (e *editable) EnsurePositioned() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) {
		return surface.ErrDetached
	}
	if pos := nodeStyle(e.node).get("position"); pos == "" || pos == "static" {
		setStyle(e.node, "position", "relative")
	}
	return nil
}

func (e *editable) Marked() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := getAttr(e.node, MarkerAttr)
	return ok && v == "true"
}

func (e *editable) SetMarked(on bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if on {
		setAttr(e.node, MarkerAttr, "true")
	} else {
		delAttr(e.node, MarkerAttr)
	}
	return nil
}

func (e *editable) AttachShadow(layout surface.Layout) (surface.Shadow, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached(e.node) || e.node.Parent == nil {
		return nil, surface.ErrDetached
	}

	n := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	setAttr(n, "class", OverlayClass)
	setAttr(n, OverlayForAttr, e.id)
	setStyle(n,
		"position", "absolute",
		"pointer-events", "none",
		"white-space", "pre-wrap",
		"color", "transparent",
		"z-index", "9999",
		"user-select", "none",
	)
	if layout.Padding != "" {
		setStyle(n, "padding", layout.Padding)
	}
	if layout.Font != "" {
		setStyle(n, "font", layout.Font)
	}
	if layout.LineHeight != "" {
		setStyle(n, "line-height", layout.LineHeight)
	}
	e.node.Parent.InsertBefore(n, e.node.NextSibling)

	st := &shadowState{surface: e.id}
	e.doc.shadows[n] = st
	return &shadow{doc: e.doc, node: n, state: st}, nil
}
