package memdoc

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/phrasemark/surface"
)

// shadowState is the geometry last applied to an overlay, kept so tests
// can compare it with the surface without parsing styles back.
type shadowState struct {
	surface string
	box     surface.Rect
	scroll  surface.Point
	writes  int
}

type shadow struct {
	doc   *Doc
	node  *html.Node
	state *shadowState
}

func (s *shadow) SetContent(markup string) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	if !s.doc.attached(s.node) {
		return surface.ErrDetached
	}

	removeChildren(s.node)
	s.state.writes++
	if markup == "" {
		return nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return fmt.Errorf("memdoc: overlay markup: %w", err)
	}
	for _, n := range nodes {
		s.node.AppendChild(n)
	}
	return nil
}

func (s *shadow) ActivateAnnotations(class string) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	walk(s.node, func(n *html.Node) bool {
		if n != s.node && n.Type == html.ElementNode && hasClass(n, class) {
			setStyle(n, "pointer-events", "auto", "position", "relative")
		}
		return true
	})
	return nil
}

func (s *shadow) SetGeometry(box surface.Rect) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	if !s.doc.attached(s.node) {
		return surface.ErrDetached
	}
	s.state.box = box
	setStyle(s.node,
		"left", px(box.X),
		"top", px(box.Y),
		"width", px(box.Width),
		"height", px(box.Height),
	)
	return nil
}

func (s *shadow) SetScroll(offset surface.Point) error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	if !s.doc.attached(s.node) {
		return surface.ErrDetached
	}
	s.state.scroll = offset
	setAttr(s.node, "data-scroll-top", strconv.FormatFloat(offset.Y, 'f', -1, 64))
	setAttr(s.node, "data-scroll-left", strconv.FormatFloat(offset.X, 'f', -1, 64))
	return nil
}

func (s *shadow) Remove() error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	detach(s.node)
	delete(s.doc.shadows, s.node)
	return nil
}
