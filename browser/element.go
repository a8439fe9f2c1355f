package browser

import (
	"fmt"

	"github.com/hazyhaar/phrasemark/surface"
)

// element is an editable in the page, addressed by its agent-assigned ID.
type element struct {
	page *Page
	id   string
}

func (e *element) ID() string { return e.id }

func (e *element) call(js string, args ...any) error {
	if _, err := e.page.eval(js, append([]any{e.id}, args...)...); err != nil {
		return fmt.Errorf("%s: %w", e.id, err)
	}
	return nil
}

func (e *element) Text() (string, error) {
	return e.page.evalStr(`(id) => window.__phrasemark.text(id)`, e.id)
}

func (e *element) Leaves() ([]surface.Leaf, error) {
	var leaves []surface.Leaf
	if err := e.page.evalJSON(&leaves, `(id) => window.__phrasemark.leaves(id)`, e.id); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (e *element) WriteLeaf(leaf int, text string) error {
	ok, err := e.page.evalBool(`(id, leaf, text) => window.__phrasemark.writeLeaf(id, leaf, text)`, e.id, leaf, text)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browser: leaf %d of %s: %w", leaf, e.id, surface.ErrNoLeaf)
	}
	return nil
}

func (e *element) NotifyChanged() error {
	return e.call(`(id) => window.__phrasemark.notify(id)`)
}

func (e *element) Focus() error {
	return e.call(`(id) => window.__phrasemark.focus(id)`)
}

func (e *element) Connected() bool {
	ok, err := e.page.evalBool(`(id) => window.__phrasemark.exists(id)`, e.id)
	return err == nil && ok
}

func (e *element) Layout() (surface.Layout, error) {
	var l surface.Layout
	if err := e.page.evalJSON(&l, `(id) => window.__phrasemark.layout(id)`, e.id); err != nil {
		return surface.Layout{}, err
	}
	return l, nil
}

func (e *element) EnsurePositioned() error {
	return e.call(`(id) => window.__phrasemark.ensurePositioned(id)`)
}

func (e *element) Marked() bool {
	ok, err := e.page.evalBool(`(id) => window.__phrasemark.marked(id)`, e.id)
	return err == nil && ok
}

func (e *element) SetMarked(on bool) error {
	return e.call(`(id, on) => window.__phrasemark.setMarked(id, on)`, on)
}

func (e *element) AttachShadow(layout surface.Layout) (surface.Shadow, error) {
	if err := e.call(`(id, l) => window.__phrasemark.attachShadow(id, l)`, layout); err != nil {
		return nil, err
	}
	return &shadow{page: e.page, id: e.id}, nil
}

// shadow is the overlay inserted after a surface; it is found by the
// surface ID it is linked to.
type shadow struct {
	page *Page
	id   string
}

func (s *shadow) must(js string, args ...any) error {
	ok, err := s.page.evalBool(js, append([]any{s.id}, args...)...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browser: overlay for %s: %w", s.id, surface.ErrDetached)
	}
	return nil
}

func (s *shadow) SetContent(markup string) error {
	return s.must(`(id, html) => window.__phrasemark.setContent(id, html)`, markup)
}

func (s *shadow) ActivateAnnotations(class string) error {
	return s.must(`(id, cls) => window.__phrasemark.activate(id, cls)`, class)
}

// SetGeometry positions the overlay from the surface's offset box. The
// viewport box is not needed in the page, where offsets are exact.
func (s *shadow) SetGeometry(surface.Rect) error {
	return s.must(`(id) => window.__phrasemark.geometry(id)`)
}

func (s *shadow) SetScroll(offset surface.Point) error {
	return s.must(`(id, x, y) => window.__phrasemark.scroll(id, x, y)`, offset.X, offset.Y)
}

func (s *shadow) Remove() error {
	_, err := s.page.eval(`(id) => window.__phrasemark.removeShadow(id)`, s.id)
	return err
}
