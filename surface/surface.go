// Package surface defines what the highlighter needs from a host document:
// editable surfaces it can read and edit through their text leaves, a shadow
// element it can position over each one, a menu presenter, and a stream of
// host events.
//
// The core never owns a surface. Surfaces are addressed by ID and resolved
// through the Document each time they are used, so a surface removed from the
// host simply stops resolving.
package surface

import "errors"

var (
	// ErrDetached is returned when a surface is no longer in the document.
	ErrDetached = errors.New("surface: detached")
	// ErrNoLeaf is returned by WriteLeaf for an unknown leaf ID.
	ErrNoLeaf = errors.New("surface: no such text leaf")
)

// Leaf is one text-bearing node under a surface, in depth-first order.
type Leaf struct {
	ID   int
	Text string
}

// TextLeaves is the editing capability shared by every editor shape, flat
// single-value fields and nested rich editors alike.
type TextLeaves interface {
	// Leaves returns every text leaf under the surface, depth-first.
	Leaves() ([]Leaf, error)
	// WriteLeaf replaces the text of one leaf.
	WriteLeaf(id int, text string) error
	// NotifyChanged tells whoever listens to the surface that its content
	// changed programmatically.
	NotifyChanged() error
}

// Surface is an editable element of the host document.
type Surface interface {
	TextLeaves

	ID() string
	// Text is the rendered text of the surface, lines separated by "\n".
	Text() (string, error)
	Focus() error
	// Connected reports whether the surface is still part of the document.
	Connected() bool
	Layout() (Layout, error)
	// EnsurePositioned gives the surface a non-static positioning context.
	EnsurePositioned() error
	// Marked reports the binding marker; SetMarked sets or clears it.
	Marked() bool
	SetMarked(on bool) error
	// AttachShadow inserts a shadow element right after the surface, styled
	// from layout so its text metrics match.
	AttachShadow(layout Layout) (Shadow, error)
}

// Shadow is the overlay element owned by a binding.
type Shadow interface {
	SetContent(markup string) error
	// ActivateAnnotations makes elements with the given class accept
	// pointer input. The rest of the shadow stays pass-through.
	ActivateAnnotations(class string) error
	SetGeometry(box Rect) error
	SetScroll(offset Point) error
	Remove() error
}

// MenuView is what the host needs to draw a replacement menu.
type MenuView struct {
	Phrase string
	Items  []string
	Anchor Point
}

// MenuHandle removes a displayed menu.
type MenuHandle interface {
	Remove() error
}

// Presenter shows replacement menus.
type Presenter interface {
	ShowMenu(view MenuView) (MenuHandle, error)
}

// Document is the host document.
type Document interface {
	Presenter

	// Host is the page host name, as reported by the location.
	Host() string
	// Editables lists every editable surface currently in the document.
	Editables() ([]Surface, error)
	// Surface resolves an ID; false once the surface left the document.
	Surface(id string) (Surface, bool)
	// Active returns the surface holding document focus, if any.
	Active() (Surface, bool)
	// Observe subscribes fn to host events until stop is called.
	Observe(fn func(Event)) (stop func())
	// RequestFrame runs fn at the next paint opportunity.
	RequestFrame(fn func())
	// ClearOverlays removes every shadow and binding marker left in the
	// document, including ones from a previous session.
	ClearOverlays() error
}
