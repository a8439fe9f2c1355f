package surface

import "fmt"

// Kind is the type of host event.
type Kind string

const (
	KindContentChanged  Kind = "content_changed"  // input or DOM mutation inside a surface
	KindScrolled        Kind = "scrolled"         // surface scroll offset changed
	KindFocused         Kind = "focused"          // surface received focus
	KindAdded           Kind = "added"            // editable surfaces appeared
	KindRemoved         Kind = "removed"          // surfaces left the document
	KindAnnotationClick Kind = "annotation_click" // click on a highlighted phrase
	KindOverlayClick    Kind = "overlay_click"    // click on an overlay outside any annotation
	KindOutsideClick    Kind = "outside_click"    // click anywhere outside the open menu
	KindMenuSelect      Kind = "menu_select"      // a menu item was chosen
	KindUnload          Kind = "unload"           // page is going away
)

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a box in viewport pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout is the part of a surface's computed style and geometry that an
// overlay must copy to stay congruent with it.
type Layout struct {
	Position   string `json:"position"`
	Padding    string `json:"padding"`
	Font       string `json:"font"`
	LineHeight string `json:"line_height"`
	Box        Rect   `json:"box"`
	Scroll     Point  `json:"scroll"`
}

// Annotation describes a clicked highlight.
type Annotation struct {
	Phrase       string   `json:"phrase"`
	Replacements []string `json:"replacements"`
	Box          Rect     `json:"box"`
}

// Event is one host notification. Which fields are set depends on Kind.
type Event struct {
	Kind       Kind        `json:"kind"`
	Surface    string      `json:"surface,omitempty"`
	Surfaces   []string    `json:"surfaces,omitempty"`
	Annotation *Annotation `json:"annotation,omitempty"`
	Index      int         `json:"index,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case KindAdded, KindRemoved:
		return fmt.Sprintf("%s%v", e.Kind, e.Surfaces)
	case KindMenuSelect:
		return fmt.Sprintf("%s[%d]", e.Kind, e.Index)
	case KindAnnotationClick:
		if e.Annotation != nil {
			return fmt.Sprintf("%s(%s %q)", e.Kind, e.Surface, e.Annotation.Phrase)
		}
	}
	if e.Surface != "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Surface)
	}
	return string(e.Kind)
}
