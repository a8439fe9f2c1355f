package memdoc

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func delAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// style is an ordered CSS declaration list from a style attribute.
type style [][2]string

func parseStyle(s string) style {
	var st style
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		st = st.set(k, strings.TrimSpace(v))
	}
	return st
}

func (st style) get(key string) string {
	for _, kv := range st {
		if kv[0] == key {
			return kv[1]
		}
	}
	return ""
}

func (st style) set(key, val string) style {
	for i := range st {
		if st[i][0] == key {
			st[i][1] = val
			return st
		}
	}
	return append(st, [2]string{key, val})
}

func (st style) String() string {
	parts := make([]string, 0, len(st))
	for _, kv := range st {
		parts = append(parts, kv[0]+": "+kv[1])
	}
	return strings.Join(parts, "; ")
}

func nodeStyle(n *html.Node) style {
	v, _ := getAttr(n, "style")
	return parseStyle(v)
}

func setStyle(n *html.Node, kv ...string) {
	st := nodeStyle(n)
	for i := 0; i+1 < len(kv); i += 2 {
		st = st.set(kv[i], kv[i+1])
	}
	setAttr(n, "style", st.String())
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// walk visits n and its descendants depth-first; returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			out = append(out, n)
		}
		return true
	})
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for _, t := range textNodes(n) {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// innerText approximates the browser's innerText: block elements start on a
// new line and <br> is a line break.
func innerText(root *html.Node) string {
	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				sb.WriteString(c.Data)
			case c.Type == html.ElementNode && c.Data == "br":
				sb.WriteByte('\n')
			case c.Type == html.ElementNode && blockTags[c.Data]:
				newline()
				visit(c)
				newline()
			case c.Type == html.ElementNode:
				visit(c)
			}
		}
	}
	visit(root)
	return strings.TrimSuffix(sb.String(), "\n")
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}
