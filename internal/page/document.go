// Package page holds the host page document the timers are rendered into.
// It wraps an x/net/html node tree with the small set of queries and
// mutations the engine and bootstrap need, behind a single mutex.
package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Host page contract.
const (
	WrapperID    = "countdown-timers"
	TimerClass   = "countdown-timer"
	DigitsClass  = "timer-digits"
	UnitClass    = "timer-unit"
	LabelClass   = "timer-label"
	MessageClass = "timer-message"
	CloseClass   = "timer-close"
	CTAClass     = "timer-cta"

	ExpiredClass = "is-expired"
	TickClass    = "tick"
	ClosingClass = "is-closing"

	UnitAttr = "data-unit"
)

// Document is a parsed HTML page. It is safe for concurrent use; all
// Element methods take the owning document's lock.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	url  string
}

// Element is a handle to a node inside a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Parse reads an HTML page. pageURL is the address the page is considered
// to be served from; it drives page targeting and analytics payloads.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return &Document{root: root, url: pageURL}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// URL returns the page address.
func (d *Document) URL() string {
	return d.url
}

// Render writes the current state of the page as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findFirst(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	})
	return d.wrap(n)
}

// ByClass returns every element carrying class, in document order.
func (d *Document) ByClass(class string) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collect(d.root, func(n *html.Node) bool { return hasClass(n, class) })
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

func (d *Document) collect(from *html.Node, match func(*html.Node) bool) []*Element {
	var out []*Element
	walk(from, func(n *html.Node) bool {
		if n != from && match(n) {
			out = append(out, d.wrap(n))
		}
		return true
	})
	return out
}

// Attr returns the value of an attribute.
func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, key)
}

// Attrs returns a copy of the element's attributes.
func (e *Element) Attrs() map[string]string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func (e *Element) SetAttr(key, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, key, value)
}

func (e *Element) RemoveAttr(key string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.node, key)
}

// Text returns the concatenated text content of the element.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var b strings.Builder
	walk(e.node, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

// SetText replaces the element's children with a single text node.
func (e *Element) SetText(s string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// Show clears the hidden attribute.
func (e *Element) Show() { e.RemoveAttr("hidden") }

// Hide sets the hidden attribute.
func (e *Element) Hide() { e.SetAttr("hidden", "") }

// Hidden reports whether the element itself carries the hidden attribute.
func (e *Element) Hidden() bool {
	_, ok := e.Attr("hidden")
	return ok
}

func (e *Element) HasClass(class string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return hasClass(e.node, class)
}

func (e *Element) AddClass(class string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if hasClass(e.node, class) {
		return
	}
	v, _ := attr(e.node, "class")
	setAttr(e.node, "class", strings.TrimSpace(v+" "+class))
}

func (e *Element) RemoveClass(class string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := attr(e.node, "class")
	if !ok {
		return
	}
	fields := strings.Fields(v)
	kept := fields[:0]
	for _, f := range fields {
		if f != class {
			kept = append(kept, f)
		}
	}
	setAttr(e.node, "class", strings.Join(kept, " "))
}

// Remove detaches the element from the page.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// Attached reports whether the element is still part of the page.
func (e *Element) Attached() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Same reports whether two handles point at the same node.
func (e *Element) Same(o *Element) bool {
	return e != nil && o != nil && e.node == o.node
}

// FindClass returns the first descendant carrying class, or nil.
func (e *Element) FindClass(class string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrap(findFirst(e.node, func(n *html.Node) bool {
		return n != e.node && hasClass(n, class)
	}))
}

// FindAttr returns the first descendant whose attribute key equals value.
func (e *Element) FindAttr(key, value string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrap(findFirst(e.node, func(n *html.Node) bool {
		v, ok := attr(n, key)
		return n != e.node && ok && v == value
	}))
}

// FindLink returns the first descendant anchor carrying class, or nil.
func (e *Element) FindLink(class string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrap(findFirst(e.node, func(n *html.Node) bool {
		return n != e.node && n.DataAtom == atom.A && hasClass(n, class)
	}))
}

// Closest returns the nearest ancestor (or the element itself) carrying
// class, or nil.
func (e *Element) Closest(class string) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for n := e.node; n != nil; n = n.Parent {
		if hasClass(n, class) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n.Type == html.ElementNode || n.Type == html.TextNode {
		if !visit(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func findFirst(from *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(from, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}
