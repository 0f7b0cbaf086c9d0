package page

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nixlim/storetimer/internal/timer"
)

var unitLabels = map[string]string{
	timer.UnitDays:    "Days",
	timer.UnitHours:   "Hours",
	timer.UnitMinutes: "Minutes",
	timer.UnitSeconds: "Seconds",
}

// FromTimers builds a page holding the standard markup for a list of
// published timers, the way the storefront theme renders them.
func FromTimers(timers []timer.MetafieldTimer, pageURL string) (*Document, error) {
	doc, err := ParseString("<!DOCTYPE html><html><head><title>storetimer</title></head><body></body></html>", pageURL)
	if err != nil {
		return nil, err
	}

	body := findFirst(doc.root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	wrapper := element(atom.Div, "", "id", WrapperID)
	body.AppendChild(wrapper)

	for _, m := range timers {
		wrapper.AppendChild(timerNode(m))
	}
	return doc, nil
}

func timerNode(m timer.MetafieldTimer) *html.Node {
	cfg := timer.FromMetafield(m)
	attrs := m.Attributes()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := element(atom.Div, TimerClass, "hidden", "")
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}

	if m.Title != "" {
		n.AppendChild(withText(element(atom.Span, LabelClass), m.Title))
	}

	digits := element(atom.Div, DigitsClass)
	for _, unit := range timer.Units {
		block := element(atom.Span, UnitClass)
		block.AppendChild(withText(element(atom.Span, "", UnitAttr, unit), "00"))
		if cfg.ShowLabels {
			block.AppendChild(withText(element(atom.Span, "unit-label"), unitLabels[unit]))
		}
		digits.AppendChild(block)
	}
	n.AppendChild(digits)

	n.AppendChild(element(atom.Span, MessageClass, "hidden", ""))

	if m.CTAURL != "" {
		text := m.CTAText
		if strings.TrimSpace(text) == "" {
			text = "Shop now"
		}
		n.AppendChild(withText(element(atom.A, CTAClass, "href", m.CTAURL), text))
	}
	if cfg.Closable {
		n.AppendChild(withText(element(atom.Button, CloseClass, "type", "button", "aria-label", "Close"), "×"))
	}
	return n
}

// element creates a node with an optional class and alternating
// key/value attributes.
func element(a atom.Atom, class string, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
