// Package htmldoc is a matcher.Document over a parsed HTML page. Writes are
// applied to the node tree and events are recorded instead of dispatched, so
// a fill can be run and inspected without a browser.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/matcher"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page.
type Document struct {
	root *html.Node

	mu     sync.Mutex
	events map[*html.Node][]string
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root, events: make(map[*html.Node][]string)}, nil
}

// ParseString parses an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Controls implements matcher.Document.
func (d *Document) Controls(_ context.Context, scope config.FillScope) ([]matcher.Control, error) {
	var out []matcher.Control
	for _, el := range d.elements(scope) {
		out = append(out, el)
	}
	return out, nil
}

// Elements returns the controls within scope as *Element values.
func (d *Document) Elements(scope config.FillScope) []*Element {
	return d.elements(scope)
}

// Find returns the first control whose name or id equals key.
func (d *Document) Find(key string) *Element {
	for _, el := range d.elements(config.ScopeDocument) {
		if attr(el.node, "name") == key || attr(el.node, "id") == key {
			return el
		}
	}
	return nil
}

// Render serializes the document, including every write made so far.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document to a string.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

func (d *Document) elements(scope config.FillScope) []*Element {
	var out []*Element
	var walk func(n *html.Node, inForm bool)
	walk = func(n *html.Node, inForm bool) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Form:
				inForm = true
			case atom.Input, atom.Textarea, atom.Select:
				if scope != config.ScopeForms || inForm {
					out = append(out, &Element{doc: d, node: n})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inForm)
		}
	}
	walk(d.root, false)
	return out
}

func (d *Document) record(n *html.Node, event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[n] = append(d.events[n], event)
}

func (d *Document) recorded(n *html.Node) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events[n]...)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
