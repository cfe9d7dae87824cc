package htmldoc

import (
	"fmt"
	"strings"

	"github.com/entrhq/autofill/pkg/matcher"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is one input, textarea or select node.
type Element struct {
	doc  *Document
	node *html.Node
}

// Attributes implements matcher.Control.
func (e *Element) Attributes() matcher.Attributes {
	return matcher.Attributes{
		Name:        attr(e.node, "name"),
		ID:          attr(e.node, "id"),
		Placeholder: attr(e.node, "placeholder"),
		AriaLabel:   attr(e.node, "aria-label"),
	}
}

// Kind implements matcher.Control.
func (e *Element) Kind() string {
	switch e.node.DataAtom {
	case atom.Textarea:
		return "textarea"
	case atom.Select:
		return "select"
	}
	kind := strings.ToLower(strings.TrimSpace(attr(e.node, "type")))
	if kind == "" {
		return "text"
	}
	return kind
}

// SetValue implements matcher.Control.
func (e *Element) SetValue(value string) error {
	switch e.node.DataAtom {
	case atom.Textarea:
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return nil
	case atom.Select:
		return e.selectOption(value)
	}

	if e.Kind() == "file" {
		return fmt.Errorf("file inputs cannot be given a value")
	}
	if hasAttr(e.node, "readonly") || hasAttr(e.node, "disabled") {
		return fmt.Errorf("control is read-only")
	}
	setAttr(e.node, "value", value)
	return nil
}

// SetChecked implements matcher.Control.
func (e *Element) SetChecked(checked bool) error {
	if hasAttr(e.node, "disabled") {
		return fmt.Errorf("control is disabled")
	}
	if checked {
		setAttr(e.node, "checked", "")
	} else {
		removeAttr(e.node, "checked")
	}
	return nil
}

// Dispatch implements matcher.Control by recording the event.
func (e *Element) Dispatch(event string) error {
	e.doc.record(e.node, event)
	return nil
}

// Value returns the current value: the value attribute of an input, the text
// of a textarea or the value of the selected option.
func (e *Element) Value() string {
	switch e.node.DataAtom {
	case atom.Textarea:
		return textContent(e.node)
	case atom.Select:
		for _, opt := range options(e.node) {
			if hasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		return ""
	}
	return attr(e.node, "value")
}

// Checked reports whether the checked attribute is present.
func (e *Element) Checked() bool {
	return hasAttr(e.node, "checked")
}

// Events returns the events dispatched on the element, in order.
func (e *Element) Events() []string {
	return e.doc.recorded(e.node)
}

func (e *Element) selectOption(value string) error {
	opts := options(e.node)
	var target *html.Node
	for _, opt := range opts {
		if optionValue(opt) == value || strings.TrimSpace(textContent(opt)) == value {
			target = opt
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no option matches %q", value)
	}
	for _, opt := range opts {
		if opt == target {
			setAttr(opt, "selected", "")
		} else {
			removeAttr(opt, "selected")
		}
	}
	return nil
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Option {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(sel)
	return out
}

func optionValue(opt *html.Node) string {
	if hasAttr(opt, "value") {
		return attr(opt, "value")
	}
	return strings.TrimSpace(textContent(opt))
}
