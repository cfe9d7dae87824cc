package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/playwright-community/playwright-go"
)

// describeScript reads everything the matcher needs from an element in one
// round trip.
const describeScript = `el => ({
	tag: el.tagName.toLowerCase(),
	type: el.getAttribute("type") || "",
	name: el.getAttribute("name") || "",
	id: el.getAttribute("id") || "",
	placeholder: el.getAttribute("placeholder") || "",
	ariaLabel: el.getAttribute("aria-label") || ""
})`

const (
	setValueScript   = `(el, value) => { el.value = value; }`
	setCheckedScript = `(el, checked) => { el.checked = checked; }`
)

// Page is a matcher.Document over a live Playwright page.
type Page struct {
	page playwright.Page
}

// NewPage wraps page.
func NewPage(page playwright.Page) *Page {
	return &Page{page: page}
}

// Controls implements matcher.Document.
func (p *Page) Controls(ctx context.Context, scope config.FillScope) ([]matcher.Control, error) {
	const op = "browser.controls"
	if err := ctx.Err(); err != nil {
		return nil, types.DeliveryFailed(op, err, "request cancelled")
	}
	if p.page.IsClosed() {
		return nil, types.DeliveryFailed(op, nil, "page is closed")
	}

	handles, err := p.page.QuerySelectorAll(matcher.Selector(scope))
	if err != nil {
		return nil, types.DeliveryFailed(op, err, "failed to query controls")
	}

	controls := make([]matcher.Control, 0, len(handles))
	for _, h := range handles {
		c, err := describe(h)
		if err != nil {
			if p.page.IsClosed() {
				return nil, types.DeliveryFailed(op, err, "page closed while reading controls")
			}
			// The element went away between the query and the read.
			continue
		}
		controls = append(controls, c)
	}
	return controls, nil
}

func describe(h playwright.ElementHandle) (*control, error) {
	raw, err := h.Evaluate(describeScript)
	if err != nil {
		return nil, err
	}
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected element description %T", raw)
	}

	return &control{
		handle: h,
		kind:   controlKind(stringField(fields, "tag"), stringField(fields, "type")),
		attrs: matcher.Attributes{
			Name:        stringField(fields, "name"),
			ID:          stringField(fields, "id"),
			Placeholder: stringField(fields, "placeholder"),
			AriaLabel:   stringField(fields, "ariaLabel"),
		},
	}, nil
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// controlKind maps an element tag and type attribute to a matcher kind.
func controlKind(tag, typ string) string {
	switch strings.ToLower(tag) {
	case "textarea":
		return "textarea"
	case "select":
		return "select"
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return "text"
	}
	return typ
}

// control is one element handle with its attributes read up front.
type control struct {
	handle playwright.ElementHandle
	kind   string
	attrs  matcher.Attributes
}

func (c *control) Attributes() matcher.Attributes { return c.attrs }

func (c *control) Kind() string { return c.kind }

func (c *control) SetValue(value string) error {
	if _, err := c.handle.Evaluate(setValueScript, value); err != nil {
		return fmt.Errorf("set value failed: %w", err)
	}
	return nil
}

func (c *control) SetChecked(checked bool) error {
	if _, err := c.handle.Evaluate(setCheckedScript, checked); err != nil {
		return fmt.Errorf("set checked failed: %w", err)
	}
	return nil
}

func (c *control) Dispatch(event string) error {
	if err := c.handle.DispatchEvent(event, map[string]interface{}{"bubbles": true}); err != nil {
		return fmt.Errorf("dispatch %s failed: %w", event, err)
	}
	return nil
}
