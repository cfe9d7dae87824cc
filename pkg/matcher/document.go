package matcher

import (
	"context"

	"github.com/entrhq/autofill/pkg/config"
)

// Control is one interactive form control.
type Control interface {
	// Attributes returns the attributes used for matching.
	Attributes() Attributes

	// Kind is the lower-cased input type ("text", "checkbox", "radio", ...),
	// or "textarea" / "select" for those elements.
	Kind() string

	SetValue(value string) error
	SetChecked(checked bool) error

	// Dispatch fires a bubbling event of the given type on the control.
	Dispatch(event string) error
}

// Document is a queryable page.
type Document interface {
	// Controls returns the interactive controls within scope in document order.
	Controls(ctx context.Context, scope config.FillScope) ([]Control, error)
}

// Selector returns the CSS selector for the controls of a scope.
func Selector(scope config.FillScope) string {
	if scope == config.ScopeForms {
		return "form input, form textarea, form select"
	}
	return "input, textarea, select"
}
