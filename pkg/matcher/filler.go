package matcher

import (
	"context"
	"fmt"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/types"
)

// Report is the outcome of a fill run.
type Report struct {
	Success         bool     `json:"success"`
	PartiallyFilled bool     `json:"partiallyFilled"`
	UnfilledFields  []string `json:"unfilledFields"`

	// Written counts successful control writes; Failed counts writes that
	// raised an error and were skipped.
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// Filler writes fields into a Document.
type Filler struct {
	hooks []string
	scope config.FillScope
	log   *logging.Logger
}

// NewFiller creates a Filler from the fill configuration. A nil hook list
// means config.DefaultHooks.
func NewFiller(cfg config.FillConfig, log *logging.Logger) *Filler {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = append([]string(nil), config.DefaultHooks...)
	}
	scope := cfg.Scope
	if scope == "" {
		scope = config.ScopeDocument
	}
	return &Filler{hooks: hooks, scope: scope, log: log}
}

// Hooks returns the events dispatched after each write.
func (f *Filler) Hooks() []string {
	return append([]string(nil), f.hooks...)
}

// Fill writes every field into every control that matches it. Fields are
// visited in order and controls in document order. A control that fails to
// take a value is logged and skipped. A document without controls is a
// NoFormsOnPage error.
func (f *Filler) Fill(ctx context.Context, doc Document, fields []types.Field) (Report, error) {
	const op = "matcher.fill"

	controls, err := doc.Controls(ctx, f.scope)
	if err != nil {
		return Report{}, err
	}
	if len(controls) == 0 {
		return Report{}, types.NoFormsOnPage(op)
	}

	attrs := make([]Attributes, len(controls))
	for i, c := range controls {
		attrs[i] = c.Attributes()
	}

	report := Report{UnfilledFields: []string{}}
	for _, field := range fields {
		if field.Label == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Report{}, types.DeliveryFailed(op, err, "fill interrupted")
		}

		matched := 0
		for i, c := range controls {
			if !Matches(attrs[i], field.Label) {
				continue
			}
			matched++
			if err := f.write(c, field.Value); err != nil {
				report.Failed++
				f.log.Warnf("field %q: control %d (%s): %v", field.Label, i, describe(attrs[i]), err)
				continue
			}
			report.Written++
			f.dispatchHooks(c, i, attrs[i])
		}
		if matched == 0 {
			report.UnfilledFields = append(report.UnfilledFields, field.Label)
		}
	}

	report.Success = true
	report.PartiallyFilled = len(report.UnfilledFields) > 0
	f.log.Debugf("filled %d controls, %d failed, %d fields unmatched",
		report.Written, report.Failed, len(report.UnfilledFields))
	return report, nil
}

func (f *Filler) write(c Control, value string) error {
	if IsToggle(c.Kind()) {
		return c.SetChecked(CheckedValue(value))
	}
	return c.SetValue(value)
}

func (f *Filler) dispatchHooks(c Control, index int, attrs Attributes) {
	for _, event := range f.hooks {
		if err := c.Dispatch(event); err != nil {
			f.log.Warnf("control %d (%s): %s event: %v", index, describe(attrs), event, err)
		}
	}
}

func describe(a Attributes) string {
	switch {
	case a.Name != "":
		return fmt.Sprintf("name=%q", a.Name)
	case a.ID != "":
		return fmt.Sprintf("id=%q", a.ID)
	case a.Placeholder != "":
		return fmt.Sprintf("placeholder=%q", a.Placeholder)
	case a.AriaLabel != "":
		return fmt.Sprintf("aria-label=%q", a.AriaLabel)
	}
	return "unnamed"
}
