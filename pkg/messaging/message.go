// Package messaging carries fill requests from the extension side to the page
// side and fill reports back.
//
// The two sides share no memory. A Client encodes a Request that already
// holds the resolved profile fields, a Transport moves the bytes, and an
// Endpoint running next to the page decodes it, runs the matcher and encodes
// a Response. The page side never reads profile storage.
package messaging

import (
	"errors"

	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/types"
)

// ActionFillForms asks the page to fill its controls.
const ActionFillForms = "fillForms"

// Request is sent from the extension side to a page.
type Request struct {
	Action  string        `json:"action"`
	Profile string        `json:"profile"`
	Fields  []types.Field `json:"fields"`
}

// Response is the page's answer to a Request.
type Response struct {
	Success         bool     `json:"success"`
	PartiallyFilled bool     `json:"partiallyFilled,omitempty"`
	UnfilledFields  []string `json:"unfilledFields,omitempty"`
	Error           string   `json:"error,omitempty"`

	// Kind classifies Error so the caller can rebuild a typed error.
	Kind types.ErrorKind `json:"kind,omitempty"`

	Written int `json:"written,omitempty"`
	Failed  int `json:"failed,omitempty"`
}

// ResponseFromReport converts a matcher report.
func ResponseFromReport(r matcher.Report) Response {
	return Response{
		Success:         r.Success,
		PartiallyFilled: r.PartiallyFilled,
		UnfilledFields:  r.UnfilledFields,
		Written:         r.Written,
		Failed:          r.Failed,
	}
}

// ResponseFromError converts a failed fill.
func ResponseFromError(err error) Response {
	kind := types.KindOf(err)
	if kind == "" {
		kind = types.KindDeliveryFailed
	}
	return Response{Success: false, Error: message(err), Kind: kind}
}

// Report converts a successful response back into a matcher report.
func (r Response) Report() matcher.Report {
	unfilled := r.UnfilledFields
	if unfilled == nil {
		unfilled = []string{}
	}
	return matcher.Report{
		Success:         r.Success,
		PartiallyFilled: r.PartiallyFilled,
		UnfilledFields:  unfilled,
		Written:         r.Written,
		Failed:          r.Failed,
	}
}

// Err rebuilds the error carried by a failed response.
func (r Response) Err(op string) error {
	if r.Success {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = types.KindDeliveryFailed
	}
	msg := r.Error
	if msg == "" {
		msg = "error filling forms"
	}
	return &types.Error{Kind: kind, Op: op, Message: msg}
}

// message is the user-facing part of err, without the operation prefix.
func message(err error) string {
	var e *types.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
