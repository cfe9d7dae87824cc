package messaging

import (
	"context"
	"encoding/json"

	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/types"
)

// Endpoint is the page side of the channel.
type Endpoint struct {
	doc    matcher.Document
	filler *matcher.Filler
	log    *logging.Logger
}

// NewEndpoint serves requests against doc.
func NewEndpoint(doc matcher.Document, filler *matcher.Filler, log *logging.Logger) *Endpoint {
	return &Endpoint{doc: doc, filler: filler, log: log}
}

// Handle answers one decoded request.
func (e *Endpoint) Handle(ctx context.Context, req Request) Response {
	if req.Action != ActionFillForms {
		e.log.Warnf("ignoring unknown action %q", req.Action)
		return ResponseFromError(types.Validation("messaging.handle", "unknown action %q", req.Action))
	}

	report, err := e.filler.Fill(ctx, e.doc, req.Fields)
	if err != nil {
		e.log.Warnf("fill for profile %q failed: %v", req.Profile, err)
		return ResponseFromError(err)
	}
	e.log.Infof("filled profile %q: %d written, %d unmatched", req.Profile, report.Written, len(report.UnfilledFields))
	return ResponseFromReport(report)
}

// Serve decodes payload, handles it and encodes the response.
func (e *Endpoint) Serve(ctx context.Context, payload []byte) ([]byte, error) {
	var req Request
	var resp Response
	if err := json.Unmarshal(payload, &req); err != nil {
		resp = ResponseFromError(types.Validation("messaging.serve", "malformed request: %v", err))
	} else {
		resp = e.Handle(ctx, req)
	}
	return json.Marshal(resp)
}
