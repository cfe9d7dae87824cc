package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/types"
)

// Client is the extension side of the channel.
type Client struct {
	log *logging.Logger
}

// NewClient creates a Client.
func NewClient(log *logging.Logger) *Client {
	return &Client{log: log}
}

// Fill sends already resolved fields to the page behind t and returns its
// report. Partial fills are successes; a page without controls returns a
// NoFormsOnPage error and an unreachable page a DeliveryFailed error.
func (c *Client) Fill(ctx context.Context, t Transport, profile string, fields []types.Field) (matcher.Report, error) {
	const op = "messaging.fill"

	payload, err := json.Marshal(Request{Action: ActionFillForms, Profile: profile, Fields: fields})
	if err != nil {
		return matcher.Report{}, types.Validation(op, "failed to encode request: %v", err)
	}

	raw, err := t.RoundTrip(ctx, payload)
	if err != nil {
		c.log.Warnf("fill request for %q not delivered: %v", profile, err)
		if errors.Is(err, types.ErrDeliveryFailed) {
			return matcher.Report{}, err
		}
		return matcher.Report{}, types.DeliveryFailed(op, err, "unable to fill forms")
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return matcher.Report{}, types.DeliveryFailed(op, err, "malformed response from page")
	}
	if err := resp.Err(op); err != nil {
		return matcher.Report{}, err
	}
	return resp.Report(), nil
}
