package messaging

import (
	"context"
	"sync"

	"github.com/entrhq/autofill/pkg/types"
)

// Transport moves an encoded request to a page and returns the encoded
// response. A request that cannot reach the page, or whose page goes away
// before answering, fails with DeliveryFailed.
type Transport interface {
	RoundTrip(ctx context.Context, payload []byte) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, payload []byte) ([]byte, error)

func (f TransportFunc) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// Direct calls an endpoint in the same goroutine.
func Direct(e *Endpoint) Transport {
	return TransportFunc(e.Serve)
}

type call struct {
	ctx     context.Context
	payload []byte
	reply   chan result
}

type result struct {
	payload []byte
	err     error
}

// ChannelTransport serves an Endpoint on its own goroutine, the way a page
// context answers messages from the extension. Close stands in for the page
// navigating away.
type ChannelTransport struct {
	calls     chan call
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewChannelTransport starts serving e.
func NewChannelTransport(e *Endpoint) *ChannelTransport {
	t := &ChannelTransport{
		calls: make(chan call),
		done:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.serve(e)
	return t
}

func (t *ChannelTransport) serve(e *Endpoint) {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case c := <-t.calls:
			payload, err := e.Serve(c.ctx, c.payload)
			// reply is buffered so an abandoned caller never blocks the page
			c.reply <- result{payload: payload, err: err}
		}
	}
}

// RoundTrip implements Transport.
func (t *ChannelTransport) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	const op = "messaging.round_trip"
	if err := ctx.Err(); err != nil {
		return nil, types.DeliveryFailed(op, err, "request not delivered")
	}
	c := call{ctx: ctx, payload: payload, reply: make(chan result, 1)}

	select {
	case <-t.done:
		return nil, types.DeliveryFailed(op, nil, "page is gone")
	case <-ctx.Done():
		return nil, types.DeliveryFailed(op, ctx.Err(), "request not delivered")
	case t.calls <- c:
	}

	select {
	case <-t.done:
		return nil, types.DeliveryFailed(op, nil, "page went away before answering")
	case <-ctx.Done():
		return nil, types.DeliveryFailed(op, ctx.Err(), "no answer from page")
	case r := <-c.reply:
		if r.err != nil {
			return nil, types.DeliveryFailed(op, r.err, "page failed to answer")
		}
		return r.payload, nil
	}
}

// Close stops serving. Pending and later requests fail with DeliveryFailed.
func (t *ChannelTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
}
