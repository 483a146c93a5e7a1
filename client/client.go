// Package client offers the client-facing operations bundled
// integration tests drive against a running overlay: ping, get, and
// put (spec.md §6 "Client surface"). A client speaks the exact same
// wire protocol as a peer and may address any member of the overlay.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lrem/chord/ring"
	"github.com/lrem/chord/wire"
)

// DefaultTimeout bounds a single client request.
const DefaultTimeout = 5 * time.Second

// Client dials a single peer locator for each request, matching the
// one-request-per-connection model the wire protocol uses.
type Client struct {
	Locator string
	Timeout time.Duration
}

// New returns a Client that talks to locator.
func New(locator string) *Client {
	return &Client{Locator: locator, Timeout: DefaultTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) roundTrip(ctx context.Context, req wire.Request) (wire.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", wire.NormalizeLocator(c.Locator))
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.Locator, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	w := bufio.NewWriter(conn)
	if err := wire.WriteRequest(w, req); err != nil {
		return nil, fmt.Errorf("client: write request: %w", err)
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	return resp, nil
}

// Ping sends a `ping` request and reports whether the peer replied
// `pong`.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	resp, err := c.roundTrip(ctx, wire.Request{Op: wire.OpPing})
	if err != nil {
		return false, err
	}
	_, ok := resp.(wire.PongResponse)
	return ok, nil
}

// Get fetches the value for key, wherever in the overlay it is
// stored. The returned bool is false when the key is absent.
func (c *Client) Get(ctx context.Context, key ring.Key) ([]byte, bool, error) {
	resp, err := c.roundTrip(ctx, wire.Request{Op: wire.OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	switch r := resp.(type) {
	case wire.ValueResponse:
		return r.Data, true, nil
	case wire.NoneResponse:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("client: unexpected get reply %#v", resp)
	}
}

// Put stores (key, value) in the overlay.
func (c *Client) Put(ctx context.Context, key ring.Key, value []byte) error {
	resp, err := c.roundTrip(ctx, wire.Request{Op: wire.OpPut, Key: key, Value: value})
	if err != nil {
		return err
	}
	if _, ok := resp.(wire.OkResponse); !ok {
		return fmt.Errorf("client: unexpected put reply %#v", resp)
	}
	return nil
}
