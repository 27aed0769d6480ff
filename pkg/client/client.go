package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
)

// DefaultTimeout bounds a call when the context carries no deadline.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("client: closed")

// ResponseError is an error reported by kraken in a reply.
type ResponseError struct {
	Kind    domain.ErrorKind
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per call timeout used when the context has no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDeadlinePropagation forwards the context deadline as the request
// deadline, so kraken drops requests the caller gave up on.
func WithDeadlinePropagation() Option {
	return func(c *Client) { c.propagate = true }
}

// Client talks to a kraken broker.
type Client struct {
	timeout   time.Duration
	propagate bool

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// Dial connects to the broker at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{
		timeout: DefaultTimeout,
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Do sends req and waits for the reply. A request without id gets a ULID.
// The returned response is nil only when err is not a *ResponseError.
func (c *Client) Do(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if req.RequestID == "" {
		req.RequestID = ulid.Make().String()
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if c.propagate && req.Deadline == "" {
		req.Deadline = deadline.UTC().Format(time.RFC3339Nano)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reply, err := c.roundTrip(ctx, deadline, payload)
	if err != nil {
		return nil, err
	}

	var resp domain.Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return &resp, &ResponseError{Kind: resp.Error.Kind, Message: resp.Error.Message}
	}
	return &resp, nil
}

func (c *Client) roundTrip(ctx context.Context, deadline time.Time, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrClosed
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := broker.WriteMessage(c.w, [][]byte{{}, payload}); err != nil {
		return nil, c.fail(ctx, fmt.Errorf("send: %w", err))
	}
	if err := c.w.Flush(); err != nil {
		return nil, c.fail(ctx, fmt.Errorf("send: %w", err))
	}
	frames, err := broker.ReadMessage(c.r)
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("receive: %w", err))
	}
	if len(frames) == 0 {
		return nil, c.fail(ctx, fmt.Errorf("receive: %w: empty reply", broker.ErrProtocol))
	}
	return frames[len(frames)-1], nil
}

// fail drops the connection: a reply may still be in flight and would be
// read as the answer to the next request. Caller holds c.mu.
func (c *Client) fail(ctx context.Context, err error) error {
	c.conn.Close()
	c.conn = nil
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Journeys searches journeys.
func (c *Client) Journeys(ctx context.Context, r *domain.JourneysRequest) (*domain.Response, error) {
	return c.Do(ctx, &domain.Request{API: domain.APIJourneys, Journeys: r})
}

// Isochrone computes the best reachable time at every stop point.
func (c *Client) Isochrone(ctx context.Context, r *domain.IsochroneRequest) (*domain.Response, error) {
	return c.Do(ctx, &domain.Request{API: domain.APIIsochrone, Isochrone: r})
}

// PlacesNearby lists the stop points around a coordinate.
func (c *Client) PlacesNearby(ctx context.Context, r *domain.PlacesNearbyRequest) (*domain.Response, error) {
	return c.Do(ctx, &domain.Request{API: domain.APIPlacesNearby, PlacesNearby: r})
}

// Metadata describes the served data.
func (c *Client) Metadata(ctx context.Context) (*domain.Response, error) {
	return c.Do(ctx, &domain.Request{API: domain.APIMetadata})
}

// Status reports the serving state of the worker that answered.
func (c *Client) Status(ctx context.Context) (*domain.Response, error) {
	return c.Do(ctx, &domain.Request{API: domain.APIStatus})
}
