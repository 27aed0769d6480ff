package broker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
)

// Ready is the control frame a worker sends when it starts.
var Ready = []byte("READY")

// Config holds the broker configuration.
type Config struct {
	// Address is the external TCP endpoint.
	Address string
	// WriteTimeout bounds writing one reply to a client (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout closes client connections without traffic (default: 5m).
	IdleTimeout time.Duration
	// ReplyQueue is the number of replies waiting to be written to one
	// client; a client whose queue is full is disconnected (default: 16).
	ReplyQueue int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:      "127.0.0.1:5555",
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		ReplyQueue:   16,
	}
}

// WorkerFunc runs one worker until ctx is done.
type WorkerFunc func(ctx context.Context, ep *Endpoint)

// backendMsg is a worker message on the internal endpoint.
type backendMsg struct {
	worker int
	frames [][]byte
}

// Broker is the load-balancing proxy between client connections and a
// fixed pool of workers.
type Broker struct {
	cfg     Config
	workers []WorkerFunc
	log     logger.Logger
	metrics *metric.Registry

	frontend chan [][]byte
	backend  chan backendMsg
	eps      []*Endpoint
	conns    *xsync.Map[string, *clientConn]

	addr  atomic.Pointer[net.Addr]
	bound chan struct{}
	wg    sync.WaitGroup
}

// New returns a broker serving the given workers.
func New(cfg Config, workers []WorkerFunc, log logger.Logger, metrics *metric.Registry) *Broker {
	d := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = d.IdleTimeout
	}
	if cfg.ReplyQueue <= 0 {
		cfg.ReplyQueue = d.ReplyQueue
	}
	if log == nil {
		log = logger.Discard()
	}
	b := &Broker{
		cfg:      cfg,
		workers:  workers,
		log:      log.With("component", "broker"),
		metrics:  metrics,
		frontend: make(chan [][]byte),
		backend:  make(chan backendMsg),
		conns:    xsync.NewMap[string, *clientConn](),
		bound:    make(chan struct{}),
	}
	for i := range workers {
		b.eps = append(b.eps, &Endpoint{id: i, in: make(chan [][]byte, 1), out: b.backend})
	}
	return b
}

// Addr returns the bound address, or nil before Bound is closed.
func (b *Broker) Addr() net.Addr {
	if a := b.addr.Load(); a != nil {
		return *a
	}
	return nil
}

// Bound is closed once the external endpoint is listening.
func (b *Broker) Bound() <-chan struct{} {
	return b.bound
}

// Serve starts the workers, binds the external endpoint and proxies
// messages until ctx is done. A bind failure stops the workers and is
// returned.
func (b *Broker) Serve(ctx context.Context) error {
	wctx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	for i, run := range b.workers {
		workers.Add(1)
		go func(ep *Endpoint) {
			defer workers.Done()
			run(wctx, ep)
		}(b.eps[i])
	}

	ln, err := net.Listen("tcp", b.cfg.Address)
	if err != nil {
		stopWorkers()
		workers.Wait()
		return fmt.Errorf("bind %s: %w", b.cfg.Address, err)
	}
	addr := ln.Addr()
	b.addr.Store(&addr)
	close(b.bound)
	b.log.Info("broker listening", "address", addr.String(), "workers", len(b.workers))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.acceptLoop(ctx, ln)
	}()

	b.proxy(ctx)

	_ = ln.Close()
	b.conns.Range(func(_ string, c *clientConn) bool {
		_ = c.Close()
		return true
	})
	stopWorkers()
	workers.Wait()
	b.wg.Wait()
	return nil
}

// proxy hands client messages to idle workers in FIFO order and routes
// replies back. Client input is only consumed while a worker is idle.
func (b *Broker) proxy(ctx context.Context) {
	var idle []int
	for {
		var frontend chan [][]byte
		if len(idle) > 0 {
			frontend = b.frontend
		}
		b.setIdle(len(idle))

		select {
		case <-ctx.Done():
			return
		case m := <-b.backend:
			idle = append(idle, m.worker)
			if len(m.frames) == 1 && bytes.Equal(m.frames[0], Ready) {
				continue
			}
			b.route(m.frames)
		case frames := <-frontend:
			w := idle[0]
			idle = idle[1:]
			b.eps[w].in <- frames
		}
	}
}

// route queues a worker reply for the client its first frame names. It
// never blocks: the connection's writer does the I/O.
func (b *Broker) route(frames [][]byte) {
	if len(frames) < 2 {
		b.log.Warn("dropping reply without routing", "frames", len(frames))
		return
	}
	id := string(frames[0])
	c, ok := b.conns.Load(id)
	if !ok {
		b.log.Debug("dropping reply for closed connection", "conn", id)
		return
	}
	if !c.enqueue(frames[1:]) {
		b.log.Warn("reply queue full, closing connection", "conn", id, "remote", c.nc.RemoteAddr())
		_ = c.Close()
	}
}

func (b *Broker) setIdle(n int) {
	if b.metrics != nil {
		b.metrics.IdleWorkers.Set(float64(n))
	}
}

func (b *Broker) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			b.log.Warn("accept failed", "error", err)
			continue
		}
		c := newClientConn(nc, b.cfg.ReplyQueue)
		b.conns.Store(c.id, c)
		b.wg.Add(2)
		go func() {
			defer b.wg.Done()
			b.writeLoop(c)
		}()
		go func() {
			defer b.wg.Done()
			defer b.conns.Delete(c.id)
			defer c.Close()
			b.serveConn(ctx, c)
		}()
	}
}

// serveConn reads client messages and queues them on the frontend with
// the connection identity prepended.
func (b *Broker) serveConn(ctx context.Context, c *clientConn) {
	for {
		if err := c.nc.SetReadDeadline(time.Now().Add(b.cfg.IdleTimeout)); err != nil {
			return
		}
		frames, err := ReadMessage(c.br)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &netErr) && netErr.Timeout():
				b.log.Debug("connection timed out", "conn", c.id, "remote", c.nc.RemoteAddr())
			case errors.Is(err, ErrLimitExceeded):
				b.log.Warn("protocol limit exceeded", "conn", c.id, "remote", c.nc.RemoteAddr(), "error", err)
			default:
				b.log.Debug("connection read error", "conn", c.id, "error", err)
			}
			return
		}
		// An empty message still goes to a worker, which answers it with a
		// framing error on the connection identity.
		msg := make([][]byte, 0, len(frames)+1)
		msg = append(msg, []byte(c.id))
		msg = append(msg, frames...)
		select {
		case b.frontend <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop writes the queued replies of c until it is closed.
func (b *Broker) writeLoop(c *clientConn) {
	for {
		select {
		case <-c.done:
			return
		case frames := <-c.out:
			if err := c.write(frames, b.cfg.WriteTimeout); err != nil {
				b.log.Debug("reply write failed", "conn", c.id, "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

type clientConn struct {
	id string
	nc net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	// out is drained by the connection's writer goroutine only.
	out    chan [][]byte
	done   chan struct{}
	closed atomic.Bool
}

func newClientConn(nc net.Conn, queue int) *clientConn {
	return &clientConn{
		id:   ulid.Make().String(),
		nc:   nc,
		br:   bufio.NewReader(nc),
		bw:   bufio.NewWriter(nc),
		out:  make(chan [][]byte, queue),
		done: make(chan struct{}),
	}
}

// enqueue reports whether the reply fit in the queue.
func (c *clientConn) enqueue(frames [][]byte) bool {
	select {
	case c.out <- frames:
		return true
	default:
		return false
	}
}

func (c *clientConn) write(frames [][]byte, timeout time.Duration) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := WriteMessage(c.bw, frames); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *clientConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	return c.nc.Close()
}

// Endpoint is a worker's side of the internal endpoint. A worker sends
// Ready once, then alternates Recv and Send.
type Endpoint struct {
	id  int
	in  chan [][]byte
	out chan<- backendMsg
}

// ID returns the worker number.
func (e *Endpoint) ID() int { return e.id }

// Ready announces the worker as available.
func (e *Endpoint) Ready(ctx context.Context) error {
	return e.Send(ctx, [][]byte{Ready})
}

// Recv blocks until the broker hands over a message.
func (e *Endpoint) Recv(ctx context.Context) ([][]byte, error) {
	select {
	case m := <-e.in:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send returns a reply to the broker, which also marks the worker
// available again.
func (e *Endpoint) Send(ctx context.Context, frames [][]byte) error {
	select {
	case e.out <- backendMsg{worker: e.id, frames: frames}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
