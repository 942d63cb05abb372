// Package transport owns the byte-stream connection to the game device.
//
// The connection state lives here and is exposed as a read-only snapshot;
// transitions are explicit and published on the event bus, never kept in
// a shared global. One reader goroutine drains the socket and feeds the
// assembler; it only enqueues downstream and never blocks on user input.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/okian/naja/internal/adapters/capture"
	"github.com/okian/naja/internal/adapters/events"
	"github.com/okian/naja/internal/domain/framing"
	"github.com/okian/naja/pkg/logger"
	"github.com/okian/naja/pkg/metrics"
)

// Default transport configuration constants.
const (
	defaultDialTimeout = 10 * time.Second
	defaultReadBuffer  = 1024
)

// State is the connection lifecycle state.
type State int

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// FrameSink receives assembled frames from the reader goroutine.
type FrameSink interface {
	Offer(ctx context.Context, frame string)
}

// Conn manages one connection to the device.
type Conn struct {
	mu    sync.RWMutex
	state State

	addr        string
	dialTimeout time.Duration
	readBuffer  int

	assembler *framing.Assembler
	frames    FrameSink
	bus       *events.Bus
	journal   *capture.Journal

	logger logger.Logger
}

// Option applies a configuration option to the Conn.
type Option func(*Conn)

// WithDialTimeout sets the dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithReadBuffer sets the read chunk size.
func WithReadBuffer(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.readBuffer = n
		}
	}
}

// WithJournal attaches a capture journal recording every assembled frame.
func WithJournal(j *capture.Journal) Option {
	return func(c *Conn) {
		c.journal = j
	}
}

// WithLogger sets a custom logger for the connection.
func WithLogger(l logger.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a connection component. The frame sink and event bus are
// passed at construction; their lifecycle is owned by the caller.
func New(addr string, assembler *framing.Assembler, frames FrameSink, bus *events.Bus, opts ...Option) *Conn {
	c := &Conn{
		state:       StateIdle,
		addr:        addr,
		dialTimeout: defaultDialTimeout,
		readBuffer:  defaultReadBuffer,
		assembler:   assembler,
		frames:      frames,
		bus:         bus,
		logger:      logger.Get().Named("transport"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns a snapshot of the connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// setState transitions the state and publishes the change.
func (c *Conn) setState(ctx context.Context, s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	metrics.UpdateConnState(int(s))
	c.bus.Publish(ctx, events.Event{Kind: events.KindConnState, State: s.String()})
	c.logger.Info(ctx, "connection state changed", logger.String("state", s.String()))
}

// Run dials the device and drains the stream until the context is
// cancelled or the peer disconnects. It returns nil on context cancel and
// the read/dial error otherwise.
func (c *Conn) Run(ctx context.Context) error {
	c.setState(ctx, StateConnecting)

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.setState(ctx, StateDisconnected)
		c.setState(ctx, StateIdle)
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}

	c.setState(ctx, StateConnected)

	// A cancelled context unblocks the read by closing the socket.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	// A stale partial frame from a previous session cannot belong to this
	// stream.
	c.assembler.Reset()

	err = c.readLoop(ctx, conn)

	c.setState(ctx, StateDisconnected)
	c.setState(ctx, StateIdle)

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readLoop drains the socket, assembling and forwarding frames.
func (c *Conn) readLoop(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, c.readBuffer)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			metrics.RecordBytesReceived(n)
			for _, frame := range c.assembler.Ingest(buf[:n]) {
				if c.journal != nil {
					if jerr := c.journal.Write(frame); jerr != nil && !errors.Is(jerr, capture.ErrClosed) {
						c.logger.Warn(ctx, "capture journal write failed", logger.Error(jerr))
					}
				}
				c.frames.Offer(ctx, frame)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", c.addr, err)
		}
	}
}
