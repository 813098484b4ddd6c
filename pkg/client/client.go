package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/danmuck/lw3/pkg/protocol"
	"github.com/danmuck/lw3/pkg/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Client runs LW3 operations over one connection.
type Client struct {
	tr   transport.Transport
	opts Options
	log  zerolog.Logger

	// slot admits one round trip at a time; waiters are served FIFO.
	slot *semaphore.Weighted
	// stale and broken are only touched while holding slot.
	stale  int
	broken error

	closed atomic.Bool
}

// New wraps an open transport. The client owns tr from here on.
func New(tr transport.Transport, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		tr:   tr,
		opts: opts,
		log:  opts.logger(),
		slot: semaphore.NewWeighted(1),
	}
}

// Dial connects to opts.Address over TCP.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	topts := opts.Transport
	if opts.Address != "" {
		topts.Address = withDefaultPort(opts.Address)
	}
	conn, err := transport.Dial(ctx, topts)
	if err != nil {
		return nil, err
	}
	c := New(conn, opts)
	c.log.Debug().Stringer("addr", conn.RemoteAddr()).Msg("connected")
	return c, nil
}

// WithConnection dials, runs fn and closes the connection on every exit path.
func WithConnection(ctx context.Context, opts Options, fn func(context.Context, *Client) error) (err error) {
	c, err := Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, c)
}

// Close closes the connection. In-flight and queued operations fail with
// ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.tr.Close()
}

// GetProperty reads the property at path.
func (c *Client) GetProperty(ctx context.Context, path string) (protocol.PropertyResponse, error) {
	res, err := c.do(ctx, protocol.Get(path))
	if err != nil {
		return protocol.PropertyResponse{}, err
	}
	return expectProperty(protocol.OpGet, path, res)
}

// SetProperty writes value to the property at path and returns the device's
// echo of the new value.
func (c *Client) SetProperty(ctx context.Context, path, value string) (protocol.PropertyResponse, error) {
	res, err := c.do(ctx, protocol.Set(path, value))
	if err != nil {
		return protocol.PropertyResponse{}, err
	}
	return expectProperty(protocol.OpSet, path, res)
}

// GetAll lists the children and properties of the node at path. A node with
// a single entry yields that Response; otherwise the result is a
// MultiResponse in device order.
func (c *Client) GetAll(ctx context.Context, path string) (protocol.Result, error) {
	return c.do(ctx, protocol.GetAll(path))
}

// Call invokes method on the node at path.
func (c *Client) Call(ctx context.Context, path, method string) (protocol.MethodResponse, error) {
	res, err := c.do(ctx, protocol.CallMethod(path, method))
	if err != nil {
		return protocol.MethodResponse{}, err
	}
	switch r := res.(type) {
	case protocol.MethodResponse:
		return r, nil
	case protocol.NodeResponse, protocol.PropertyResponse, protocol.ErrorResponse, protocol.MultiResponse:
	}
	return protocol.MethodResponse{}, mismatch(protocol.OpCall, path+":"+method, protocol.KindMethod, res)
}

func expectProperty(op protocol.Op, path string, res protocol.Result) (protocol.PropertyResponse, error) {
	switch r := res.(type) {
	case protocol.PropertyResponse:
		return r, nil
	case protocol.NodeResponse, protocol.MethodResponse, protocol.ErrorResponse, protocol.MultiResponse:
	}
	return protocol.PropertyResponse{}, mismatch(op, path, protocol.KindProperty, res)
}

func mismatch(op protocol.Op, path string, want protocol.Kind, got protocol.Result) error {
	return &MismatchError{Op: op, Path: path, Want: want, Got: protocol.Describe(got)}
}

// do runs one round trip for cmd under the operation timeout.
func (c *Client) do(ctx context.Context, cmd protocol.Command) (protocol.Result, error) {
	line, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	logger := c.log.With().
		Str("tx", uuid.NewString()).
		Str("op", string(cmd.Op)).
		Str("target", cmd.Target()).
		Logger()
	started := time.Now()

	if err := c.slot.Acquire(ctx, 1); err != nil {
		logger.Warn().Err(err).Msg("gave up waiting for connection")
		return nil, fmt.Errorf("%w: %s waiting for connection: %w", ErrTimeout, cmd, err)
	}
	defer c.slot.Release(1)
	// Acquire may succeed on an already finished context.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s waiting for connection: %w", ErrTimeout, cmd, err)
	}

	res, err := c.roundTrip(ctx, logger, cmd, line)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Dur("elapsed", time.Since(started)).
		Str("result", protocol.Describe(res)).
		Msg("round trip")
	return res, nil
}

// roundTrip must be called while holding slot.
func (c *Client) roundTrip(ctx context.Context, logger zerolog.Logger, cmd protocol.Command, line []byte) (protocol.Result, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.broken != nil {
		return nil, c.broken
	}
	if err := c.resync(ctx, logger); err != nil {
		return nil, err
	}

	if err := c.tr.Write(ctx, line); err != nil {
		return nil, c.ioErr(ctx, logger, cmd, "writing command", err)
	}
	raw, err := protocol.ReadFrame(ctx, c.tr, c.opts.MaxFrameBytes)
	if err != nil {
		return nil, c.ioErr(ctx, logger, cmd, "reading response", err)
	}

	res, err := protocol.ParseFrame(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("unparseable response")
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if err := protocol.Err(res); err != nil {
		logger.Debug().Err(err).Msg("device reported error")
		return nil, err
	}
	return res, nil
}

// resync discards replies to round trips that timed out after their command
// went out. Each stale frame gets DrainTimeout, but never less than
// minDrainWindow, to show up.
func (c *Client) resync(ctx context.Context, logger zerolog.Logger) error {
	window := max(c.opts.DrainTimeout, minDrainWindow)
	for c.stale > 0 {
		dctx, cancel := context.WithTimeout(ctx, window)
		raw, err := protocol.ReadFrame(dctx, c.tr, c.opts.MaxFrameBytes)
		cancel()
		switch {
		case err == nil:
			c.stale--
			logger.Debug().Str("frame", raw).Int("stale", c.stale).Msg("discarded stale frame")
		case ctx.Err() != nil:
			return fmt.Errorf("%w: draining stale frame: %w", ErrTimeout, ctx.Err())
		case isTimeout(dctx, err):
			logger.Warn().Int("stale", c.stale).Msg("stale frame never arrived, resuming")
			c.stale = 0
		default:
			return c.ioErr(ctx, logger, protocol.Command{}, "draining stale frame", err)
		}
	}
	return nil
}

// ioErr classifies a transport failure. Timeouts leave a reply in flight;
// anything else except Close breaks the connection for good.
func (c *Client) ioErr(ctx context.Context, logger zerolog.Logger, cmd protocol.Command, stage string, err error) error {
	switch {
	case c.closed.Load() || errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %s", ErrClosed, stage)
	case isTimeout(ctx, err):
		c.stale++
		logger.Warn().Str("stage", stage).Int("stale", c.stale).Msg("round trip timed out")
		return fmt.Errorf("%w: %s %s: %w", ErrTimeout, cmd, stage, err)
	default:
		c.broken = fmt.Errorf("%w: %w", ErrConnectionLost, err)
		logger.Error().Err(err).Str("stage", stage).Msg("connection lost")
		return c.broken
	}
}

func isTimeout(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
