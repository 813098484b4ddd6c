// Package transport provides the byte stream the LW3 client runs over.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

var (
	ErrEndOfStream = errors.New("transport: end of stream")
	ErrBufferFull  = errors.New("transport: read buffer limit exceeded")
	ErrNilConn     = errors.New("transport: nil connection")
	errMissingAddr = errors.New("transport: missing address")
	aLongTimeAgo   = time.Unix(1, 0)
	noDeadline     = time.Time{}
)

// Transport is the stream contract the client consumes.
type Transport interface {
	Write(ctx context.Context, p []byte) error
	// ReadUntil returns everything up to and including delim. Bytes read
	// before a failure stay buffered for the next call.
	ReadUntil(ctx context.Context, delim []byte) ([]byte, error)
	Close() error
}

// Options configures a TCP connection.
type Options struct {
	Address     string
	DialTimeout time.Duration
	BufferSize  int
	// MaxBuffered caps bytes held while searching for a delimiter.
	MaxBuffered int
	KeepAlive   time.Duration
}

// DefaultOptions returns default connection options.
func DefaultOptions(address string) Options {
	return Options{
		Address:     address,
		DialTimeout: 5 * time.Second,
		BufferSize:  4096,
		MaxBuffered: 4 << 20,
		KeepAlive:   30 * time.Second,
	}
}

// Conn is a Transport over a net.Conn.
type Conn struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	chunk       []byte
	pending     []byte
	maxBuffered int

	mu     sync.Mutex
	closed bool
}

// Dial opens a TCP connection to opts.Address.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.Address == "" {
		return nil, errMissingAddr
	}
	d := net.Dialer{Timeout: opts.DialTimeout, KeepAlive: opts.KeepAlive}
	conn, err := d.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return NewConn(conn, opts)
}

// NewConn wraps an established stream.
func NewConn(conn net.Conn, opts Options) (*Conn, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	size := opts.BufferSize
	if size <= 0 {
		size = 4096
	}
	return &Conn{
		conn:        conn,
		reader:      bufio.NewReaderSize(conn, size),
		writer:      bufio.NewWriterSize(conn, size),
		chunk:       make([]byte, size),
		maxBuffered: opts.MaxBuffered,
	}, nil
}

// Write sends p and flushes. Cancelling ctx aborts a blocked write.
func (c *Conn) Write(ctx context.Context, p []byte) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	stop, err := c.watch(ctx, c.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	_, werr := c.writer.Write(p)
	if werr == nil {
		werr = c.writer.Flush()
	}
	serr := stop()
	if werr == nil {
		return nil
	}
	if serr != nil {
		c.writer.Reset(c.conn)
		return serr
	}
	return c.mapErr(werr)
}

// ReadUntil reads until delim is seen. A cancelled read keeps what it has
// already received in the pending buffer.
func (c *Conn) ReadUntil(ctx context.Context, delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, errors.New("transport: empty delimiter")
	}
	if out, ok := c.take(delim); ok {
		return out, nil
	}
	if c.isClosed() {
		return nil, net.ErrClosed
	}
	stop, err := c.watch(ctx, c.conn.SetReadDeadline)
	if err != nil {
		return nil, err
	}
	for {
		n, rerr := c.reader.Read(c.chunk)
		c.pending = append(c.pending, c.chunk[:n]...)
		if out, ok := c.take(delim); ok {
			// A delimiter that arrived as the context fired still counts.
			_ = stop()
			return out, nil
		}
		if c.maxBuffered > 0 && len(c.pending) > c.maxBuffered {
			_ = stop()
			return nil, fmt.Errorf("%w: %d bytes without %q", ErrBufferFull, len(c.pending), delim)
		}
		if rerr != nil {
			if err := stop(); err != nil {
				return nil, err
			}
			return nil, c.mapErr(rerr)
		}
	}
}

// Buffered reports how many received bytes are waiting to be consumed.
func (c *Conn) Buffered() int {
	return len(c.pending) + c.reader.Buffered()
}

// Close closes the connection and unblocks pending I/O.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RemoteAddr reports the device end of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) take(delim []byte) ([]byte, bool) {
	i := bytes.Index(c.pending, delim)
	if i < 0 {
		return nil, false
	}
	end := i + len(delim)
	out := make([]byte, end)
	copy(out, c.pending[:end])
	c.pending = append(c.pending[:0], c.pending[end:]...)
	return out, true
}

// watch arranges for ctx ending to push the deadline set by set into the
// past, which fails the blocked call. The returned stop clears the deadline
// and reports ctx's error if the context ended the operation.
func (c *Conn) watch(ctx context.Context, set func(time.Time) error) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fired := make(chan struct{})
	after := context.AfterFunc(ctx, func() {
		_ = set(aLongTimeAgo)
		close(fired)
	})
	return func() error {
		if !after() {
			<-fired
			_ = set(noDeadline)
			return ctx.Err()
		}
		_ = set(noDeadline)
		return nil
	}, nil
}

func (c *Conn) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrEndOfStream, err)
	case c.isClosed() && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)):
		return net.ErrClosed
	default:
		return err
	}
}
