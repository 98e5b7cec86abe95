package arcus

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/computerphilosopher/arcus-c-client/protocol"
)

var ErrConnectionClosed = errors.New("arcus: connection closed")

// Connection is a Transport over a single net.Conn. Responses are framed
// by the codec of the server's protocol.
type Connection struct {
	conn     net.Conn
	reader   *bufio.Reader
	codec    protocol.Codec
	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

var _ Transport = (*Connection)(nil)

// NewConnection wraps conn. codec selects the response framing.
func NewConnection(conn net.Conn, codec protocol.Codec) *Connection {
	return &Connection{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		codec:    codec,
		lastUsed: time.Now(),
	}
}

// DialConnection opens a TCP connection to addr.
func DialConnection(ctx context.Context, dialer *net.Dialer, addr string, codec protocol.Codec) (*Connection, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &protocol.ConnectionError{Op: "dial", Err: err}
	}
	return NewConnection(netConn, codec), nil
}

// Send writes p to the connection.
func (c *Connection) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return &protocol.ConnectionError{Op: "write", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &protocol.ConnectionError{Op: "write", Err: ErrConnectionClosed}
	}

	c.setDeadline(ctx)

	if _, err := c.conn.Write(p); err != nil {
		c.markClosed()
		return &protocol.ConnectionError{Op: "write", Err: contextError(ctx, err)}
	}

	c.lastUsed = time.Now()
	return nil
}

// Receive reads one response frame.
func (c *Connection) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &protocol.ConnectionError{Op: "read", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &protocol.ConnectionError{Op: "read", Err: ErrConnectionClosed}
	}

	c.setDeadline(ctx)

	frame, err := c.codec.ReadFrame(c.reader)
	if err != nil {
		// the stream position is lost either way
		c.markClosed()

		var pe *protocol.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &protocol.ConnectionError{Op: "read", Err: contextError(ctx, err)}
	}

	c.lastUsed = time.Now()
	return frame, nil
}

// contextError reports a deadline set from ctx as the context error, so
// callers can tell the caller's timeout from a broken server.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			return context.DeadlineExceeded
		}
	}
	return err
}

// setDeadline applies the context deadline, or clears it (must be called with lock held)
func (c *Connection) setDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

// LastUsed returns when the connection last completed a send or receive
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// IsClosed returns whether the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection. Closing a connection already closed after an
// I/O error is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// markClosed closes the socket after a stream error (must be called with lock held)
func (c *Connection) markClosed() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
