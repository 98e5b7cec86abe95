package arcus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/computerphilosopher/arcus-c-client/protocol"
	"github.com/jackc/puddle/v2"
)

// DefaultMaxConnsPerServer is the pool size used when Config.MaxConnsPerServer is zero.
const DefaultMaxConnsPerServer = 2

// PoolStats contains statistics about a server's connection pool.
type PoolStats struct {
	TotalConns     int32  // Total connections in pool (active + idle)
	IdleConns      int32  // Idle connections available
	AcquireCount   uint64 // Total acquire attempts
	CreatedConns   uint64 // Total connections created
	DestroyedConns uint64 // Total connections destroyed
}

// pooledTransport is a Transport backed by a puddle pool of connections.
//
// The version exchange is strictly request/response: Send acquires a
// connection and keeps it until the matching Receive releases it.
type pooledTransport struct {
	pool           *puddle.Pool[*Connection]
	createdConns   atomic.Int64
	destroyedConns atomic.Int64

	mu   sync.Mutex
	held *puddle.Resource[*Connection] // connection waiting for a response
}

var _ Transport = (*pooledTransport)(nil)

// newPooledTransport creates a pool of at most maxSize connections built by constructor.
func newPooledTransport(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (*pooledTransport, error) {
	t := &pooledTransport{}

	pool, err := puddle.NewPool(&puddle.Config[*Connection]{
		Constructor: func(ctx context.Context) (*Connection, error) {
			conn, err := constructor(ctx)
			if err == nil {
				t.createdConns.Add(1)
			}
			return conn, err
		},
		Destructor: func(c *Connection) {
			t.destroyedConns.Add(1)
			_ = c.Close()
		},
		MaxSize: maxSize,
	})
	if err != nil {
		return nil, err
	}

	t.pool = pool
	return t, nil
}

func (t *pooledTransport) Send(ctx context.Context, p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// an unanswered request leaves a response in flight on that connection
	if t.held != nil {
		t.held.Destroy()
		t.held = nil
	}

	res, err := t.pool.Acquire(ctx)
	if err != nil {
		return &protocol.ConnectionError{Op: "acquire", Err: err}
	}

	if err := res.Value().Send(ctx, p); err != nil {
		res.Destroy()
		return err
	}

	t.held = res
	return nil
}

func (t *pooledTransport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.held
	t.held = nil
	if res == nil {
		return nil, &protocol.ConnectionError{Op: "read", Err: errNoPendingRequest}
	}

	frame, err := res.Value().Receive(ctx)
	if err != nil {
		if protocol.ShouldCloseConnection(err) {
			res.Destroy()
		} else {
			res.Release()
		}
		return nil, err
	}

	res.Release()
	return frame, nil
}

// Close destroys every connection of the pool.
func (t *pooledTransport) Close() error {
	t.mu.Lock()
	if t.held != nil {
		t.held.Destroy()
		t.held = nil
	}
	t.mu.Unlock()

	t.pool.Close()
	return nil
}

// Stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (t *pooledTransport) Stats() PoolStats {
	s := t.pool.Stat()

	return PoolStats{
		TotalConns:     s.TotalResources(),
		IdleConns:      s.IdleResources(),
		AcquireCount:   uint64(s.AcquireCount()),
		CreatedConns:   uint64(t.createdConns.Load()),
		DestroyedConns: uint64(t.destroyedConns.Load()),
	}
}
