package arcus

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/computerphilosopher/arcus-c-client/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// puddle destroys resources in the background
const (
	defaultEventuallyTimeout = time.Second
	defaultEventuallyTick    = 10 * time.Millisecond
)

// fakeTransport answers version requests with pre-configured frames.
type fakeTransport struct {
	mu         sync.Mutex
	frames     [][]byte
	sendErr    error
	receiveErr error
	sent       [][]byte
	receives   int
	closed     bool

	// delay is applied to every Send; inFlight/maxInFlight track overlap
	delay       time.Duration
	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
}

func newFakeTransport(frames ...[]byte) *fakeTransport {
	return &fakeTransport{frames: frames}
}

func (t *fakeTransport) Send(ctx context.Context, p []byte) error {
	if t.inFlight != nil {
		n := t.inFlight.Add(1)
		defer t.inFlight.Add(-1)
		for {
			peak := t.maxInFlight.Load()
			if n <= peak || t.maxInFlight.CompareAndSwap(peak, n) {
				break
			}
		}
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sent = append(t.sent, bytes.Clone(p))
	return t.sendErr
}

func (t *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.receives++
	if t.receiveErr != nil {
		return nil, t.receiveErr
	}
	if len(t.frames) == 0 {
		return nil, &protocol.ConnectionError{Op: "read", Err: io.EOF}
	}

	frame := t.frames[0]
	t.frames = t.frames[1:]
	return frame, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// calls returns the number of Send and Receive calls
func (t *fakeTransport) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent) + t.receives
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func textReply(version string) []byte {
	return []byte("VERSION " + version + "\r\n")
}

func binaryReply(version string) []byte {
	return protocol.EncodeVersionResponse(protocol.StatusSuccess, version)
}

func newTestServer(addr string, mode TransportMode, frames ...[]byte) (*Server, *fakeTransport) {
	transport := newFakeTransport(frames...)
	return NewServer(ServerConfig{Addr: addr, Mode: mode, Transport: transport}), transport
}

func newTestNegotiator(config NegotiatorConfig) *Negotiator {
	config.Logger = discardLogger
	return NewNegotiator(config)
}

func assertKnown(t testing.TB, s *Server, expected protocol.Version, enterprise bool) {
	t.Helper()
	v := s.Version()
	require.Equal(t, StateKnown, v.State, "server %s should be known", s.Addr())
	assert.Equal(t, expected, v.Version)
	assert.Equal(t, enterprise, v.Enterprise)
}

func assertUnavailable(t testing.TB, s *Server) {
	t.Helper()
	assert.Equal(t, ServerVersion{State: StateUnavailable}, s.Version(), "server %s should be unavailable", s.Addr())
}
