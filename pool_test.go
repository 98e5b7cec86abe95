package arcus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/computerphilosopher/arcus-c-client/internal/testutils"
	"github.com/computerphilosopher/arcus-c-client/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialer hands out connections over mocks answering with reply.
type mockDialer struct {
	mu    sync.Mutex
	reply string
	mocks []*testutils.ConnectionMock
	err   error
}

func (d *mockDialer) dial(ctx context.Context) (*Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	mock := testutils.NewConnectionMock(d.reply)
	d.mocks = append(d.mocks, mock)
	return NewConnection(mock, protocol.Text), nil
}

func (d *mockDialer) dialed() []*testutils.ConnectionMock {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*testutils.ConnectionMock(nil), d.mocks...)
}

func TestPooledTransport_RoundTrip(t *testing.T) {
	d := &mockDialer{reply: "VERSION 1.11.4\r\n"}
	pool, err := newPooledTransport(d.dial, 2)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Send(context.Background(), protocol.Text.EncodeVersionRequest()))
	frame, err := pool.Receive(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "VERSION 1.11.4\r\n", string(frame))

	stats := pool.Stats()
	assert.Equal(t, int32(1), stats.TotalConns)
	assert.Equal(t, int32(1), stats.IdleConns)
	assert.Equal(t, uint64(1), stats.CreatedConns)
	assert.Equal(t, uint64(1), stats.AcquireCount)
}

func TestPooledTransport_ReceiveWithoutSend(t *testing.T) {
	pool, err := newPooledTransport((&mockDialer{}).dial, 1)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Receive(context.Background())

	assert.ErrorIs(t, err, errNoPendingRequest)
	assert.True(t, protocol.IsConnectionError(err))
}

func TestPooledTransport_DestroysBrokenConnection(t *testing.T) {
	// the mock has no reply: Receive hits EOF
	d := &mockDialer{}
	pool, err := newPooledTransport(d.dial, 1)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Send(context.Background(), protocol.Text.EncodeVersionRequest()))
	_, err = pool.Receive(context.Background())
	require.True(t, protocol.IsConnectionError(err))

	require.Eventually(t, func() bool {
		return pool.Stats().DestroyedConns == 1 && d.dialed()[0].IsClosed()
	}, defaultEventuallyTimeout, defaultEventuallyTick)
}

func TestPooledTransport_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	pool, err := newPooledTransport((&mockDialer{err: dialErr}).dial, 1)
	require.NoError(t, err)
	defer pool.Close()

	err = pool.Send(context.Background(), protocol.Text.EncodeVersionRequest())

	var ce *protocol.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "acquire", ce.Op)
	assert.ErrorIs(t, err, dialErr)
}

func TestPooledTransport_SendTwiceDropsPending(t *testing.T) {
	d := &mockDialer{reply: "VERSION 1.11.4\r\n"}
	pool, err := newPooledTransport(d.dial, 2)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Send(context.Background(), protocol.Text.EncodeVersionRequest()))
	require.NoError(t, pool.Send(context.Background(), protocol.Text.EncodeVersionRequest()))
	frame, err := pool.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "VERSION 1.11.4\r\n", string(frame))

	require.Eventually(t, func() bool {
		return pool.Stats().DestroyedConns == 1
	}, defaultEventuallyTimeout, defaultEventuallyTick)
	assert.Equal(t, uint64(2), pool.Stats().CreatedConns)
}

func TestPooledTransport_Close(t *testing.T) {
	d := &mockDialer{reply: "VERSION 1.11.4\r\n"}
	pool, err := newPooledTransport(d.dial, 1)
	require.NoError(t, err)

	require.NoError(t, pool.Send(context.Background(), protocol.Text.EncodeVersionRequest()))
	_, err = pool.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())

	require.Eventually(t, func() bool {
		return d.dialed()[0].IsClosed()
	}, defaultEventuallyTimeout, defaultEventuallyTick)

	err = pool.Send(context.Background(), protocol.Text.EncodeVersionRequest())
	assert.True(t, protocol.IsConnectionError(err))
}
