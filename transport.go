package arcus

import (
	"context"
	"errors"
)

var errNoPendingRequest = errors.New("arcus: receive without a pending request")

// Transport is the byte channel to a single server.
//
// Send writes one request. Receive returns the next framed response, as
// read by the server's protocol codec. Both fail with a
// *protocol.ConnectionError when the channel is broken.
type Transport interface {
	Send(ctx context.Context, p []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
