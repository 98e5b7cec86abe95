package arcus

import (
	"context"
	"errors"
	"time"

	"github.com/computerphilosopher/arcus-c-client/protocol"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the version round trip with one server.
// *gobreaker.CircuitBreaker[[]byte] satisfies it.
type CircuitBreaker interface {
	Execute(req func() ([]byte, error)) ([]byte, error)
	State() gobreaker.State
}

var _ CircuitBreaker = (*gobreaker.CircuitBreaker[[]byte])(nil)

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// Only connection errors count as failures: a malformed reply proves the server
// is reachable, and a cancelled or expired caller context says nothing about it.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return true
				}
				return !protocol.IsConnectionError(err)
			},
		}
		return gobreaker.NewCircuitBreaker[[]byte](settings)
	}
}
