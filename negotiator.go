package arcus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/computerphilosopher/arcus-c-client/protocol"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds the number of servers negotiated in parallel.
const DefaultMaxConcurrency = 8

var (
	// ErrNotSupported is returned when the transport cannot carry a response
	// (UDP, noreply). The caller must skip capability-gated optimizations.
	ErrNotSupported = errors.New("arcus: version negotiation not supported by transport")

	ErrNoTransport = errors.New("arcus: server has no transport")

	// ErrServerRemoved is returned for a server that left the topology
	// after a fleet pass took its server list.
	ErrServerRemoved = errors.New("arcus: server removed from topology")
)

// Outcome is the result of negotiating one server.
type Outcome int

const (
	// OutcomeSucceeded: the server answered. Its state is known, or
	// unavailable when it reported no version.
	OutcomeSucceeded Outcome = iota
	// OutcomeFailed: transport, parse or range failure. The state is unavailable.
	OutcomeFailed
	// OutcomeNotSupported: no response path. The state is untouched.
	OutcomeNotSupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeNotSupported:
		return "not_supported"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// FleetStatus is the folded result of a fleet pass.
type FleetStatus int

const (
	// FleetSucceeded: every server negotiation succeeded.
	FleetSucceeded FleetStatus = iota
	// FleetPartialFailure: at least one server failed or was not supported.
	FleetPartialFailure
	// FleetNotSupported: the fleet has no response path. No server was touched.
	FleetNotSupported
)

func (s FleetStatus) String() string {
	switch s {
	case FleetSucceeded:
		return "succeeded"
	case FleetPartialFailure:
		return "partial_failure"
	case FleetNotSupported:
		return "not_supported"
	default:
		return fmt.Sprintf("FleetStatus(%d)", int(s))
	}
}

// InstanceFailure is a server whose negotiation failed.
type InstanceFailure struct {
	Addr string
	Err  error
}

// FleetResult is the outcome of NegotiateAll.
type FleetResult struct {
	Status      FleetStatus
	Failures    []InstanceFailure
	Unsupported []string // servers without a response path
}

// Err returns nil when the pass succeeded, ErrNotSupported when the fleet
// cannot negotiate, and otherwise one error per failed or unsupported server.
func (r FleetResult) Err() error {
	switch r.Status {
	case FleetSucceeded:
		return nil
	case FleetNotSupported:
		return ErrNotSupported
	}

	errs := make([]error, 0, len(r.Failures)+len(r.Unsupported))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Addr, f.Err))
	}
	for _, addr := range r.Unsupported {
		errs = append(errs, fmt.Errorf("%s: %w", addr, ErrNotSupported))
	}
	return errors.Join(errs...)
}

// FailedAddrs returns the addresses of the failed servers.
func (r FleetResult) FailedAddrs() []string {
	addrs := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		addrs[i] = f.Addr
	}
	return addrs
}

// NegotiatorConfig holds the fleet-wide settings of a Negotiator.
type NegotiatorConfig struct {
	// NoReply disables responses on every connection of the fleet.
	NoReply bool

	// UseUDP selects UDP transports, which have no response path.
	UseUDP bool

	// MaxConcurrency bounds parallel negotiations in NegotiateAll.
	// Zero or negative means DefaultMaxConcurrency.
	MaxConcurrency int

	// Logger receives negotiation events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Negotiator queries server versions and derives their capabilities.
type Negotiator struct {
	noReply        bool
	useUDP         bool
	maxConcurrency int
	logger         *slog.Logger

	stats negotiationStatsCollector
}

// NewNegotiator creates a Negotiator with the given settings.
func NewNegotiator(config NegotiatorConfig) *Negotiator {
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Negotiator{
		noReply:        config.NoReply,
		useUDP:         config.UseUDP,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// Stats returns a snapshot of negotiation statistics.
func (n *Negotiator) Stats() NegotiationStats {
	return n.stats.snapshot()
}

// noResponsePath reports the fleet-wide precondition that makes every negotiation impossible.
func (n *Negotiator) noResponsePath() bool {
	return n.noReply || n.useUDP
}

// Negotiate queries the server version once and records the result on s.
//
// A server already known or unavailable is not queried again; the outcome
// of the attempt that set its state is returned. The returned error is nil
// on OutcomeSucceeded, ErrNotSupported on OutcomeNotSupported and the
// failure cause on OutcomeFailed.
func (n *Negotiator) Negotiate(ctx context.Context, s *Server) (Outcome, error) {
	if n.noResponsePath() || !s.supportsResponse {
		n.stats.recordNotSupported()
		return OutcomeNotSupported, ErrNotSupported
	}

	// held across the exchange so concurrent callers never duplicate it
	s.negotiateMu.Lock()
	defer s.negotiateMu.Unlock()

	if s.retired {
		return OutcomeFailed, ErrServerRemoved
	}

	if version, outcome, err := s.snapshot(); version.State != StateUnknown {
		n.stats.recordCached()
		return outcome, err
	}

	reply, err := n.exchange(ctx, s)
	if err != nil {
		return n.fail(s, err)
	}

	if reply.Unknown {
		s.setUnavailable(OutcomeSucceeded, nil)
		n.stats.recordUnknown()
		n.logger.Info("arcus: server reported no version", "addr", s.addr)
		return OutcomeSucceeded, nil
	}

	v, err := protocol.ParseVersion(reply.Text)
	if err != nil {
		return n.fail(s, err)
	}

	s.setKnown(v, reply.Enterprise)
	n.stats.recordKnown()
	n.logger.Debug("arcus: negotiated server version",
		"addr", s.addr,
		"version", v.String(),
		"enterprise", reply.Enterprise,
		"optimized_mget", s.OptimizedMultiGet(),
	)

	return OutcomeSucceeded, nil
}

// fail makes s unavailable (must be called with s.negotiateMu held)
func (n *Negotiator) fail(s *Server, err error) (Outcome, error) {
	s.setUnavailable(OutcomeFailed, err)
	n.stats.recordFailed()
	n.logger.Warn("arcus: version negotiation failed", "addr", s.addr, "mode", s.mode.String(), "error", err)
	return OutcomeFailed, err
}

// exchange sends the version request and decodes the response.
// If a circuit breaker is configured for the server, the round trip is wrapped with it.
func (n *Negotiator) exchange(ctx context.Context, s *Server) (protocol.VersionReply, error) {
	if s.transport == nil {
		return protocol.VersionReply{}, &protocol.ConnectionError{Op: "send", Err: ErrNoTransport}
	}

	codec := s.mode.Codec()

	roundTrip := func() ([]byte, error) {
		n.stats.recordExchange()

		if err := s.transport.Send(ctx, codec.EncodeVersionRequest()); err != nil {
			return nil, transportError("send", err)
		}

		frame, err := s.transport.Receive(ctx)
		if err != nil {
			return nil, transportError("receive", err)
		}
		return frame, nil
	}

	var frame []byte
	var err error
	if s.breaker != nil {
		frame, err = s.breaker.Execute(roundTrip)
		if err != nil {
			err = transportError("circuit breaker", err)
		}
	} else {
		frame, err = roundTrip()
	}
	if err != nil {
		return protocol.VersionReply{}, err
	}

	return codec.DecodeVersionResponse(frame)
}

// transportError keeps protocol errors as they are and wraps anything else
// as a ConnectionError.
func transportError(op string, err error) error {
	var state protocol.ErrorWithConnectionState
	if errors.As(err, &state) {
		return err
	}
	return &protocol.ConnectionError{Op: op, Err: err}
}

// NegotiateAll negotiates every server and folds the outcomes.
//
// When the fleet has no response path it returns FleetNotSupported without
// touching any server. Otherwise servers are negotiated in parallel, at
// most MaxConcurrency at a time, and a failing server never prevents the
// others from being negotiated.
func (n *Negotiator) NegotiateAll(ctx context.Context, servers []*Server) FleetResult {
	n.stats.recordFleetPass()

	if n.noResponsePath() {
		n.stats.recordNotSupported()
		return FleetResult{Status: FleetNotSupported}
	}

	outcomes := make([]Outcome, len(servers))
	errs := make([]error, len(servers))

	var g errgroup.Group
	g.SetLimit(n.maxConcurrency)

	for i, s := range servers {
		g.Go(func() error {
			outcomes[i], errs[i] = n.Negotiate(ctx, s)
			return nil // failures are isolated per server
		})
	}
	_ = g.Wait()

	res := foldOutcomes(servers, outcomes, errs)
	if res.Status != FleetSucceeded {
		n.logger.Warn("arcus: fleet negotiation incomplete",
			"status", res.Status.String(),
			"servers", len(servers),
			"failed", strings.Join(res.FailedAddrs(), ","),
			"unsupported", strings.Join(res.Unsupported, ","),
		)
	}
	return res
}

func foldOutcomes(servers []*Server, outcomes []Outcome, errs []error) FleetResult {
	res := FleetResult{Status: FleetSucceeded}

	for i, s := range servers {
		switch outcomes[i] {
		case OutcomeFailed:
			res.Failures = append(res.Failures, InstanceFailure{Addr: s.addr, Err: errs[i]})
		case OutcomeNotSupported:
			res.Unsupported = append(res.Unsupported, s.addr)
		}
	}

	switch {
	case len(servers) > 0 && len(res.Unsupported) == len(servers):
		res.Status = FleetNotSupported
	case len(res.Failures) > 0 || len(res.Unsupported) > 0:
		res.Status = FleetPartialFailure
	}

	return res
}
