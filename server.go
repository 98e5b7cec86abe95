package arcus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/computerphilosopher/arcus-c-client/protocol"
)

// TransportMode selects the wire protocol spoken with a server.
type TransportMode int

const (
	ModeText TransportMode = iota
	ModeBinary
)

func (m TransportMode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeBinary:
		return "binary"
	default:
		return fmt.Sprintf("TransportMode(%d)", int(m))
	}
}

// Codec returns the protocol codec for the mode.
func (m TransportMode) Codec() protocol.Codec {
	if m == ModeBinary {
		return protocol.Binary
	}
	return protocol.Text
}

// VersionState tells whether a server's version has been negotiated.
type VersionState int

const (
	// StateUnknown: never negotiated, or invalidated.
	StateUnknown VersionState = iota
	// StateUnavailable: negotiation failed or the server reported no version.
	StateUnavailable
	// StateKnown: the version fields are valid.
	StateKnown
)

func (s VersionState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateUnavailable:
		return "unavailable"
	case StateKnown:
		return "known"
	default:
		return fmt.Sprintf("VersionState(%d)", int(s))
	}
}

// ServerVersion is a snapshot of a server's negotiated version.
// Version and Enterprise are only meaningful when State is StateKnown.
type ServerVersion struct {
	State      VersionState
	Version    protocol.Version
	Enterprise bool
}

func (v ServerVersion) String() string {
	if v.State != StateKnown {
		return v.State.String()
	}
	if v.Enterprise {
		return v.Version.String() + "-E"
	}
	return v.Version.String()
}

// ServerConfig describes one server of the fleet.
type ServerConfig struct {
	// Addr identifies the server (host:port).
	Addr string

	// Mode is the wire protocol used with the server.
	Mode TransportMode

	// NoResponse marks a transport without a response path (UDP, noreply).
	// Version negotiation is impossible on such a server.
	NoResponse bool

	// Transport is the byte channel to the server.
	Transport Transport

	// CircuitBreaker guards the version exchange. Optional.
	CircuitBreaker CircuitBreaker
}

// Server is one addressable cache server and its negotiated capabilities.
type Server struct {
	addr             string
	mode             TransportMode
	supportsResponse bool
	transport        Transport
	breaker          CircuitBreaker // nil if not configured

	// negotiateMu serializes negotiations and guards retired; it is held
	// across the version exchange
	negotiateMu sync.Mutex
	retired     bool

	// mu guards the fields below and is never held across I/O
	mu           sync.Mutex
	version      ServerVersion
	outcome      Outcome // outcome of the attempt that set version
	lastErr      error
	negotiatedAt time.Time

	optimizedMultiGet atomic.Bool
}

// NewServer creates a server in StateUnknown.
func NewServer(config ServerConfig) *Server {
	return &Server{
		addr:             config.Addr,
		mode:             config.Mode,
		supportsResponse: !config.NoResponse,
		transport:        config.Transport,
		breaker:          config.CircuitBreaker,
	}
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}

// Mode returns the wire protocol used with the server.
func (s *Server) Mode() TransportMode {
	return s.mode
}

// SupportsResponse reports whether the transport can carry a response.
func (s *Server) SupportsResponse() bool {
	return s.supportsResponse
}

// Version returns a snapshot of the negotiated version.
func (s *Server) Version() ServerVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// LastError returns the error of the negotiation that made the server
// unavailable, if any.
func (s *Server) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// NegotiatedAt returns when the version state was last set.
// Zero while the state is unknown.
func (s *Server) NegotiatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiatedAt
}

// OptimizedMultiGet reports whether the optimized multi-get path may be used.
// Safe to call from the request path; it never blocks on a negotiation.
func (s *Server) OptimizedMultiGet() bool {
	return s.optimizedMultiGet.Load()
}

// Invalidate resets the version state to unknown so the next negotiation
// queries the server again. The optimized multi-get flag is kept.
func (s *Server) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = ServerVersion{}
	s.outcome = OutcomeSucceeded
	s.lastErr = nil
	s.negotiatedAt = time.Time{}
}

func (s *Server) String() string {
	return s.addr + " (" + s.mode.String() + ")"
}

// retire waits for an in-flight negotiation, then closes the transport.
// Later negotiations fail with ErrServerRemoved.
func (s *Server) retire() error {
	s.negotiateMu.Lock()
	defer s.negotiateMu.Unlock()

	if s.retired {
		return nil
	}
	s.retired = true
	return s.transport.Close()
}

// snapshot returns the state with the outcome and error that produced it
func (s *Server) snapshot() (ServerVersion, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.outcome, s.lastErr
}

// setUnavailable records a terminal attempt without version
func (s *Server) setUnavailable(outcome Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = ServerVersion{State: StateUnavailable}
	s.outcome = outcome
	s.lastErr = err
	s.negotiatedAt = time.Now()
}

// setKnown records a parsed version
func (s *Server) setKnown(v protocol.Version, enterprise bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = ServerVersion{State: StateKnown, Version: v, Enterprise: enterprise}
	s.outcome = OutcomeSucceeded
	s.lastErr = nil
	s.negotiatedAt = time.Now()

	if OptimizedMultiGet(v, enterprise) {
		s.optimizedMultiGet.Store(true)
	}
}
