package arcus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/computerphilosopher/arcus-c-client/internal"
	"github.com/sony/gobreaker/v2"
)

var ErrNoServers = errors.New("arcus: no servers available")

// Topology supplies the current server list. Arcus clusters publish it
// through their coordination service; a static list needs no Topology.
type Topology interface {
	Servers(ctx context.Context) ([]string, error)
}

// Config holds configuration for a fleet of servers.
type Config struct {
	// Servers is the initial list of server addresses (host:port).
	// Required: at least one.
	Servers []string

	// Mode is the wire protocol used with every server.
	Mode TransportMode

	// NoReply disables responses fleet-wide. Negotiation is then not supported.
	NoReply bool

	// UseUDP selects UDP transports. Negotiation is then not supported.
	UseUDP bool

	// MaxConcurrency bounds parallel negotiations.
	// Zero means DefaultMaxConcurrency.
	MaxConcurrency int

	// MaxConnsPerServer is the maximum number of pooled connections per server.
	// Zero means DefaultMaxConnsPerServer.
	MaxConnsPerServer int32

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// NewCircuitBreaker creates a circuit breaker for a server.
	// Called once per server address when the server joins the fleet.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// NewTransport creates the transport of a server.
	// If nil, a pooled TCP transport is used.
	NewTransport func(serverAddr string, mode TransportMode) (Transport, error)

	// Topology is queried before every NegotiateAll. Optional.
	Topology Topology

	// Logger receives fleet and negotiation events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Fleet owns the servers of a cluster and their negotiated capabilities.
type Fleet struct {
	mode         TransportMode
	noResponse   bool
	newTransport func(serverAddr string, mode TransportMode) (Transport, error)
	newBreaker   func(serverAddr string) CircuitBreaker
	topology     Topology
	logger       *slog.Logger
	negotiator   *Negotiator

	// servers is replaced, never mutated in place
	mu      sync.RWMutex
	servers []*Server
}

// NewFleet creates a fleet for the configured servers. No server is
// contacted until NegotiateAll is called.
func NewFleet(config Config) (*Fleet, error) {
	if len(config.Servers) == 0 {
		return nil, ErrNoServers
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newTransport := config.NewTransport
	if newTransport == nil {
		maxConns := config.MaxConnsPerServer
		if maxConns <= 0 {
			maxConns = DefaultMaxConnsPerServer
		}
		newTransport = pooledTCPTransport(config.Dialer, maxConns)
	}

	f := &Fleet{
		mode:         config.Mode,
		noResponse:   config.NoReply || config.UseUDP,
		newTransport: newTransport,
		newBreaker:   config.NewCircuitBreaker,
		topology:     config.Topology,
		logger:       logger,
		negotiator: NewNegotiator(NegotiatorConfig{
			NoReply:        config.NoReply,
			UseUDP:         config.UseUDP,
			MaxConcurrency: config.MaxConcurrency,
			Logger:         logger,
		}),
	}

	if err := f.UpdateServers(config.Servers); err != nil {
		return nil, err
	}

	return f, nil
}

func pooledTCPTransport(dialer *net.Dialer, maxConns int32) func(string, TransportMode) (Transport, error) {
	return func(addr string, mode TransportMode) (Transport, error) {
		t, err := newPooledTransport(func(ctx context.Context) (*Connection, error) {
			return DialConnection(ctx, dialer, addr, mode.Codec())
		}, maxConns)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Servers returns the current servers, in topology order.
func (f *Fleet) Servers() []*Server {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]*Server(nil), f.servers...)
}

// Server returns the server with the given address.
func (f *Fleet) Server(addr string) (*Server, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.servers {
		if s.addr == addr {
			return s, true
		}
	}
	return nil, false
}

// UpdateServers replaces the topology. Servers still present keep their
// negotiated state and new servers start unknown. A removed server is closed
// once its in-flight negotiation, if any, has finished.
func (f *Fleet) UpdateServers(addrs []string) error {
	addrs = dedupe(addrs)
	if len(addrs) == 0 {
		return ErrNoServers
	}

	f.mu.Lock()

	current := make(map[string]*Server, len(f.servers))
	for _, s := range f.servers {
		current[s.addr] = s
	}

	next := make([]*Server, 0, len(addrs))
	var added []*Server
	for _, addr := range addrs {
		if s, ok := current[addr]; ok {
			next = append(next, s)
			delete(current, addr)
			continue
		}

		s, err := f.newServer(addr)
		if err != nil {
			f.mu.Unlock()
			for _, s := range added {
				_ = s.retire()
			}
			return fmt.Errorf("arcus: create server %s: %w", addr, err)
		}
		added = append(added, s)
		next = append(next, s)
	}

	f.servers = next
	f.mu.Unlock()

	// what is left in current was removed from the topology
	for _, s := range current {
		if err := s.retire(); err != nil {
			f.logger.Warn("arcus: failed to close removed server", "addr", s.addr, "error", err)
		}
	}

	if len(added) > 0 || len(current) > 0 {
		f.logger.Info("arcus: topology updated", "servers", len(next), "added", len(added), "removed", len(current))
	}

	return nil
}

func (f *Fleet) newServer(addr string) (*Server, error) {
	transport, err := f.newTransport(addr, f.mode)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNoTransport
	}

	var cb CircuitBreaker
	if f.newBreaker != nil {
		cb = f.newBreaker(addr)
	}

	return NewServer(ServerConfig{
		Addr:           addr,
		Mode:           f.mode,
		NoResponse:     f.noResponse,
		Transport:      transport,
		CircuitBreaker: cb,
	}), nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok || addr == "" {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// NegotiateAll refreshes the topology, when one is configured, and
// negotiates every server. A fleet without a response path returns
// FleetNotSupported before the topology is consulted.
func (f *Fleet) NegotiateAll(ctx context.Context) FleetResult {
	if !f.noResponse && f.topology != nil {
		f.refresh(ctx)
	}
	return f.negotiator.NegotiateAll(ctx, f.Servers())
}

// refresh applies the topology's server list. Failures keep the current list.
func (f *Fleet) refresh(ctx context.Context) {
	addrs, err := f.topology.Servers(ctx)
	if err != nil {
		f.logger.Warn("arcus: topology refresh failed", "error", err)
		return
	}

	if err := f.UpdateServers(addrs); err != nil {
		f.logger.Warn("arcus: topology update failed", "error", err)
	}
}

// Negotiate negotiates a single server of the fleet.
func (f *Fleet) Negotiate(ctx context.Context, s *Server) (Outcome, error) {
	return f.negotiator.Negotiate(ctx, s)
}

// Select picks the server responsible for key.
func (f *Fleet) Select(key string) (*Server, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.servers) == 0 {
		return nil, ErrNoServers
	}
	return f.servers[internal.KeyBucket(key, len(f.servers))], nil
}

// MultiGetPlan is the share of a multi-get sent to one server.
type MultiGetPlan struct {
	Server *Server
	Keys   []string

	// Optimized tells whether the batched multi-get path can be used with Server.
	Optimized bool
}

// PlanMultiGet groups keys by server, in order of first appearance, and
// picks the wire strategy of each group from the server capability.
func (f *Fleet) PlanMultiGet(keys []string) ([]MultiGetPlan, error) {
	f.mu.RLock()
	servers := f.servers
	f.mu.RUnlock()

	if len(servers) == 0 {
		return nil, ErrNoServers
	}

	var plans []MultiGetPlan
	index := make(map[*Server]int, len(servers))

	for _, key := range keys {
		s := servers[internal.KeyBucket(key, len(servers))]

		i, ok := index[s]
		if !ok {
			i = len(plans)
			index[s] = i
			plans = append(plans, MultiGetPlan{Server: s, Optimized: s.OptimizedMultiGet()})
		}
		plans[i].Keys = append(plans[i].Keys, key)
	}

	return plans, nil
}

// Stats returns a snapshot of negotiation statistics.
func (f *Fleet) Stats() NegotiationStats {
	return f.negotiator.Stats()
}

// ServerPoolStats contains stats for a single server
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState gobreaker.State
}

// AllPoolStats returns stats for all servers with a pooled transport
func (f *Fleet) AllPoolStats() []ServerPoolStats {
	servers := f.Servers()

	stats := make([]ServerPoolStats, 0, len(servers))
	for _, s := range servers {
		pooled, ok := s.transport.(interface{ Stats() PoolStats })
		if !ok {
			continue
		}

		st := ServerPoolStats{
			Addr:      s.addr,
			PoolStats: pooled.Stats(),
		}
		if s.breaker != nil {
			st.CircuitBreakerState = s.breaker.State()
		}
		stats = append(stats, st)
	}
	return stats
}

// Close closes the transport of every server.
func (f *Fleet) Close() error {
	f.mu.Lock()
	servers := f.servers
	f.servers = nil
	f.mu.Unlock()

	var errs []error
	for _, s := range servers {
		if err := s.retire(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.addr, err))
		}
	}
	return errors.Join(errs...)
}
