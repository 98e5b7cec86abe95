// Package metrics exposes fleet negotiation state as Prometheus metrics.
package metrics

import (
	"strconv"

	arcus "github.com/computerphilosopher/arcus-c-client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

var (
	negotiationsDesc = prometheus.NewDesc(
		"arcus_negotiations_total",
		"Total number of version negotiations by outcome",
		[]string{"outcome"}, nil,
	)
	exchangesDesc = prometheus.NewDesc(
		"arcus_version_exchanges_total",
		"Total number of version requests sent to servers",
		nil, nil,
	)
	fleetPassesDesc = prometheus.NewDesc(
		"arcus_fleet_negotiation_passes_total",
		"Total number of fleet-wide negotiation passes",
		nil, nil,
	)
	optimizedDesc = prometheus.NewDesc(
		"arcus_server_optimized_mget",
		"Whether the optimized multi-get path is enabled for the server (0 or 1)",
		[]string{"server"}, nil,
	)
	versionDesc = prometheus.NewDesc(
		"arcus_server_version_info",
		"Negotiated server version, always 1",
		[]string{"server", "version", "enterprise"}, nil,
	)
	poolConnectionsDesc = prometheus.NewDesc(
		"arcus_pool_connections",
		"Connection pool statistics",
		[]string{"server", "state"}, nil,
	)
	circuitStateDesc = prometheus.NewDesc(
		"arcus_circuit_breaker_state",
		"Circuit breaker state (0=closed, 1=half-open, 2=open)",
		[]string{"server"}, nil,
	)
)

// Collector reads the fleet on every scrape.
type Collector struct {
	fleet *arcus.Fleet
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for fleet. Register it with a prometheus.Registerer.
func NewCollector(fleet *arcus.Fleet) *Collector {
	return &Collector{fleet: fleet}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- negotiationsDesc
	ch <- exchangesDesc
	ch <- fleetPassesDesc
	ch <- optimizedDesc
	ch <- versionDesc
	ch <- poolConnectionsDesc
	ch <- circuitStateDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.fleet.Stats()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(negotiationsDesc, stats.Known, "known")
	counter(negotiationsDesc, stats.Unknown, "unknown")
	counter(negotiationsDesc, stats.Failed, "failed")
	counter(negotiationsDesc, stats.NotSupported, "not_supported")
	counter(negotiationsDesc, stats.Cached, "cached")
	counter(exchangesDesc, stats.Exchanges)
	counter(fleetPassesDesc, stats.FleetPasses)

	for _, s := range c.fleet.Servers() {
		ch <- prometheus.MustNewConstMetric(optimizedDesc, prometheus.GaugeValue, boolValue(s.OptimizedMultiGet()), s.Addr())

		v := s.Version()
		if v.State == arcus.StateKnown {
			ch <- prometheus.MustNewConstMetric(versionDesc, prometheus.GaugeValue, 1,
				s.Addr(), v.Version.String(), strconv.FormatBool(v.Enterprise))
		}
	}

	for _, st := range c.fleet.AllPoolStats() {
		ch <- prometheus.MustNewConstMetric(poolConnectionsDesc, prometheus.GaugeValue, float64(st.PoolStats.TotalConns), st.Addr, "total")
		ch <- prometheus.MustNewConstMetric(poolConnectionsDesc, prometheus.GaugeValue, float64(st.PoolStats.IdleConns), st.Addr, "idle")
		ch <- prometheus.MustNewConstMetric(circuitStateDesc, prometheus.GaugeValue, circuitValue(st.CircuitBreakerState), st.Addr)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func circuitValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
