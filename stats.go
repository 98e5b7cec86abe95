package arcus

import "sync/atomic"

// NegotiationStats contains statistics about version negotiations.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as counters (see package metrics).
type NegotiationStats struct {
	Exchanges    uint64 // Version requests sent on the wire
	Known        uint64 // Negotiations that produced a version
	Unknown      uint64 // Servers that answered without a version
	Failed       uint64 // Transport, parse and range failures
	NotSupported uint64 // Negotiations refused for lack of a response path
	Cached       uint64 // Negotiations answered from the existing state
	FleetPasses  uint64 // NegotiateAll calls
	_            uint64 // Padding to align to 64 bytes
}

// negotiationStatsCollector provides internal methods for updating negotiation stats.
type negotiationStatsCollector struct {
	stats NegotiationStats
}

func (c *negotiationStatsCollector) recordExchange() {
	atomic.AddUint64(&c.stats.Exchanges, 1)
}

func (c *negotiationStatsCollector) recordKnown() {
	atomic.AddUint64(&c.stats.Known, 1)
}

func (c *negotiationStatsCollector) recordUnknown() {
	atomic.AddUint64(&c.stats.Unknown, 1)
}

func (c *negotiationStatsCollector) recordFailed() {
	atomic.AddUint64(&c.stats.Failed, 1)
}

func (c *negotiationStatsCollector) recordNotSupported() {
	atomic.AddUint64(&c.stats.NotSupported, 1)
}

func (c *negotiationStatsCollector) recordCached() {
	atomic.AddUint64(&c.stats.Cached, 1)
}

func (c *negotiationStatsCollector) recordFleetPass() {
	atomic.AddUint64(&c.stats.FleetPasses, 1)
}

func (c *negotiationStatsCollector) snapshot() NegotiationStats {
	return NegotiationStats{
		Exchanges:    atomic.LoadUint64(&c.stats.Exchanges),
		Known:        atomic.LoadUint64(&c.stats.Known),
		Unknown:      atomic.LoadUint64(&c.stats.Unknown),
		Failed:       atomic.LoadUint64(&c.stats.Failed),
		NotSupported: atomic.LoadUint64(&c.stats.NotSupported),
		Cached:       atomic.LoadUint64(&c.stats.Cached),
		FleetPasses:  atomic.LoadUint64(&c.stats.FleetPasses),
	}
}
