// Package arcus negotiates versions and capabilities with a fleet of
// Arcus/memcached servers.
//
// For every server the client asks for the software version once, over
// either the text or the binary protocol, classifies the build (community
// or enterprise) and derives whether the server supports the optimized
// multi-get path. Request routing consults that flag before choosing a wire
// strategy.
//
// # Usage
//
//	fleet, err := arcus.NewFleet(arcus.Config{
//	    Servers: []string{"cache1:11211", "cache2:11211"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer fleet.Close()
//
//	res := fleet.NegotiateAll(ctx)
//	if res.Status == arcus.FleetPartialFailure {
//	    log.Printf("some servers failed: %v", res.Err())
//	}
//
//	plans, _ := fleet.PlanMultiGet([]string{"k1", "k2", "k3"})
//	for _, p := range plans {
//	    if p.Optimized {
//	        // batched get
//	    }
//	}
//
// # State
//
// A Server starts in StateUnknown. A negotiation moves it to StateKnown or
// StateUnavailable, and later negotiations are no-ops until Invalidate is
// called. The optimized multi-get flag only ever goes from false to true.
//
// # Concurrency
//
// NegotiateAll negotiates servers in parallel, bounded by MaxConcurrency.
// Each server serializes its own negotiation so concurrent callers never
// issue duplicate version requests.
package arcus
