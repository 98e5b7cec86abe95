package arcus

import "github.com/computerphilosopher/arcus-c-client/protocol"

// OptimizedMultiGet reports whether a server build supports the optimized
// multi-get path.
//
//	enterprise: newer than 0.6.x
//	community:  newer than 1.10.x
func OptimizedMultiGet(v protocol.Version, enterprise bool) bool {
	if enterprise {
		return v.Major > 0 || v.Minor > 6
	}
	return v.Major > 1 || (v.Major == 1 && v.Minor > 10)
}
