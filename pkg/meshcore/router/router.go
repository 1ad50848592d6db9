// Package router implements the flood rebroadcast decision.
//
// MeshCore deduplicates by path inspection: a node whose hash already
// appears in a packet's path has relayed it before.
package router

import (
	"math/rand/v2"
	"time"

	"github.com/ezmesh/ezmesh/pkg/meshcore/codec"
)

const (
	// RebroadcastDelayMin and RebroadcastDelayMax bound the random jitter
	// applied before relaying, to desynchronize simultaneous relays of the
	// same broadcast.
	RebroadcastDelayMin = 50 * time.Millisecond
	RebroadcastDelayMax = 200 * time.Millisecond
)

// Router decides whether received flood packets should be relayed. It is
// pure decision logic over externally owned packet data, holding only
// counters.
type Router struct {
	duplicateCount   uint32
	rebroadcastCount uint32
}

// New creates a Router with zeroed counters.
func New() *Router {
	return &Router{}
}

// ShouldRebroadcast reports whether a packet should be relayed.
// Only flood route types are candidates. A packet carrying ourPathHash in
// its path has already been relayed by this node, and a path at capacity
// cannot record another hop.
func (r *Router) ShouldRebroadcast(pkt *codec.Packet, ourPathHash byte) bool {
	rt := pkt.RouteType()
	if rt != codec.RouteTypeFlood && rt != codec.RouteTypeTransportFlood {
		return false
	}

	if pkt.IsInPath(ourPathHash) {
		r.duplicateCount++
		return false
	}

	if len(pkt.Path) >= codec.MaxPathSize {
		return false
	}

	r.rebroadcastCount++
	return true
}

// RebroadcastDelay returns a uniformly random delay in
// [RebroadcastDelayMin, RebroadcastDelayMax].
func (r *Router) RebroadcastDelay() time.Duration {
	span := RebroadcastDelayMax - RebroadcastDelayMin
	return RebroadcastDelayMin + time.Duration(rand.Int64N(int64(span)+1))
}

// DuplicateCount returns the number of packets rejected as already seen.
func (r *Router) DuplicateCount() uint32 { return r.duplicateCount }

// RebroadcastCount returns the number of packets accepted for relay.
func (r *Router) RebroadcastCount() uint32 { return r.rebroadcastCount }

// Reset zeroes both counters.
func (r *Router) Reset() {
	r.duplicateCount = 0
	r.rebroadcastCount = 0
}
