package health

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/copyset/internal/cluster"
)

// View is the read-only shard health signal consumed by placement. It is
// shared with, and mutated by, failure detection outside placement, so every
// call returns the state at that instant; callers must not assume two calls
// observe the same state.
type View interface {
	// IsWritable reports whether the shard can take a new copy right now.
	IsWritable(shard cluster.ShardID) bool

	// IsOverloaded reports whether the shard is writable but should only be
	// used when nothing better is available.
	IsOverloaded(shard cluster.ShardID) bool
}

// Availability is the runtime state of a shard.
type Availability string

const (
	Available  Availability = "available"
	Overloaded Availability = "overloaded"
	NoSpace    Availability = "no-space"
	Unroutable Availability = "unroutable"
	Disabled   Availability = "disabled"
)

// Writable reports whether a shard in this state can take new copies.
func (a Availability) Writable() bool {
	return a == Available || a == Overloaded
}

// ParseAvailability validates an availability name.
func ParseAvailability(s string) (Availability, bool) {
	switch a := Availability(s); a {
	case Available, Overloaded, NoSpace, Unroutable, Disabled:
		return a, true
	}
	return "", false
}

func sortShardStates(states []ShardState) {
	slices.SortFunc(states, func(a, b ShardState) int { return a.Shard.Compare(b.Shard) })
}
