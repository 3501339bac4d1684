package placement

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
)

// CopySet is the ordered list of shards chosen to store the copies of one
// record. It never holds two shards of the same node.
type CopySet []cluster.ShardID

// Clone returns an independent copy.
func (c CopySet) Clone() CopySet {
	return slices.Clone(c)
}

// String formats the copyset like a StorageSet.
func (c CopySet) String() string {
	return cluster.StorageSet(c).String()
}

// Kind names a placement strategy.
type Kind int

const (
	KindUnconstrained Kind = iota
	KindDomainConstrained
	KindWeighted
)

// String returns the strategy name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindUnconstrained:
		return "unconstrained"
	case KindDomainConstrained:
		return "domain-constrained"
	case KindWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// Strategy maps the eligible shards of an epoch to a copyset. The set of
// strategies is closed: *Unconstrained, *DomainConstrained and *Weighted.
//
// A strategy is bound to one epoch's nodeset and replication requirement and
// is safe for concurrent use. It never owns the health view; callers pass it
// to every Select.
type Strategy interface {
	// Kind identifies the algorithm.
	Kind() Kind

	// ReplicationFactor is the number of copies Select returns, extras
	// aside.
	ReplicationFactor() int

	// Nodeset is the epoch's nodeset, sorted.
	Nodeset() cluster.StorageSet

	// WriterView is the part of the nodeset that storage membership allowed
	// writes to when the strategy was built.
	WriterView() cluster.StorageSet

	// Select picks a copyset of ReplicationFactor shards plus up to extras
	// additional best-effort shards. It fails with an error marked
	// ErrInsufficientShards when the requirement cannot be met.
	Select(view health.View, extras int) (CopySet, error)

	strategy()
}

// snapshot is the health of the shards of one Select call, read once so that
// a single call works on a fixed input.
type snapshot struct {
	writable   []cluster.ShardID
	overloaded map[cluster.ShardID]bool
}

func takeSnapshot(view health.View, shards cluster.StorageSet) snapshot {
	s := snapshot{
		writable:   make([]cluster.ShardID, 0, len(shards)),
		overloaded: make(map[cluster.ShardID]bool),
	}
	for _, shard := range shards {
		if !view.IsWritable(shard) {
			continue
		}
		s.writable = append(s.writable, shard)
		if view.IsOverloaded(shard) {
			s.overloaded[shard] = true
		}
	}
	return s
}
