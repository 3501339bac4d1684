package placement

import (
	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
)

// Unconstrained picks factor distinct writable shards uniformly at random,
// with no regard for failure domains. Shards on distinct nodes are taken
// first; a node contributes more than one shard only when there are not
// enough nodes. It serves node-scope replication and single-copy logs.
type Unconstrained struct {
	nodeset cluster.StorageSet
	writers cluster.StorageSet
	factor  int
	rng     *lockedRand
}

// NewUnconstrained builds the strategy over the writer view of nodeset.
//
// Parameters:
//   - cfg: nodes configuration the writer view is computed from
//   - nodeset: the epoch's nodeset
//   - factor: number of copies, at least 1
//   - seed: seed of the strategy's random source
func NewUnconstrained(cfg *cluster.Config, nodeset cluster.StorageSet, factor int, seed uint64) (*Unconstrained, error) {
	if factor < 1 {
		return nil, invalidConfigf("replication factor %d must be positive", factor)
	}
	return &Unconstrained{
		nodeset: nodeset.Normalized(),
		writers: cfg.WriterView(nodeset),
		factor:  factor,
		rng:     newLockedRand(seed),
	}, nil
}

// Kind returns KindUnconstrained.
func (u *Unconstrained) Kind() Kind { return KindUnconstrained }

// ReplicationFactor returns the number of copies each selection must hold.
func (u *Unconstrained) ReplicationFactor() int { return u.factor }

// Nodeset returns the normalized nodeset the strategy was built over.
func (u *Unconstrained) Nodeset() cluster.StorageSet { return u.nodeset }

// WriterView returns the shards of the nodeset that accepted writes when
// the strategy was built.
func (u *Unconstrained) WriterView() cluster.StorageSet { return u.writers }

func (u *Unconstrained) strategy() {}

// Select returns factor distinct shards plus up to extras more. Distinct
// nodes come first, then further shards of nodes already used. Within each
// pass overloaded shards are only used when there are not enough others.
func (u *Unconstrained) Select(view health.View, extras int) (CopySet, error) {
	snap := takeSnapshot(view, u.writers)
	var preferred, fallback []cluster.ShardID
	for _, s := range snap.writable {
		if snap.overloaded[s] {
			fallback = append(fallback, s)
		} else {
			preferred = append(preferred, s)
		}
	}

	want := u.factor + max(extras, 0)
	out := make(CopySet, 0, want)
	usedNodes := make(map[cluster.NodeIndex]bool, want)
	usedShards := make(map[cluster.ShardID]bool, want)
	spread := func(s cluster.ShardID) bool {
		if usedNodes[s.Node] {
			return false
		}
		usedNodes[s.Node] = true
		usedShards[s] = true
		out = append(out, s)
		return true
	}
	fill := func(s cluster.ShardID) bool {
		if usedShards[s] {
			return false
		}
		usedShards[s] = true
		out = append(out, s)
		return true
	}
	shuffleTake(preferred, want, u.rng, spread)
	shuffleTake(fallback, want-len(out), u.rng, spread)
	shuffleTake(preferred, want-len(out), u.rng, fill)
	shuffleTake(fallback, want-len(out), u.rng, fill)

	if len(out) < u.factor {
		// every shard is its own domain
		return nil, insufficient(KindUnconstrained, cluster.ScopeNode, u.factor,
			len(snap.writable), len(snap.writable))
	}
	return out, nil
}
