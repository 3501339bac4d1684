package placement

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
	"github.com/dreamware/copyset/internal/replication"
)

// overloadPenalty scales the weight of an overloaded shard.
const overloadPenalty = 0.1

type weightedCandidate struct {
	shard   cluster.ShardID
	weight  float64
	domains []string
}

// Weighted satisfies a multi-scope replication property while picking shards
// in proportion to their declared weights.
//
// Selection draws one shard at a time, weighted, among the shards whose
// choice still leaves every scope's minimum reachable with the slots left.
type Weighted struct {
	nodeset     cluster.StorageSet
	writers     cluster.StorageSet
	property    replication.Property
	constraints []replication.ScopeReplication
	factor      int
	weights     map[cluster.ShardID]float64
	domains     map[cluster.ShardID][]string
	history     *localityHistory
	balance     *balanceTracker
	rng         *lockedRand
}

// WeightedOptions configures NewWeighted.
type WeightedOptions struct {
	LogID    replication.LogID
	Metadata replication.EpochMetaData

	// Locality discounts domains at the biggest scope that received more
	// than their share of recent copies.
	Locality bool

	// BiasWarnings enables imbalance warnings. The checks below only matter
	// when it is set.
	BiasWarnings        bool
	BiasThreshold       float64
	BiasCheckInterval   int
	BiasWarningInterval time.Duration

	Seed    uint64
	Logger  zerolog.Logger
	Metrics *Metrics
}

// NewWeighted builds the strategy over the writer view of the epoch's
// nodeset.
func NewWeighted(cfg *cluster.Config, opts WeightedOptions) (*Weighted, error) {
	md := opts.Metadata
	if md.Replication.IsEmpty() {
		return nil, invalidConfigf("log %s has no replication property", opts.LogID)
	}

	w := &Weighted{
		nodeset:  md.Nodeset.Normalized(),
		writers:  cfg.WriterView(md.Nodeset),
		property: md.Replication,
		factor:   md.Replication.ReplicationFactor(),
		weights:  make(map[cluster.ShardID]float64),
		domains:  make(map[cluster.ShardID][]string),
		rng:      newLockedRand(opts.Seed),
	}
	w.constraints = md.Replication.Constraints()
	if last := w.constraints[len(w.constraints)-1]; last.Scope != cluster.ScopeNode {
		w.constraints = append(w.constraints, replication.ScopeReplication{Scope: cluster.ScopeNode, Factor: w.factor})
	}

	biggest := make(map[string]bool)
	for _, s := range w.writers {
		if weight := md.Weight(s); weight > 0 {
			w.weights[s] = weight
		}
		names := make([]string, len(w.constraints))
		for i, c := range w.constraints {
			names[i] = cfg.DomainOf(s, c.Scope)
		}
		w.domains[s] = names
		biggest[names[0]] = true
	}
	if opts.Locality {
		w.history = newLocalityHistory(len(biggest))
	}
	w.balance = newBalanceTracker(w.weights, balanceOptions{
		logID:      opts.LogID,
		epoch:      md.Epoch,
		checkEvery: opts.BiasCheckInterval,
		threshold:  opts.BiasThreshold,
		interval:   opts.BiasWarningInterval,
		warn:       opts.BiasWarnings,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	})
	return w, nil
}

// Kind returns KindWeighted.
func (w *Weighted) Kind() Kind { return KindWeighted }

// ReplicationFactor returns the number of copies each selection must hold.
func (w *Weighted) ReplicationFactor() int { return w.factor }

// Nodeset returns the normalized nodeset the strategy was built over.
func (w *Weighted) Nodeset() cluster.StorageSet { return w.nodeset }

// WriterView returns the shards of the nodeset that accepted writes when
// the strategy was built.
func (w *Weighted) WriterView() cluster.StorageSet { return w.writers }

func (w *Weighted) strategy() {}

// Property returns the replication property being enforced.
func (w *Weighted) Property() replication.Property { return w.property }

// Select returns a copyset meeting every scope constraint, plus up to extras
// more shards on unused nodes.
func (w *Weighted) Select(view health.View, extras int) (CopySet, error) {
	snap := takeSnapshot(view, w.writers)
	cands := make([]weightedCandidate, 0, len(snap.writable))
	for _, s := range snap.writable {
		base, ok := w.weights[s]
		if !ok {
			continue
		}
		c := weightedCandidate{shard: s, weight: base, domains: w.domains[s]}
		if snap.overloaded[s] {
			c.weight *= overloadPenalty
		}
		c.weight *= w.history.discount(c.domains[0])
		cands = append(cands, c)
	}

	for i, con := range w.constraints {
		distinct := make(map[string]bool)
		for _, c := range cands {
			distinct[c.domains[i]] = true
		}
		if len(distinct) < con.Factor {
			return nil, insufficient(KindWeighted, con.Scope, con.Factor, len(cands), len(distinct))
		}
	}

	picked := make([]map[string]bool, len(w.constraints))
	for i := range picked {
		picked[i] = make(map[string]bool)
	}
	used := make(map[cluster.NodeIndex]bool)
	taken := make([]bool, len(cands))
	weights := make([]float64, len(cands))
	out := make(CopySet, 0, w.factor+max(extras, 0))

	for len(out) < w.factor {
		slotsAfter := w.factor - len(out) - 1
		for j, c := range cands {
			weights[j] = 0
			if !taken[j] && !used[c.shard.Node] && w.admissible(c, picked, slotsAfter) {
				weights[j] = c.weight
			}
		}
		j, ok := sampleIndex(weights, w.rng)
		if !ok {
			con := w.outstanding(picked, len(out))
			return nil, insufficient(KindWeighted, con.Scope, con.Factor, len(cands), len(picked[0]))
		}
		taken[j] = true
		used[cands[j].shard.Node] = true
		out = append(out, cands[j].shard)
		for i, d := range cands[j].domains {
			picked[i][d] = true
		}
	}

	for k := 0; k < extras; k++ {
		for j, c := range cands {
			weights[j] = 0
			if !taken[j] && !used[c.shard.Node] {
				weights[j] = c.weight
			}
		}
		j, ok := sampleIndex(weights, w.rng)
		if !ok {
			break
		}
		taken[j] = true
		used[cands[j].shard.Node] = true
		out = append(out, cands[j].shard)
	}

	if w.history != nil {
		names := make([]string, 0, w.factor)
		for _, s := range out[:w.factor] {
			names = append(names, w.domains[s][0])
		}
		w.history.record(names)
	}
	w.balance.record(out)
	return out, nil
}

// admissible reports whether taking c leaves every constraint reachable
// with the slots that remain after it.
func (w *Weighted) admissible(c weightedCandidate, picked []map[string]bool, slotsAfter int) bool {
	for i, con := range w.constraints {
		have := len(picked[i])
		if !picked[i][c.domains[i]] {
			have++
		}
		if con.Factor-have > slotsAfter {
			return false
		}
	}
	return true
}

// outstanding returns the first constraint not met yet, biggest scope first.
func (w *Weighted) outstanding(picked []map[string]bool, have int) replication.ScopeReplication {
	for i, con := range w.constraints {
		if len(picked[i]) < con.Factor {
			return con
		}
	}
	return replication.ScopeReplication{Scope: cluster.ScopeNode, Factor: w.factor - have}
}
