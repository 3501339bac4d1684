package placement

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
)

type failureDomain struct {
	name   string
	shards []cluster.ShardID
}

// DomainConstrained places each copy in a different failure domain at one
// scope (rack, row, cluster or region), one shard per domain.
//
// The domain of the local node, when it can take a copy, always gets one:
// the local shard itself when it is writable and not overloaded. The remaining domains are drawn
// at random, optionally discounted by how often they were picked recently.
type DomainConstrained struct {
	nodeset cluster.StorageSet
	writers cluster.StorageSet
	scope   cluster.LocationScope
	factor  int
	domains []failureDomain
	local   int
	node    cluster.NodeIndex
	history *localityHistory
	rng     *lockedRand
}

// DomainOptions configures NewDomainConstrained.
type DomainOptions struct {
	Scope  cluster.LocationScope
	Factor int
	// LocalNode is the node running the selection. Required.
	LocalNode *cluster.NodeIndex
	// Locality discounts recently overrepresented domains.
	Locality bool
	Seed     uint64
}

// NewDomainConstrained groups the writer view of nodeset by domain at
// opts.Scope. Domains are ordered by name and shards by id so that a fixed
// seed reproduces the same selections.
func NewDomainConstrained(cfg *cluster.Config, nodeset cluster.StorageSet, opts DomainOptions) (*DomainConstrained, error) {
	switch opts.Scope {
	case cluster.ScopeRack, cluster.ScopeRow, cluster.ScopeCluster, cluster.ScopeRegion:
	default:
		return nil, invalidConfigf("scope %s is not supported by domain-constrained placement", opts.Scope)
	}
	if opts.Factor < 1 {
		return nil, invalidConfigf("replication factor %d must be positive", opts.Factor)
	}
	if opts.LocalNode == nil {
		return nil, invalidConfigf("domain-constrained placement at %s scope requires the local node", opts.Scope)
	}

	d := &DomainConstrained{
		nodeset: nodeset.Normalized(),
		writers: cfg.WriterView(nodeset),
		scope:   opts.Scope,
		factor:  opts.Factor,
		local:   -1,
		node:    *opts.LocalNode,
		rng:     newLockedRand(opts.Seed),
	}

	byName := make(map[string][]cluster.ShardID)
	for _, s := range d.writers {
		name := cfg.DomainOf(s, opts.Scope)
		byName[name] = append(byName[name], s)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		d.domains = append(d.domains, failureDomain{name: name, shards: byName[name]})
		if _, ok := cfg.Node(d.node); ok && cfg.DomainOf(cluster.ShardID{Node: d.node}, opts.Scope) == name {
			d.local = i
		}
	}
	if opts.Locality {
		d.history = newLocalityHistory(len(d.domains))
	}
	return d, nil
}

// Kind returns KindDomainConstrained.
func (d *DomainConstrained) Kind() Kind { return KindDomainConstrained }

// ReplicationFactor returns the number of copies each selection must hold.
func (d *DomainConstrained) ReplicationFactor() int { return d.factor }

// Nodeset returns the normalized nodeset the strategy was built over.
func (d *DomainConstrained) Nodeset() cluster.StorageSet { return d.nodeset }

// WriterView returns the shards of the nodeset that accepted writes when
// the strategy was built.
func (d *DomainConstrained) WriterView() cluster.StorageSet { return d.writers }

func (d *DomainConstrained) strategy() {}

// Scope returns the failure-domain scope copies are spread over.
func (d *DomainConstrained) Scope() cluster.LocationScope { return d.scope }

// Select returns one shard from each of factor distinct domains, then up to
// extras more shards on nodes not used yet.
func (d *DomainConstrained) Select(view health.View, extras int) (CopySet, error) {
	snap := takeSnapshot(view, d.writers)
	writable := make(map[cluster.ShardID]bool, len(snap.writable))
	for _, s := range snap.writable {
		writable[s] = true
	}

	eligible := make([]bool, len(d.domains))
	numEligible := 0
	for i, dom := range d.domains {
		for _, s := range dom.shards {
			if writable[s] {
				eligible[i] = true
				numEligible++
				break
			}
		}
	}
	if numEligible < d.factor {
		return nil, insufficient(KindDomainConstrained, d.scope, d.factor, len(snap.writable), numEligible)
	}

	chosen := make([]int, 0, d.factor)
	if d.local >= 0 && eligible[d.local] {
		chosen = append(chosen, d.local)
	}
	weights := make([]float64, len(d.domains))
	for i := range d.domains {
		if eligible[i] && i != d.local {
			weights[i] = d.history.discount(d.domains[i].name)
		}
	}
	chosen = append(chosen, sampleWithoutReplacement(weights, d.factor-len(chosen), d.rng)...)
	if len(chosen) < d.factor {
		return nil, insufficient(KindDomainConstrained, d.scope, d.factor, len(snap.writable), numEligible)
	}

	want := d.factor + max(extras, 0)
	out := make(CopySet, 0, want)
	used := make(map[cluster.NodeIndex]bool, want)
	names := make([]string, 0, len(chosen))
	for _, i := range chosen {
		s := d.pickShard(d.domains[i], writable, snap.overloaded, i == d.local)
		out = append(out, s)
		used[s.Node] = true
		names = append(names, d.domains[i].name)
	}

	if extras > 0 {
		var rest []cluster.ShardID
		for _, s := range snap.writable {
			if !used[s.Node] {
				rest = append(rest, s)
			}
		}
		shuffleTake(rest, extras, d.rng, func(s cluster.ShardID) bool {
			if used[s.Node] {
				return false
			}
			used[s.Node] = true
			out = append(out, s)
			return true
		})
	}

	d.history.record(names)
	return out, nil
}

// pickShard returns a writable shard of the domain: the local node's shard
// when asked and available, otherwise a random shard preferring ones that are
// not overloaded.
func (d *DomainConstrained) pickShard(dom failureDomain, writable, overloaded map[cluster.ShardID]bool, local bool) cluster.ShardID {
	var preferred, fallback []cluster.ShardID
	for _, s := range dom.shards {
		if !writable[s] {
			continue
		}
		if local && s.Node == d.node && !overloaded[s] {
			return s
		}
		if overloaded[s] {
			fallback = append(fallback, s)
		} else {
			preferred = append(preferred, s)
		}
	}
	if len(preferred) == 0 {
		preferred = fallback
	}
	return preferred[d.rng.IntN(len(preferred))]
}
