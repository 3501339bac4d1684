package placement

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
	"github.com/dreamware/copyset/internal/replication"
)

// rackCluster builds racks*perRack nodes with shards shards each. Node i is
// in rack i/perRack.
func rackCluster(t *testing.T, racks, perRack, shards int) *cluster.Config {
	t.Helper()
	var nodes []cluster.NodeInfo
	for r := 0; r < racks; r++ {
		for n := 0; n < perRack; n++ {
			idx := r*perRack + n
			nodes = append(nodes, cluster.NodeInfo{
				Index:     cluster.NodeIndex(idx),
				Name:      fmt.Sprintf("node%d", idx),
				Location:  cluster.MustParseLocation(fmt.Sprintf("rg.dc.cl.row%d.rack%d", r%2, r)),
				NumShards: shards,
			})
		}
	}
	cfg, err := cluster.NewConfig(1, nodes)
	require.NoError(t, err)
	return cfg
}

// allShards returns every shard of cfg.
func allShards(cfg *cluster.Config) cluster.StorageSet {
	var out cluster.StorageSet
	for _, n := range cfg.Nodes() {
		for s := 0; s < n.NumShards; s++ {
			out = append(out, cluster.ShardID{Node: n.Index, Shard: cluster.ShardIndex(s)})
		}
	}
	return out
}

func metadata(rep replication.Property, nodeset cluster.StorageSet) replication.EpochMetaData {
	return replication.EpochMetaData{Epoch: 1, Replication: rep, Nodeset: nodeset}
}

func requireDistinctNodes(t *testing.T, cs CopySet) {
	t.Helper()
	seen := make(map[cluster.NodeIndex]bool)
	for _, s := range cs {
		require.False(t, seen[s.Node], "node %d used twice in %s", s.Node, cs)
		seen[s.Node] = true
	}
}

func domainsOf(cfg *cluster.Config, cs CopySet, scope cluster.LocationScope) map[string]bool {
	out := make(map[string]bool)
	for _, s := range cs {
		out[cfg.DomainOf(s, scope)] = true
	}
	return out
}

func nodeRef(i cluster.NodeIndex) *cluster.NodeIndex {
	return &i
}

// sequenceStrategy returns a new copyset on every call, built from a counter,
// so tests can tell selections apart.
type sequenceStrategy struct {
	mu     sync.Mutex
	calls  int
	factor int
	err    error
}

func (s *sequenceStrategy) Kind() Kind                     { return KindUnconstrained }
func (s *sequenceStrategy) ReplicationFactor() int         { return s.factor }
func (s *sequenceStrategy) Nodeset() cluster.StorageSet    { return nil }
func (s *sequenceStrategy) WriterView() cluster.StorageSet { return nil }
func (s *sequenceStrategy) strategy()                      {}

func (s *sequenceStrategy) Select(_ health.View, extras int) (CopySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	cs := make(CopySet, 0, s.factor+extras)
	for i := 0; i < s.factor+extras; i++ {
		cs = append(cs, cluster.ShardID{Node: cluster.NodeIndex(s.calls*100 + i)})
	}
	return cs, nil
}

func (s *sequenceStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
