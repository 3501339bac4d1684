package placement

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
)

func newDomain(t *testing.T, cfg *cluster.Config, factor int, local cluster.NodeIndex, seed uint64) *DomainConstrained {
	t.Helper()
	d, err := NewDomainConstrained(cfg, allShards(cfg), DomainOptions{
		Scope:     cluster.ScopeRack,
		Factor:    factor,
		LocalNode: nodeRef(local),
		Seed:      seed,
	})
	require.NoError(t, err)
	return d
}

func TestDomainConstrainedSpreadsRacks(t *testing.T) {
	cfg := rackCluster(t, 3, 2, 1)
	d := newDomain(t, cfg, 2, 0, 11)
	view := health.NewMonitor(0)

	for i := 0; i < 300; i++ {
		cs, err := d.Select(view, 0)
		require.NoError(t, err)
		require.Len(t, cs, 2)
		assert.Len(t, domainsOf(cfg, cs, cluster.ScopeRack), 2, "copyset %s", cs)
	}
}

func TestDomainConstrainedLocalDomain(t *testing.T) {
	cfg := rackCluster(t, 4, 2, 1)
	d := newDomain(t, cfg, 2, 3, 5)
	view := health.NewMonitor(0)

	for i := 0; i < 100; i++ {
		cs, err := d.Select(view, 0)
		require.NoError(t, err)
		assert.Contains(t, cs, cluster.ShardID{Node: 3}, "local shard gets a copy")
	}

	view.SetAvailability(cluster.ShardID{Node: 3}, health.NoSpace)
	for i := 0; i < 100; i++ {
		cs, err := d.Select(view, 0)
		require.NoError(t, err)
		assert.Contains(t, cs, cluster.ShardID{Node: 2}, "local rack still gets a copy")
	}
}

func TestDomainConstrainedInsufficient(t *testing.T) {
	cfg := rackCluster(t, 3, 2, 1)
	d := newDomain(t, cfg, 2, 0, 1)

	view := health.NewMonitor(0)
	for _, n := range []cluster.NodeIndex{2, 3, 4, 5} {
		view.SetAvailability(cluster.ShardID{Node: n}, health.Unroutable)
	}

	_, err := d.Select(view, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientShards))

	var ise *InsufficientShardsError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, KindDomainConstrained, ise.Strategy)
	assert.Equal(t, cluster.ScopeRack, ise.Scope)
	assert.Equal(t, 2, ise.Factor)
	assert.Equal(t, 1, ise.EligibleDomains)
	assert.Equal(t, 2, ise.EligibleShards)
}

func TestDomainConstrainedReproducible(t *testing.T) {
	cfg := rackCluster(t, 5, 3, 2)
	a := newDomain(t, cfg, 3, 0, 99)
	b := newDomain(t, cfg, 3, 0, 99)
	view := health.NewMonitor(0)

	for i := 0; i < 50; i++ {
		csA, err := a.Select(view, 0)
		require.NoError(t, err)
		csB, err := b.Select(view, 0)
		require.NoError(t, err)
		assert.Equal(t, csA, csB)
	}
}

func TestDomainConstrainedUnknownLocation(t *testing.T) {
	nodes := []cluster.NodeInfo{
		{Index: 0, NumShards: 1, Location: cluster.MustParseLocation("rg.dc.cl.row.rack0")},
		{Index: 1, NumShards: 1},
		{Index: 2, NumShards: 1},
	}
	cfg, err := cluster.NewConfig(1, nodes)
	require.NoError(t, err)
	d := newDomain(t, cfg, 2, 0, 1)

	for i := 0; i < 100; i++ {
		cs, err := d.Select(health.NewMonitor(0), 0)
		require.NoError(t, err)
		assert.Contains(t, cs, cluster.ShardID{Node: 0})
		requireDistinctNodes(t, cs)
	}

	d3 := newDomain(t, cfg, 3, 0, 1)
	_, err = d3.Select(health.NewMonitor(0), 0)
	assert.True(t, errors.Is(err, ErrInsufficientShards), "nodes without location share one domain")
}

func TestDomainConstrainedExtras(t *testing.T) {
	cfg := rackCluster(t, 3, 2, 1)
	d := newDomain(t, cfg, 2, 0, 1)

	cs, err := d.Select(health.NewMonitor(0), 2)
	require.NoError(t, err)
	require.Len(t, cs, 4)
	requireDistinctNodes(t, cs)
	assert.Len(t, domainsOf(cfg, cs[:2], cluster.ScopeRack), 2)
}

func TestDomainConstrainedLocalityHistory(t *testing.T) {
	cfg := rackCluster(t, 4, 1, 1)
	d, err := NewDomainConstrained(cfg, allShards(cfg), DomainOptions{
		Scope:     cluster.ScopeRack,
		Factor:    2,
		LocalNode: nodeRef(0),
		Locality:  true,
		Seed:      3,
	})
	require.NoError(t, err)
	require.NotNil(t, d.history)

	counts := make(map[cluster.ShardID]int)
	for i := 0; i < 3000; i++ {
		cs, err := d.Select(health.NewMonitor(0), 0)
		require.NoError(t, err)
		for _, s := range cs {
			counts[s]++
		}
	}
	assert.Equal(t, 3000, counts[cluster.ShardID{Node: 0}])
	for n := cluster.NodeIndex(1); n < 4; n++ {
		assert.InDelta(t, 1000, counts[cluster.ShardID{Node: n}], 200)
	}
}

func TestNewDomainConstrainedErrors(t *testing.T) {
	cfg := rackCluster(t, 3, 1, 1)
	tests := []struct {
		name string
		opts DomainOptions
	}{
		{"node scope", DomainOptions{Scope: cluster.ScopeNode, Factor: 2, LocalNode: nodeRef(0)}},
		{"datacenter scope", DomainOptions{Scope: cluster.ScopeDataCenter, Factor: 2, LocalNode: nodeRef(0)}},
		{"zero factor", DomainOptions{Scope: cluster.ScopeRack, LocalNode: nodeRef(0)}},
		{"no local node", DomainOptions{Scope: cluster.ScopeRack, Factor: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDomainConstrained(cfg, allShards(cfg), tt.opts)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		})
	}
}
