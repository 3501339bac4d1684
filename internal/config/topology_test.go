package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/replication"
)

const sampleTopology = `
version: 4
nodes:
  - index: 0
    name: n0
    addr: http://10.0.0.1:4440
    location: us.dc1.c1.row1.rack1
    num_shards: 2
  - index: 1
    name: n1
    location: us.dc1.c1.row1.rack2
    num_shards: 2
    storage_state: read-only
logs:
  - id: 1
    epoch: 3
    replication: {rack: 2, node: 3}
    nodeset: ["N0:S0", "N1:S0"]
    weights: {"N0:S0": 2.5}
  - id: 2
    replication: {node: 2}
    nodeset: ["N0:S1", "N1:S1"]
`

func TestParseTopology(t *testing.T) {
	cfg, logs, err := ParseTopology([]byte(sampleTopology))
	require.NoError(t, err)

	assert.Equal(t, uint64(4), cfg.Version())
	n0, ok := cfg.Node(0)
	require.True(t, ok)
	assert.Equal(t, "us.dc1.c1.row1.rack1", n0.Location.String())
	assert.Equal(t, cluster.StorageReadWrite, n0.StorageState)
	n1, ok := cfg.Node(1)
	require.True(t, ok)
	assert.Equal(t, cluster.StorageReadOnly, n1.StorageState)

	require.Len(t, logs, 2)
	assert.Equal(t, replication.LogID(1), logs[0].ID)
	assert.Equal(t, replication.Epoch(3), logs[0].Metadata.Epoch)
	assert.Equal(t, "{rack: 2, node: 3}", logs[0].Metadata.Replication.String())
	assert.Equal(t, cluster.StorageSet{{Node: 0}, {Node: 1}}, logs[0].Metadata.Nodeset)
	assert.Equal(t, 2.5, logs[0].Metadata.Weight(cluster.ShardID{Node: 0}))
	assert.Nil(t, logs[1].Metadata.Weights)
}

func TestParseTopologyErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad location", "nodes: [{index: 0, num_shards: 1, location: 'a..b'}]"},
		{"duplicate log", "logs: [{id: 1, replication: {node: 1}, nodeset: ['N0:S0']}, {id: 1, replication: {node: 1}, nodeset: ['N0:S0']}]"},
		{"bad replication", "logs: [{id: 1, replication: {shelf: 1}, nodeset: ['N0:S0']}]"},
		{"bad shard", "logs: [{id: 1, replication: {node: 1}, nodeset: ['0:0']}]"},
		{"bad weight shard", "logs: [{id: 1, replication: {node: 1}, nodeset: ['N0:S0'], weights: {x: 1}}]"},
		{"empty nodeset", "logs: [{id: 1, replication: {node: 1}}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseTopology([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTopology(t *testing.T) {
	path := writeFile(t, "topology.yaml", sampleTopology)
	cfg, logs, err := LoadTopology(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Nodes(), 2)
	assert.Len(t, logs, 2)

	_, _, err = LoadTopology(path + ".missing")
	assert.Error(t, err)
}
