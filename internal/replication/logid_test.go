package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/copyset/internal/cluster"
)

func TestLogIDKinds(t *testing.T) {
	tests := []struct {
		name     string
		id       LogID
		user     bool
		internal bool
		metadata bool
		str      string
	}{
		{"user", 42, true, false, false, "L42"},
		{"max user", UserLogIDMax, true, false, false, "L4611686018427386903"},
		{"internal", UserLogIDMax + 5, false, true, false, "L4611686018427386908"},
		{"metadata", MetaDataLogID(42), false, false, true, "M42"},
		{"invalid zero", 0, false, false, false, "L0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.user, tt.id.IsUser())
			assert.Equal(t, tt.internal, tt.id.IsInternal())
			assert.Equal(t, tt.metadata, tt.id.IsMetaData())
			assert.Equal(t, tt.str, tt.id.String())
		})
	}
}

func TestEpochMetaData(t *testing.T) {
	md := EpochMetaData{
		Epoch:       3,
		Replication: MustProperty(ScopeReplication{cluster.ScopeNode, 2}),
		Nodeset:     cluster.StorageSet{{Node: 1}, {Node: 2}},
		Weights:     map[cluster.ShardID]float64{{Node: 1}: 2.5},
	}
	assert.NoError(t, md.Validate())
	assert.Equal(t, 2.5, md.Weight(cluster.ShardID{Node: 1}))
	assert.Equal(t, 1.0, md.Weight(cluster.ShardID{Node: 2}))

	bad := md
	bad.Nodeset = nil
	assert.Error(t, bad.Validate())

	bad = md
	bad.Replication = Property{}
	assert.Error(t, bad.Validate())

	bad = md
	bad.Weights = map[cluster.ShardID]float64{{Node: 1}: -1}
	assert.Error(t, bad.Validate())
}
