package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/copyset/internal/cluster"
)

func TestNewProperty(t *testing.T) {
	tests := []struct {
		name       string
		reqs       []ScopeReplication
		want       string
		factor     int
		biggest    cluster.LocationScope
		simple     bool
		simpleForm SimpleReplication
	}{
		{
			name:       "node only",
			reqs:       []ScopeReplication{{cluster.ScopeNode, 3}},
			want:       "{node: 3}",
			factor:     3,
			biggest:    cluster.ScopeNode,
			simple:     true,
			simpleForm: SimpleReplication{cluster.ScopeNode, 3},
		},
		{
			name:       "implied node requirement is dropped",
			reqs:       []ScopeReplication{{cluster.ScopeNode, 3}, {cluster.ScopeRack, 3}},
			want:       "{rack: 3}",
			factor:     3,
			biggest:    cluster.ScopeRack,
			simple:     true,
			simpleForm: SimpleReplication{cluster.ScopeRack, 3},
		},
		{
			name:    "multi scope",
			reqs:    []ScopeReplication{{cluster.ScopeNode, 4}, {cluster.ScopeRegion, 2}, {cluster.ScopeRack, 3}},
			want:    "{region: 2, rack: 3, node: 4}",
			factor:  4,
			biggest: cluster.ScopeRegion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProperty(tt.reqs...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.factor, p.ReplicationFactor())
			assert.Equal(t, tt.biggest, p.BiggestScope())

			simple, ok := p.Simple()
			assert.Equal(t, tt.simple, ok)
			if tt.simple {
				assert.Equal(t, tt.simpleForm, simple)
			}
		})
	}
}

func TestNewPropertyErrors(t *testing.T) {
	tests := []struct {
		name string
		reqs []ScopeReplication
	}{
		{"empty", nil},
		{"zero factor", []ScopeReplication{{cluster.ScopeRack, 0}}},
		{"root scope", []ScopeReplication{{cluster.ScopeRoot, 1}}},
		{"invalid scope", []ScopeReplication{{cluster.LocationScope(99), 1}}},
		{"duplicate scope", []ScopeReplication{{cluster.ScopeRack, 2}, {cluster.ScopeRack, 3}}},
		{"bigger scope wants more", []ScopeReplication{{cluster.ScopeRack, 3}, {cluster.ScopeNode, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProperty(tt.reqs...)
			assert.Error(t, err)
		})
	}
}

func TestFactorAt(t *testing.T) {
	p := MustProperty(ScopeReplication{cluster.ScopeRegion, 2}, ScopeReplication{cluster.ScopeNode, 3})

	assert.Equal(t, 3, p.FactorAt(cluster.ScopeNode))
	assert.Equal(t, 2, p.FactorAt(cluster.ScopeRack))
	assert.Equal(t, 2, p.FactorAt(cluster.ScopeRegion))
	assert.Equal(t, 0, p.FactorAt(cluster.ScopeRoot))
}

func TestFromMap(t *testing.T) {
	p, err := FromMap(map[string]int{"rack": 2, "node": 3})
	require.NoError(t, err)
	assert.Equal(t, "{rack: 2, node: 3}", p.String())

	_, err = FromMap(map[string]int{"shelf": 2})
	assert.Error(t, err)
}

func TestEmptyProperty(t *testing.T) {
	var p Property
	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.ReplicationFactor())
	_, ok := p.Simple()
	assert.False(t, ok)
}
