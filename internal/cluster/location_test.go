package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want LocationScope
	}{
		{"node", ScopeNode},
		{"RACK", ScopeRack},
		{" row ", ScopeRow},
		{"cluster", ScopeCluster},
		{"datacenter", ScopeDataCenter},
		{"Region", ScopeRegion},
		{"root", ScopeRoot},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseScope("shelf")
	assert.Error(t, err)
}

func TestScopeOrdering(t *testing.T) {
	assert.Less(t, int(ScopeNode), int(ScopeRack))
	assert.Less(t, int(ScopeRack), int(ScopeRow))
	assert.Less(t, int(ScopeRow), int(ScopeCluster))
	assert.Less(t, int(ScopeCluster), int(ScopeDataCenter))
	assert.Less(t, int(ScopeDataCenter), int(ScopeRegion))
	assert.Less(t, int(ScopeRegion), int(ScopeRoot))
	assert.False(t, LocationScope(42).Valid())
	assert.Equal(t, "scope(42)", LocationScope(42).String())
}

func TestScopeJSON(t *testing.T) {
	var got struct {
		Scope LocationScope `json:"scope"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"scope":"rack"}`), &got))
	assert.Equal(t, ScopeRack, got.Scope)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scope":"rack"}`, string(out))
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("us.dc1.c1.row2.rack7")
	require.NoError(t, err)

	assert.Equal(t, "us", loc.DomainName(ScopeRegion))
	assert.Equal(t, "us.dc1", loc.DomainName(ScopeDataCenter))
	assert.Equal(t, "us.dc1.c1", loc.DomainName(ScopeCluster))
	assert.Equal(t, "us.dc1.c1.row2", loc.DomainName(ScopeRow))
	assert.Equal(t, "us.dc1.c1.row2.rack7", loc.DomainName(ScopeRack))
	assert.Equal(t, "", loc.DomainName(ScopeRoot))
	assert.Equal(t, "us.dc1.c1.row2.rack7", loc.String())
}

func TestParsePartialLocation(t *testing.T) {
	loc, err := ParseLocation("us.dc1..")
	require.NoError(t, err)
	assert.Equal(t, "us.dc1", loc.DomainName(ScopeDataCenter))
	assert.Equal(t, UnknownDomain, loc.DomainName(ScopeCluster))
	assert.Equal(t, UnknownDomain, loc.DomainName(ScopeRack))

	empty, err := ParseLocation("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, UnknownDomain, empty.DomainName(ScopeRegion))
}

func TestParseLocationErrors(t *testing.T) {
	for _, in := range []string{"a.b.c.d.e.f", "a..c", ".b"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLocation(in)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustParseLocation("a..c") })
}
