package cluster

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// StorageState is the membership state of a node's shards.
type StorageState string

const (
	// StorageReadWrite shards accept new copies.
	StorageReadWrite StorageState = "read-write"
	// StorageReadOnly shards serve reads but take no new copies.
	StorageReadOnly StorageState = "read-only"
	// StorageDisabled shards are neither read nor written.
	StorageDisabled StorageState = "disabled"
)

// NodeInfo describes one storage node of the cluster.
type NodeInfo struct {
	Name         string       `json:"name" yaml:"name"`
	Addr         string       `json:"addr" yaml:"addr"`
	Location     NodeLocation `json:"location" yaml:"location"`
	StorageState StorageState `json:"storage_state" yaml:"storage_state"`
	Index        NodeIndex    `json:"index" yaml:"index"`
	NumShards    int          `json:"num_shards" yaml:"num_shards"`
}

// Config is an immutable snapshot of the nodes configuration. A new snapshot
// is built for every configuration change; snapshots are safe to share.
type Config struct {
	nodes   map[NodeIndex]NodeInfo
	version uint64
}

// NewConfig validates nodes and builds a configuration snapshot.
func NewConfig(version uint64, nodes []NodeInfo) (*Config, error) {
	c := &Config{
		nodes:   make(map[NodeIndex]NodeInfo, len(nodes)),
		version: version,
	}
	for _, n := range nodes {
		if _, dup := c.nodes[n.Index]; dup {
			return nil, errors.Newf("duplicate node index %d", n.Index)
		}
		if n.NumShards <= 0 {
			return nil, errors.Newf("node %d: num_shards must be positive, got %d", n.Index, n.NumShards)
		}
		switch n.StorageState {
		case "":
			n.StorageState = StorageReadWrite
		case StorageReadWrite, StorageReadOnly, StorageDisabled:
		default:
			return nil, errors.Newf("node %d: unknown storage state %q", n.Index, n.StorageState)
		}
		c.nodes[n.Index] = n
	}
	return c, nil
}

// Version returns the configuration version.
func (c *Config) Version() uint64 {
	return c.version
}

// Node returns the node with the given index.
func (c *Config) Node(idx NodeIndex) (NodeInfo, bool) {
	n, ok := c.nodes[idx]
	return n, ok
}

// Nodes returns all nodes ordered by index.
func (c *Config) Nodes() []NodeInfo {
	idxs := make([]NodeIndex, 0, len(c.nodes))
	for idx := range c.nodes {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	out := make([]NodeInfo, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, c.nodes[idx])
	}
	return out
}

// HasShard reports whether the shard exists in the configuration.
func (c *Config) HasShard(s ShardID) bool {
	n, ok := c.nodes[s.Node]
	return ok && int(s.Shard) < n.NumShards
}

// WriterView returns the shards of the nodeset that may take new copies
// according to storage membership, sorted and without duplicates.
func (c *Config) WriterView(nodeset StorageSet) StorageSet {
	out := make(StorageSet, 0, len(nodeset))
	for _, s := range nodeset.Normalized() {
		if !c.HasShard(s) {
			continue
		}
		if c.nodes[s.Node].StorageState == StorageReadWrite {
			out = append(out, s)
		}
	}
	return out
}

// DomainOf returns the name of the shard's failure domain at scope. At Node
// scope the domain is the node itself.
func (c *Config) DomainOf(s ShardID, scope LocationScope) string {
	if scope == ScopeNode {
		return "N" + strconv.Itoa(int(s.Node))
	}
	n, ok := c.nodes[s.Node]
	if !ok {
		return UnknownDomain
	}
	return n.Location.DomainName(scope)
}
