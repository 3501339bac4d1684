package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// NodeIndex identifies a node in the nodes configuration.
type NodeIndex uint16

// ShardIndex identifies a shard on a node.
type ShardIndex uint16

// ShardID is a (node, shard) pair, the unit of copy placement.
// Identity is stable for the lifetime of a nodeset.
type ShardID struct {
	Node  NodeIndex  `json:"node" yaml:"node"`
	Shard ShardIndex `json:"shard" yaml:"shard"`
}

// String formats the shard as N<node>:S<shard>.
func (s ShardID) String() string {
	return fmt.Sprintf("N%d:S%d", s.Node, s.Shard)
}

// Less orders shards by node, then by shard index.
func (s ShardID) Less(o ShardID) bool {
	if s.Node != o.Node {
		return s.Node < o.Node
	}
	return s.Shard < o.Shard
}

// Compare returns -1, 0 or 1; used with slices.SortFunc.
func (s ShardID) Compare(o ShardID) int {
	switch {
	case s == o:
		return 0
	case s.Less(o):
		return -1
	default:
		return 1
	}
}

// ParseShardID parses the N<node>:S<shard> form produced by String.
func ParseShardID(s string) (ShardID, error) {
	nodePart, shardPart, ok := strings.Cut(s, ":")
	if !ok || !strings.HasPrefix(nodePart, "N") || !strings.HasPrefix(shardPart, "S") {
		return ShardID{}, errors.Newf("invalid shard id %q, want N<node>:S<shard>", s)
	}
	node, err := strconv.ParseUint(nodePart[1:], 10, 16)
	if err != nil {
		return ShardID{}, errors.Wrapf(err, "invalid node index in %q", s)
	}
	shard, err := strconv.ParseUint(shardPart[1:], 10, 16)
	if err != nil {
		return ShardID{}, errors.Wrapf(err, "invalid shard index in %q", s)
	}
	return ShardID{Node: NodeIndex(node), Shard: ShardIndex(shard)}, nil
}

// StorageSet is an ordered list of shards, e.g. a nodeset or a copyset.
type StorageSet []ShardID

// Normalized returns a sorted copy without duplicates.
func (s StorageSet) Normalized() StorageSet {
	out := slices.Clone(s)
	slices.SortFunc(out, ShardID.Compare)
	return slices.Compact(out)
}

// Contains reports whether shard is in the set.
func (s StorageSet) Contains(shard ShardID) bool {
	return slices.Contains(s, shard)
}

// Equal reports whether both sets hold the same shards in the same order.
func (s StorageSet) Equal(o StorageSet) bool {
	return slices.Equal(s, o)
}

// String formats the set as a bracketed list of shard ids.
func (s StorageSet) String() string {
	parts := make([]string, len(s))
	for i, shard := range s {
		parts[i] = shard.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
