package replication

import (
	"github.com/cockroachdb/errors"

	"github.com/dreamware/copyset/internal/cluster"
)

// Epoch numbers the successive configurations of a log.
type Epoch uint32

// EpochMetaData is the placement input fixed when an epoch starts: the
// replication requirement, the nodeset and optional per-shard weights. It is
// never modified afterwards; a new epoch gets a new value.
type EpochMetaData struct {
	Weights     map[cluster.ShardID]float64
	Replication Property
	Nodeset     cluster.StorageSet
	Epoch       Epoch
}

// Validate checks the metadata is usable for placement.
func (m EpochMetaData) Validate() error {
	if m.Replication.IsEmpty() {
		return errors.New("epoch metadata has no replication property")
	}
	if len(m.Nodeset) == 0 {
		return errors.New("epoch metadata has an empty nodeset")
	}
	for shard, w := range m.Weights {
		if w < 0 {
			return errors.Newf("negative weight %v for shard %s", w, shard)
		}
	}
	return nil
}

// Weight returns the declared weight of a shard; shards without an entry
// weigh 1.
func (m EpochMetaData) Weight(s cluster.ShardID) float64 {
	if w, ok := m.Weights[s]; ok {
		return w
	}
	return 1
}
