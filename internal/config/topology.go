package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/replication"
)

// LogSpec is the epoch metadata of one log as declared in a topology file.
type LogSpec struct {
	Metadata replication.EpochMetaData
	ID       replication.LogID
}

type topologyFile struct {
	Nodes   []cluster.NodeInfo `yaml:"nodes"`
	Logs    []logFile          `yaml:"logs"`
	Version uint64             `yaml:"version"`
}

type logFile struct {
	Replication map[string]int     `yaml:"replication"`
	Weights     map[string]float64 `yaml:"weights"`
	Nodeset     []string           `yaml:"nodeset"`
	ID          uint64             `yaml:"id"`
	Epoch       uint32             `yaml:"epoch"`
}

// LoadTopology reads a YAML topology file describing the nodes configuration
// and the logs to place.
//
// Example:
//
//	version: 1
//	nodes:
//	  - index: 0
//	    addr: http://10.0.0.1:4440
//	    location: us.dc1.c1.row1.rack1
//	    num_shards: 2
//	logs:
//	  - id: 1
//	    epoch: 1
//	    replication: {rack: 2, node: 3}
//	    nodeset: [N0:S0, N1:S0, N2:S0, N3:S0]
//	    weights: {N0:S0: 2}
func LoadTopology(path string) (*cluster.Config, []LogSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading topology %s", path)
	}
	cfg, logs, err := ParseTopology(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "topology %s", path)
	}
	return cfg, logs, nil
}

// ParseTopology is LoadTopology on an in-memory document.
func ParseTopology(data []byte) (*cluster.Config, []LogSpec, error) {
	var f topologyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, errors.Wrap(err, "parsing topology")
	}
	cfg, err := cluster.NewConfig(f.Version, f.Nodes)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[replication.LogID]bool, len(f.Logs))
	logs := make([]LogSpec, 0, len(f.Logs))
	for _, lf := range f.Logs {
		id := replication.LogID(lf.ID)
		if seen[id] {
			return nil, nil, errors.Newf("log %s declared twice", id)
		}
		seen[id] = true

		spec, err := lf.toSpec()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "log %s", id)
		}
		logs = append(logs, spec)
	}
	return cfg, logs, nil
}

func (lf logFile) toSpec() (LogSpec, error) {
	prop, err := replication.FromMap(lf.Replication)
	if err != nil {
		return LogSpec{}, err
	}
	nodeset := make(cluster.StorageSet, 0, len(lf.Nodeset))
	for _, s := range lf.Nodeset {
		shard, err := cluster.ParseShardID(s)
		if err != nil {
			return LogSpec{}, err
		}
		nodeset = append(nodeset, shard)
	}
	var weights map[cluster.ShardID]float64
	if len(lf.Weights) > 0 {
		weights = make(map[cluster.ShardID]float64, len(lf.Weights))
		for s, w := range lf.Weights {
			shard, err := cluster.ParseShardID(s)
			if err != nil {
				return LogSpec{}, err
			}
			weights[shard] = w
		}
	}
	md := replication.EpochMetaData{
		Epoch:       replication.Epoch(lf.Epoch),
		Replication: prop,
		Nodeset:     nodeset,
		Weights:     weights,
	}
	if err := md.Validate(); err != nil {
		return LogSpec{}, err
	}
	return LogSpec{ID: replication.LogID(lf.ID), Metadata: md}, nil
}
