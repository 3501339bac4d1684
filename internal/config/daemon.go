package config

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dreamware/copyset/internal/cluster"
)

// Daemon is the process configuration of placementd, read from the
// environment.
//
//   - PLACEMENT_ADDR: listen address (default ":8090")
//   - PLACEMENT_TOPOLOGY: topology YAML file (required)
//   - PLACEMENT_SETTINGS: settings YAML file (optional)
//   - PLACEMENT_NODE: index of the local node (optional)
//   - PLACEMENT_SEED: seed of the placement random source (default 1)
//   - PLACEMENT_PROBE_INTERVAL: node probe interval (default 5s)
//   - LOG_LEVEL, LOG_FORMAT: zerolog level and "console" or "json"
type Daemon struct {
	LocalNode     *cluster.NodeIndex
	Addr          string
	TopologyPath  string
	SettingsPath  string
	LogLevel      string
	LogFormat     string
	ProbeInterval time.Duration
	Seed          uint64
}

// DaemonFromEnv reads the daemon configuration.
func DaemonFromEnv() (Daemon, error) {
	d := Daemon{
		Addr:          getenv("PLACEMENT_ADDR", ":8090"),
		TopologyPath:  getenv("PLACEMENT_TOPOLOGY", ""),
		SettingsPath:  getenv("PLACEMENT_SETTINGS", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "console"),
		ProbeInterval: getenvDuration("PLACEMENT_PROBE_INTERVAL", 5*time.Second),
		Seed:          1,
	}
	if d.TopologyPath == "" {
		return d, errors.New("PLACEMENT_TOPOLOGY is required")
	}
	if v := getenv("PLACEMENT_SEED", ""); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return d, errors.Wrap(err, "PLACEMENT_SEED")
		}
		d.Seed = seed
	}
	if v := getenv("PLACEMENT_NODE", ""); v != "" {
		idx, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return d, errors.Wrap(err, "PLACEMENT_NODE")
		}
		node := cluster.NodeIndex(idx)
		d.LocalNode = &node
	}
	return d, nil
}
