package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/config"
	"github.com/dreamware/copyset/internal/coordinator"
	"github.com/dreamware/copyset/internal/health"
	"github.com/dreamware/copyset/internal/placement"
	"github.com/dreamware/copyset/internal/replication"
)

type server struct {
	registry     *coordinator.Registry
	monitor      *health.Monitor
	gatherer     prometheus.Gatherer
	logger       zerolog.Logger
	topologyPath string

	// reloadMu serializes topology reloads.
	reloadMu sync.Mutex
	epochs   map[replication.LogID]replication.Epoch
}

// newServer loads the settings and topology named by d and installs a
// pipeline for every declared log.
func newServer(d config.Daemon, logger zerolog.Logger, reg *prometheus.Registry) (*server, error) {
	settings, err := config.LoadSettings(d.SettingsPath)
	if err != nil {
		return nil, err
	}
	settings = settings.ApplyEnv()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg, logs, err := config.LoadTopology(d.TopologyPath)
	if err != nil {
		return nil, err
	}
	if d.LocalNode != nil {
		if _, ok := cfg.Node(*d.LocalNode); !ok {
			return nil, errors.Newf("local node %d is not in the topology", *d.LocalNode)
		}
	}

	monitor := health.NewMonitor(d.ProbeInterval)
	monitor.SetLogger(logger.With().Str("component", "health").Logger())
	monitor.SetOnUnwritable(func(shard cluster.ShardID) {
		logger.Debug().Stringer("shard", shard).Msg("sticky copysets holding shard will rotate")
	})

	s := &server{
		registry: coordinator.NewRegistry(coordinator.Options{
			Config:    cfg,
			View:      monitor,
			Settings:  settings,
			LocalNode: d.LocalNode,
			Seed:      d.Seed,
			Metrics:   placement.NewMetrics(reg),
			Logger:    logger,
		}),
		monitor:      monitor,
		gatherer:     reg,
		logger:       logger,
		topologyPath: d.TopologyPath,
		epochs:       make(map[replication.LogID]replication.Epoch),
	}
	for _, l := range logs {
		if err := s.registry.Install(l.ID, l.Metadata); err != nil {
			return nil, err
		}
		s.epochs[l.ID] = l.Metadata.Epoch
	}
	return s, nil
}

// nodes feeds the health monitor the nodes of the current configuration
// that have an address to probe.
func (s *server) nodes() []cluster.NodeInfo {
	var out []cluster.NodeInfo
	for _, n := range s.registry.Config().Nodes() {
		if n.Addr != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.handleListLogs).Methods(http.MethodGet)
	r.HandleFunc("/logs/{id}/copyset", s.handleCopySet).Methods(http.MethodPost)
	r.HandleFunc("/shards", s.handleListShards).Methods(http.MethodGet)
	r.HandleFunc("/shards/{node}/{shard}", s.handleSetAvailability).Methods(http.MethodPut)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

type copySetRequest struct {
	Extras int `json:"extras"`
}

type copySetResponse struct {
	Log     string   `json:"log"`
	CopySet []string `json:"copyset"`
}

func (s *server) handleCopySet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "bad log id", http.StatusBadRequest)
		return
	}

	var req copySetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Extras < 0 {
		http.Error(w, "extras must not be negative", http.StatusBadRequest)
		return
	}

	logID := replication.LogID(id)
	cs, err := s.registry.CopySet(logID, placement.WriteContext{Extras: req.Extras})
	switch {
	case errors.Is(err, coordinator.ErrUnknownLog):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, placement.ErrInsufficientShards):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		s.logger.Error().Err(err).Str("log", logID.String()).Msg("copyset selection failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := copySetResponse{Log: logID.String(), CopySet: make([]string, len(cs))}
	for i, shard := range cs {
		resp.CopySet[i] = shard.String()
	}
	writeJSON(w, resp)
}

func (s *server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Logs []coordinator.LogInfo `json:"logs"`
	}{Logs: s.registry.Logs()})
}

type shardState struct {
	Shard        string `json:"shard"`
	Availability string `json:"availability"`
}

func (s *server) handleListShards(w http.ResponseWriter, r *http.Request) {
	states := s.monitor.Shards()
	out := make([]shardState, len(states))
	for i, st := range states {
		out[i] = shardState{Shard: st.Shard.String(), Availability: string(st.Availability)}
	}
	writeJSON(w, struct {
		Shards []shardState `json:"shards"`
	}{Shards: out})
}

func (s *server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	node, err := strconv.ParseUint(vars["node"], 10, 16)
	if err != nil {
		http.Error(w, "bad node index", http.StatusBadRequest)
		return
	}
	idx, err := strconv.ParseUint(vars["shard"], 10, 16)
	if err != nil {
		http.Error(w, "bad shard index", http.StatusBadRequest)
		return
	}
	shard := cluster.ShardID{Node: cluster.NodeIndex(node), Shard: cluster.ShardIndex(idx)}
	if !s.registry.Config().HasShard(shard) {
		http.Error(w, "unknown shard "+shard.String(), http.StatusNotFound)
		return
	}

	var req struct {
		Availability string `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	a, ok := health.ParseAvailability(req.Availability)
	if !ok {
		http.Error(w, "unknown availability "+req.Availability, http.StatusBadRequest)
		return
	}

	s.monitor.SetAvailability(shard, a)
	w.WriteHeader(http.StatusNoContent)
}

type reloadResponse struct {
	Rebuilt   []replication.LogID `json:"rebuilt"`
	Installed []replication.LogID `json:"installed"`
	Removed   []replication.LogID `json:"removed"`
}

// handleReload re-reads the topology file: pipelines are rebuilt when the
// nodes configuration changed under them, logs with a new epoch get a new
// pipeline and logs no longer declared are dropped.
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cfg, logs, err := config.LoadTopology(s.topologyPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp reloadResponse
	rebuilt, err := s.registry.Refresh(cfg)
	resp.Rebuilt = rebuilt
	if err != nil {
		s.logger.Error().Err(err).Msg("some pipelines could not be rebuilt")
	}

	declared := make(map[replication.LogID]bool, len(logs))
	for _, l := range logs {
		declared[l.ID] = true
		if epoch, ok := s.epochs[l.ID]; ok && epoch == l.Metadata.Epoch {
			continue
		}
		if err := s.registry.Install(l.ID, l.Metadata); err != nil {
			s.logger.Error().Err(err).Str("log", l.ID.String()).Msg("install failed")
			continue
		}
		s.epochs[l.ID] = l.Metadata.Epoch
		resp.Installed = append(resp.Installed, l.ID)
	}
	for _, info := range s.registry.Logs() {
		if !declared[info.ID] {
			s.registry.Remove(info.ID)
			delete(s.epochs, info.ID)
			resp.Removed = append(resp.Removed, info.ID)
		}
	}

	s.logger.Info().
		Int("rebuilt", len(resp.Rebuilt)).
		Int("installed", len(resp.Installed)).
		Int("removed", len(resp.Removed)).
		Uint64("config_version", cfg.Version()).
		Msg("topology reloaded")
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
