package coordinator

import (
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/config"
	"github.com/dreamware/copyset/internal/health"
	"github.com/dreamware/copyset/internal/placement"
	"github.com/dreamware/copyset/internal/replication"
)

// ErrUnknownLog is returned for a log with no installed pipeline.
var ErrUnknownLog = errors.New("unknown log")

// LogInfo describes an installed pipeline.
//
// It is a snapshot: the registry returns a fresh value on every call and
// never updates one it has handed out.
type LogInfo struct {
	// ID is the log the pipeline serves.
	ID replication.LogID `json:"id"`

	// Epoch is the epoch whose metadata the pipeline was built from.
	Epoch replication.Epoch `json:"epoch"`

	// Strategy names the placement strategy chosen for the epoch.
	Strategy string `json:"strategy"`

	// Replication is the replication property, e.g. "{rack: 2, node: 3}".
	Replication string `json:"replication"`

	// Nodeset lists the epoch's shards.
	Nodeset []string `json:"nodeset"`

	// Writers lists the shards storage membership allowed writes to when
	// the pipeline was built.
	Writers []string `json:"writers"`
}

// Options configures a Registry.
type Options struct {
	// Config is the initial nodes configuration. Required.
	Config *cluster.Config

	// View is the shard health every pipeline selects against. Required.
	View health.View

	// Settings apply to every pipeline built by the registry.
	Settings config.Settings

	// LocalNode is the node the daemon runs on; domain-constrained logs
	// need it.
	LocalNode *cluster.NodeIndex

	// Seed makes pipelines reproducible: the same seed and install order
	// give every pipeline the same random source.
	Seed uint64

	Metrics *placement.Metrics
	Logger  zerolog.Logger
}

type pipeline struct {
	metadata replication.EpochMetaData
	manager  placement.Manager
}

// Registry maps logs to their placement pipelines, one manager per log built
// from the log's current epoch metadata.
//
// Architecture:
//
//	┌─────────────────────────────────────┐
//	│            Registry                 │
//	├─────────────────────────────────────┤
//	│  pipelines: map[LogID]→pipeline     │
//	│  cfg: current nodes configuration   │
//	│  mu: RWMutex for thread safety      │
//	├─────────────────────────────────────┤
//	│  LogID → Manager → CopySet          │
//	│  L42 → sticky/domain → [N1 N4 N7]   │
//	└─────────────────────────────────────┘
//
// Concurrency Model:
//   - CopySet takes a read lock only to find the manager; selection runs
//     without registry locks held
//   - Install, Remove and Refresh take the write lock to swap pipelines
//   - Pipelines are built outside the lock
type Registry struct {
	pipelines map[replication.LogID]*pipeline
	cfg       *cluster.Config
	opts      Options
	mu        sync.RWMutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRegistry creates an empty registry.
//
// Example:
//
//	registry := coordinator.NewRegistry(coordinator.Options{
//	    Config: cfg,
//	    View:   monitor,
//	    Settings: config.Defaults(),
//	    LocalNode: &self,
//	})
//	err := registry.Install(42, md)
func NewRegistry(opts Options) *Registry {
	return &Registry{
		pipelines: make(map[replication.LogID]*pipeline),
		cfg:       opts.Config,
		opts:      opts,
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed>>32|opts.Seed<<32)),
	}
}

// Install builds the pipeline for a log epoch and makes it current,
// replacing the pipeline of any previous epoch.
//
// Parameters:
//   - id: the log
//   - md: the epoch metadata, immutable once installed
//
// Returns:
//   - nil on success
//   - an error marked placement.ErrInvalidConfiguration if no strategy can
//     serve the metadata; the previous pipeline, if any, stays in place
func (r *Registry) Install(id replication.LogID, md replication.EpochMetaData) error {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	m, err := r.build(id, md, cfg)
	if err != nil {
		return errors.Wrapf(err, "installing log %s epoch %d", id, md.Epoch)
	}

	r.mu.Lock()
	r.pipelines[id] = &pipeline{metadata: md, manager: m}
	r.mu.Unlock()

	r.opts.Logger.Info().
		Str("log", id.String()).
		Uint32("epoch", uint32(md.Epoch)).
		Str("strategy", m.Strategy().Kind().String()).
		Msg("placement pipeline installed")
	return nil
}

func (r *Registry) build(id replication.LogID, md replication.EpochMetaData, cfg *cluster.Config) (placement.Manager, error) {
	r.rngMu.Lock()
	seed := rand.NewPCG(r.rng.Uint64(), r.rng.Uint64())
	r.rngMu.Unlock()

	logger := r.opts.Logger
	return placement.NewManager(placement.Params{
		LogID:     id,
		Metadata:  md,
		Config:    cfg,
		LocalNode: r.opts.LocalNode,
		Settings:  r.opts.Settings,
		Rand:      rand.New(seed),
		Metrics:   r.opts.Metrics,
		Logger:    &logger,
	}, r.opts.View)
}

// Remove drops the pipeline of a log. It reports whether one was installed.
func (r *Registry) Remove(id replication.LogID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pipelines[id]
	delete(r.pipelines, id)
	return ok
}

// CopySet returns the copyset for the next record of a log.
//
// Returns:
//   - the copyset on success
//   - ErrUnknownLog if the log has no pipeline
//   - an error marked placement.ErrInsufficientShards if not enough
//     writable shards are available right now
func (r *Registry) CopySet(id replication.LogID, wc placement.WriteContext) (placement.CopySet, error) {
	r.mu.RLock()
	p, ok := r.pipelines[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLog, "log %s", id)
	}
	return p.manager.CopySet(wc)
}

// Logs returns the installed pipelines ordered by log id.
func (r *Registry) Logs() []LogInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LogInfo, 0, len(r.pipelines))
	for id, p := range r.pipelines {
		s := p.manager.Strategy()
		out = append(out, LogInfo{
			ID:          id,
			Epoch:       p.metadata.Epoch,
			Strategy:    s.Kind().String(),
			Replication: p.metadata.Replication.String(),
			Nodeset:     shardNames(s.Nodeset()),
			Writers:     shardNames(s.WriterView()),
		})
	}
	slices.SortFunc(out, func(a, b LogInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Config returns the nodes configuration pipelines are currently built
// against.
func (r *Registry) Config() *cluster.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Refresh switches the registry to a new nodes configuration and rebuilds
// every pipeline whose writable shards changed under it.
//
// Pipelines that still match are kept, so their sticky copysets survive.
// A pipeline that cannot be rebuilt keeps serving from its old manager and
// its error is included in the returned error.
//
// Returns:
//   - the logs whose pipelines were rebuilt, ordered by id
//   - the combined rebuild errors, or nil
func (r *Registry) Refresh(cfg *cluster.Config) ([]replication.LogID, error) {
	r.mu.Lock()
	r.cfg = cfg
	snapshot := make(map[replication.LogID]*pipeline, len(r.pipelines))
	ids := make([]replication.LogID, 0, len(r.pipelines))
	for id, p := range r.pipelines {
		snapshot[id] = p
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)

	var (
		rebuilt []replication.LogID
		errs    error
	)
	for _, id := range ids {
		p := snapshot[id]
		if p.manager.CheckConfigConsistency(cfg) {
			continue
		}
		r.opts.Metrics.ObserveConfigMismatch()
		r.opts.Logger.Warn().
			Err(errors.Mark(errors.Newf("log %s epoch %d", id, p.metadata.Epoch), placement.ErrStateInconsistency)).
			Uint64("config_version", cfg.Version()).
			Msg("rebuilding placement pipeline")

		m, err := r.build(id, p.metadata, cfg)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "rebuilding log %s", id))
			continue
		}

		r.mu.Lock()
		if r.pipelines[id] == p {
			r.pipelines[id] = &pipeline{metadata: p.metadata, manager: m}
			rebuilt = append(rebuilt, id)
		}
		r.mu.Unlock()
	}
	return rebuilt, errs
}

func shardNames(set cluster.StorageSet) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = s.String()
	}
	return out
}
