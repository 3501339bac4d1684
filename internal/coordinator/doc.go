// Package coordinator keeps one placement pipeline per log for the placement
// daemon and routes copyset requests to it.
//
// # Overview
//
// A pipeline is the placement.Manager built for the current epoch of a log.
// The Registry builds pipelines with placement.NewManager, so the strategy,
// sticky behaviour and locality follow the daemon's settings, and every
// pipeline draws its random source from the registry seed.
//
//	┌─────────────────────────────────────┐
//	│            REGISTRY                 │
//	├─────────────────────────────────────┤
//	│  Install(log, epoch metadata)       │
//	│    └─ placement.NewManager          │
//	│  CopySet(log, write context)        │
//	│    └─ Manager.CopySet               │
//	│  Refresh(nodes configuration)       │
//	│    └─ CheckConfigConsistency        │
//	│       └─ rebuild stale pipelines    │
//	└─────────────────────────────────────┘
//
// # Configuration changes
//
// A pipeline captures the writable shards of its nodeset when it is built.
// Refresh compares that capture with a new nodes configuration and rebuilds
// the pipelines that no longer match; the others keep their state, including
// the sticky copyset being served. Mismatches are counted in
// copyset_config_mismatches_total.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Copyset selection never
// runs under the registry lock, so a slow selection on one log does not block
// requests for others.
//
// # Example
//
//	registry := coordinator.NewRegistry(coordinator.Options{
//	    Config:    cfg,
//	    View:      monitor,
//	    Settings:  settings,
//	    LocalNode: &self,
//	    Metrics:   placement.NewMetrics(prometheus.DefaultRegisterer),
//	    Logger:    logger,
//	})
//	for _, spec := range logs {
//	    if err := registry.Install(spec.ID, spec.Metadata); err != nil {
//	        return err
//	    }
//	}
//	copyset, err := registry.CopySet(42, placement.WriteContext{})
package coordinator
