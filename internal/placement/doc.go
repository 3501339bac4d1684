// Package placement decides which storage shards receive the copies of each
// record written to a log.
//
// # Overview
//
// Placement works in two layers. A Strategy turns the writable shards of an
// epoch's nodeset into a copyset. A Manager wraps the strategy and decides,
// for every write, whether the previous copyset can be reused or a new one
// must be selected.
//
//	      write
//	        │
//	┌───────▼────────┐   fresh copyset   ┌──────────────────────┐
//	│    Manager     ├──────────────────►│       Strategy       │
//	│ sticky / pass  │◄──────────────────┤ unconstrained        │
//	└───────┬────────┘                   │ domain-constrained   │
//	        │                            │ weighted             │
//	     copyset                         └──────────┬───────────┘
//	                                                │ IsWritable
//	                                     ┌──────────▼───────────┐
//	                                     │     health.View      │
//	                                     └──────────────────────┘
//
// # Choosing a strategy
//
// SelectStrategy inspects the epoch metadata and the settings:
//
//   - Weighted when the epoch declares shard weights, when the replication
//     property constrains more than one scope, or when the weighted selector
//     is forced. Locality biasing is on when the biggest scope is at least
//     the configured locality scope. Imbalance warnings are reported for user
//     logs only.
//   - Unconstrained for node-scope replication and single-copy logs.
//   - DomainConstrained for rack, row, cluster and region scopes. It needs
//     the local node.
//
// Every strategy draws from its own seeded source, so a fixed seed gives the
// same sequence of copysets for the same health.
//
// # Sticky copysets
//
// StickyManager keeps a copyset for a block of writes to improve batching on
// the storage side. The block ends when one of its shards stops being
// writable, when it has served its write budget, or when it grows too old.
// Concurrent writers that observe the end of a block share one new selection.
//
// # Errors
//
// Errors are marked with ErrInvalidConfiguration, ErrInsufficientShards or
// ErrStateInconsistency and are meant to be checked with errors.Is.
// InsufficientShardsError carries what the failing selection needed and
// found. Nothing is retried here and the number of copies is never reduced.
//
// # Metrics
//
// Metrics counts selections, sticky rotations, imbalance warnings and
// configuration mismatches. A nil *Metrics disables them.
package placement
