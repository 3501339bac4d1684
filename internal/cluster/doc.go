// Package cluster describes the storage cluster as seen by copyset placement:
// shard identities, the failure-domain hierarchy of node locations, and
// immutable snapshots of the nodes configuration.
//
// # Overview
//
// Placement decisions are made over shards, not nodes. A shard is a
// (node, shard-index) pair and is the smallest unit that can hold a copy of
// a record. Nodes carry a location which places them in the failure-domain
// hierarchy:
//
//	region ─► datacenter ─► cluster ─► row ─► rack ─► node
//
// A location string lists the labels from the coarsest level down, separated
// by dots:
//
//	"us-east.dc1.c3.row2.rack7"
//
// The domain of a node at a given scope is the prefix of its location down to
// that scope, so two nodes are in the same rack only if they also share the
// row, cluster, datacenter and region. At node scope every node is its own
// domain.
//
// # Core Components
//
// ShardID / StorageSet: shard identity and ordered shard lists (nodesets and
// copysets). Shards order by node index, then shard index; placement relies
// on this ordering to be reproducible under a fixed random seed.
//
// LocationScope / NodeLocation: scope levels and parsed location paths.
// Nodes with a missing or partial location are grouped into a single
// UnknownDomain at the scopes they do not specify.
//
// Config: an immutable nodes configuration snapshot. WriterView filters a
// nodeset down to the shards storage membership allows writes to; it is the
// static half of eligibility (the runtime half comes from the health view).
//
// # Concurrency Model
//
// Config and the value types are immutable after construction and may be
// shared freely between goroutines. A configuration change produces a new
// Config rather than mutating an existing one.
package cluster
