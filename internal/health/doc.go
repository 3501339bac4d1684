// Package health provides the shard health view used by copyset placement.
//
// View is the contract placement depends on: whether a shard is writable
// right now and whether it is overloaded. Monitor implements it for the
// placement daemon by combining two sources:
//
//   - explicit per-shard states pushed by failure detection
//     (SetAvailability), e.g. a shard running out of space;
//   - periodic node probes (Start), which report every shard of a node as
//     unroutable after repeated probe failures.
//
// The view is shared and mutated concurrently with placement. Callers read
// it without assuming anything beyond a consistent answer per call.
package health
