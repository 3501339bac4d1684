// Package replication holds the per-epoch placement inputs: log ids, the
// replication property and the epoch metadata that binds a property to a
// nodeset.
//
// A Property is a set of (scope, factor) requirements, for example
//
//	{region: 2, node: 3}
//
// meaning three copies on three distinct nodes, spread over at least two
// regions. Properties with a single requirement, such as {rack: 3}, also have
// a simple form (Simple) that the cheaper placement strategies understand.
package replication
