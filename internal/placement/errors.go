package placement

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/dreamware/copyset/internal/cluster"
)

var (
	// ErrInvalidConfiguration marks replication settings placement cannot
	// act on. It is fatal to the epoch's pipeline and is never retried.
	ErrInvalidConfiguration = errors.New("invalid placement configuration")

	// ErrInsufficientShards marks a selection that could not find enough
	// writable shards or domains. It is transient: health may change.
	ErrInsufficientShards = errors.New("insufficient writable shards")

	// ErrStateInconsistency marks a pipeline whose nodeset no longer matches
	// the nodes configuration and must be rebuilt by its owner.
	ErrStateInconsistency = errors.New("placement pipeline inconsistent with nodes configuration")
)

// InsufficientShardsError reports what a failed selection asked for and what
// it found.
type InsufficientShardsError struct {
	Strategy        Kind
	Scope           cluster.LocationScope
	Factor          int
	EligibleShards  int
	EligibleDomains int
}

// Error describes how far the eligible shards fall short.
func (e *InsufficientShardsError) Error() string {
	if e.Strategy == KindUnconstrained {
		return fmt.Sprintf("%s placement needs %d writable shards, found %d",
			e.Strategy, e.Factor, e.EligibleShards)
	}
	return fmt.Sprintf("%s placement needs %d %s domains, found %d eligible domains with %d writable shards",
		e.Strategy, e.Factor, e.Scope, e.EligibleDomains, e.EligibleShards)
}

// Is makes errors.Is(err, ErrInsufficientShards) hold.
func (e *InsufficientShardsError) Is(target error) bool {
	return target == ErrInsufficientShards
}

func insufficient(kind Kind, scope cluster.LocationScope, factor, shards, domains int) error {
	return errors.Mark(&InsufficientShardsError{
		Strategy:        kind,
		Scope:           scope,
		Factor:          factor,
		EligibleShards:  shards,
		EligibleDomains: domains,
	}, ErrInsufficientShards)
}

func invalidConfigf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidConfiguration)
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientShards)
}
