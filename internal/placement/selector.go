package placement

import (
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/config"
	"github.com/dreamware/copyset/internal/health"
	"github.com/dreamware/copyset/internal/replication"
)

// Params are the inputs of strategy selection for one log epoch.
type Params struct {
	LogID    replication.LogID
	Metadata replication.EpochMetaData
	Config   *cluster.Config

	// LocalNode is the node the selection runs on. Domain-constrained
	// placement fails without it.
	LocalNode *cluster.NodeIndex

	Settings config.Settings

	// Rand seeds the strategy. Nil uses a randomly seeded source.
	Rand *rand.Rand

	// Metrics and Logger are optional.
	Metrics *Metrics
	Logger  *zerolog.Logger
}

func (p Params) logger() zerolog.Logger {
	if p.Logger == nil {
		return zerolog.Nop()
	}
	return *p.Logger
}

func (p Params) seed() uint64 {
	if p.Rand == nil {
		return rand.Uint64()
	}
	return p.Rand.Uint64()
}

// SelectStrategy picks and builds the placement strategy for a log epoch.
//
// Decision order:
//  1. Weighted when the epoch declares weights, the replication property has
//     no (scope, factor) form, or the weighted selector is forced on.
//  2. Unconstrained for node-scope replication or a single copy.
//  3. DomainConstrained for rack, row, cluster and region scopes.
//
// Any other scope, or a domain-constrained log without a local node, fails
// with an error marked ErrInvalidConfiguration. SelectStrategy has no side
// effects besides drawing one seed from p.Rand.
func SelectStrategy(p Params) (Strategy, error) {
	if p.Config == nil {
		return nil, invalidConfigf("log %s: no nodes configuration", p.LogID)
	}
	if err := p.Metadata.Validate(); err != nil {
		return nil, invalidConfigf("log %s: %v", p.LogID, err)
	}
	rep := p.Metadata.Replication
	simple, isSimple := rep.Simple()

	if !isSimple || len(p.Metadata.Weights) > 0 || p.Settings.WeightedCopysetSelector {
		return NewWeighted(p.Config, WeightedOptions{
			LogID:               p.LogID,
			Metadata:            p.Metadata,
			Locality:            rep.BiggestScope() >= p.Settings.CopysetLocalityMinScope,
			BiasWarnings:        p.LogID.IsUser(),
			BiasThreshold:       p.Settings.BiasWarningThreshold,
			BiasCheckInterval:   p.Settings.BiasCheckInterval,
			BiasWarningInterval: p.Settings.BiasWarningInterval,
			Seed:                p.seed(),
			Logger:              p.logger(),
			Metrics:             p.Metrics,
		})
	}

	if simple.Scope == cluster.ScopeNode || simple.Factor == 1 {
		return NewUnconstrained(p.Config, p.Metadata.Nodeset, simple.Factor, p.seed())
	}

	switch simple.Scope {
	case cluster.ScopeRack, cluster.ScopeRow, cluster.ScopeCluster, cluster.ScopeRegion:
	default:
		return nil, invalidConfigf("log %s: unsupported replication scope %s", p.LogID, simple.Scope)
	}
	if p.LocalNode == nil {
		return nil, invalidConfigf("log %s: %s-scope placement requires the local node", p.LogID, simple.Scope)
	}
	return NewDomainConstrained(p.Config, p.Metadata.Nodeset, DomainOptions{
		Scope:     simple.Scope,
		Factor:    simple.Factor,
		LocalNode: p.LocalNode,
		Locality:  simple.Scope >= p.Settings.CopysetLocalityMinScope,
		Seed:      p.seed(),
	})
}

// NewManager selects the strategy for p and wraps it in the manager the
// settings ask for.
func NewManager(p Params, view health.View) (Manager, error) {
	s, err := SelectStrategy(p)
	if err != nil {
		return nil, err
	}
	logger := p.logger().With().Str("log", p.LogID.String()).Str("strategy", s.Kind().String()).Logger()
	logger.Debug().
		Uint32("epoch", uint32(p.Metadata.Epoch)).
		Str("replication", p.Metadata.Replication.String()).
		Int("writers", len(s.WriterView())).
		Bool("sticky", p.Settings.StickyCopysets).
		Msg("placement pipeline built")
	return BuildManager(s, view, ManagerOptions{
		Sticky:           p.Settings.StickyCopysets,
		BlockSize:        p.Settings.StickyCopysetsBlockSize,
		BlockMaxDuration: p.Settings.StickyCopysetsBlockMaxTime,
		Metrics:          p.Metrics,
		Logger:           logger,
	}), nil
}
