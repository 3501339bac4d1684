package placement

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/health"
)

// WriteContext carries per-write placement options.
type WriteContext struct {
	// Extras asks for that many best-effort copies beyond the replication
	// factor.
	Extras int
}

// Manager hands out the copyset for each write of one log epoch.
type Manager interface {
	// CopySet returns the shards the next record goes to.
	CopySet(wc WriteContext) (CopySet, error)

	// CheckConfigConsistency reports whether the manager was built against
	// the same writable shards cfg yields for its nodeset. A false result
	// means the owner must rebuild the pipeline.
	CheckConfigConsistency(cfg *cluster.Config) bool

	// Strategy returns the wrapped strategy.
	Strategy() Strategy
}

// ManagerOptions configures BuildManager.
type ManagerOptions struct {
	Sticky           bool
	BlockSize        int
	BlockMaxDuration time.Duration
	Metrics          *Metrics
	Logger           zerolog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// BuildManager wraps strategy in a sticky manager when opts.Sticky is set and
// in a pass-through manager otherwise.
func BuildManager(strategy Strategy, view health.View, opts ManagerOptions) Manager {
	if !opts.Sticky {
		return &PassThroughManager{strategy: strategy, view: view, metrics: opts.Metrics}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &StickyManager{
		strategy:  strategy,
		view:      view,
		blockSize: opts.BlockSize,
		maxAge:    opts.BlockMaxDuration,
		now:       now,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

func checkConsistency(s Strategy, cfg *cluster.Config) bool {
	return cfg.WriterView(s.Nodeset()).Equal(s.WriterView())
}

// PassThroughManager asks the strategy for a new copyset on every write.
type PassThroughManager struct {
	strategy Strategy
	view     health.View
	metrics  *Metrics
}

// CopySet selects a fresh copyset for the write.
func (m *PassThroughManager) CopySet(wc WriteContext) (CopySet, error) {
	cs, err := m.strategy.Select(m.view, wc.Extras)
	m.metrics.observeSelection(m.strategy.Kind(), err)
	return cs, err
}

// CheckConfigConsistency reports whether cfg yields the writer view the
// strategy was built with.
func (m *PassThroughManager) CheckConfigConsistency(cfg *cluster.Config) bool {
	return checkConsistency(m.strategy, cfg)
}

// Strategy returns the underlying strategy.
func (m *PassThroughManager) Strategy() Strategy {
	return m.strategy
}

type stickyBlock struct {
	copyset CopySet
	start   time.Time
	writes  int
	extras  int
}

// StickyManager reuses one copyset for a block of consecutive writes.
//
// A block ends, and the next write gets a fresh copyset, when one of its
// shards is no longer writable, when it has served BlockSize writes, or when
// it is older than BlockMaxDuration, checked in that order. Concurrent
// writers that find the block expired share a single new selection.
type StickyManager struct {
	strategy  Strategy
	view      health.View
	blockSize int
	maxAge    time.Duration
	now       func() time.Time
	metrics   *Metrics
	logger    zerolog.Logger

	mu         sync.Mutex
	block      *stickyBlock
	generation uint64
	rotations  singleflight.Group
}

// CopySet returns the current block's copyset, rotating to a fresh block
// first when the current one can no longer be used.
func (m *StickyManager) CopySet(wc WriteContext) (CopySet, error) {
	for {
		m.mu.Lock()
		blk, gen := m.block, m.generation
		m.mu.Unlock()

		if blk == nil {
			return m.rotate(gen, RotationFirst, wc)
		}
		if blk.extras != wc.Extras {
			return m.passThrough(wc)
		}

		unwritable := false
		for _, s := range blk.copyset {
			if !m.view.IsWritable(s) {
				unwritable = true
				break
			}
		}

		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			continue
		}
		var reason string
		switch {
		case unwritable:
			reason = RotationUnwritable
		case blk.writes >= m.blockSize:
			reason = RotationBlockSize
		case m.maxAge > 0 && m.now().Sub(blk.start) > m.maxAge:
			reason = RotationBlockAge
		}
		if reason == "" {
			blk.writes++
			m.mu.Unlock()
			return blk.copyset.Clone(), nil
		}
		m.mu.Unlock()
		return m.rotate(gen, reason, wc)
	}
}

// rotate replaces the block of generation gen with a fresh selection. Only
// one caller per generation runs the strategy; the others share its result.
func (m *StickyManager) rotate(gen uint64, reason string, wc WriteContext) (CopySet, error) {
	v, err, _ := m.rotations.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		m.mu.Lock()
		if m.generation != gen {
			blk := m.block
			m.mu.Unlock()
			return blk, nil
		}
		m.mu.Unlock()

		cs, err := m.strategy.Select(m.view, wc.Extras)
		m.metrics.observeSelection(m.strategy.Kind(), err)
		if err != nil {
			return nil, err
		}
		blk := &stickyBlock{copyset: cs, start: m.now(), extras: wc.Extras}

		m.mu.Lock()
		m.block = blk
		m.generation++
		m.mu.Unlock()

		m.metrics.observeRotation(reason)
		m.logger.Debug().Str("reason", reason).Str("copyset", cs.String()).Msg("sticky copyset rotated")
		return blk, nil
	})
	if err != nil {
		return nil, err
	}

	blk := v.(*stickyBlock)
	if blk.extras != wc.Extras {
		return m.passThrough(wc)
	}
	m.mu.Lock()
	if m.blockSize > 0 && blk.writes >= m.blockSize {
		// the writers sharing this rotation used up the new block
		m.mu.Unlock()
		return m.CopySet(wc)
	}
	blk.writes++
	m.mu.Unlock()
	return blk.copyset.Clone(), nil
}

func (m *StickyManager) passThrough(wc WriteContext) (CopySet, error) {
	cs, err := m.strategy.Select(m.view, wc.Extras)
	m.metrics.observeSelection(m.strategy.Kind(), err)
	return cs, err
}

// CheckConfigConsistency reports whether cfg yields the writer view the
// strategy was built with.
func (m *StickyManager) CheckConfigConsistency(cfg *cluster.Config) bool {
	return checkConsistency(m.strategy, cfg)
}

// Strategy returns the underlying strategy.
func (m *StickyManager) Strategy() Strategy {
	return m.strategy
}
