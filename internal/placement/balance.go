package placement

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dreamware/copyset/internal/cluster"
	"github.com/dreamware/copyset/internal/replication"
)

// balanceTracker compares how often each shard is picked with the share its
// declared weight entitles it to. It only reports; it never changes what the
// weighted strategy selects.
type balanceTracker struct {
	mu         sync.Mutex
	expected   map[cluster.ShardID]float64
	picks      map[cluster.ShardID]uint64
	copies     uint64
	selections int

	checkEvery int
	threshold  float64
	warn       bool
	limiter    *rate.Limiter

	logID   replication.LogID
	epoch   replication.Epoch
	logger  zerolog.Logger
	metrics *Metrics
}

type balanceOptions struct {
	logID      replication.LogID
	epoch      replication.Epoch
	checkEvery int
	threshold  float64
	interval   time.Duration
	warn       bool
	logger     zerolog.Logger
	metrics    *Metrics
}

func newBalanceTracker(weights map[cluster.ShardID]float64, opts balanceOptions) *balanceTracker {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	expected := make(map[cluster.ShardID]float64, len(weights))
	if total > 0 {
		for s, w := range weights {
			if w > 0 {
				expected[s] = w / total
			}
		}
	}
	limit := rate.Inf
	if opts.interval > 0 {
		limit = rate.Every(opts.interval)
	}
	return &balanceTracker{
		expected:   expected,
		picks:      make(map[cluster.ShardID]uint64),
		checkEvery: opts.checkEvery,
		threshold:  opts.threshold,
		warn:       opts.warn,
		limiter:    rate.NewLimiter(limit, 1),
		logID:      opts.logID,
		epoch:      opts.epoch,
		logger:     opts.logger,
		metrics:    opts.metrics,
	}
}

// record accounts for one copyset and runs a check every checkEvery
// selections.
func (b *balanceTracker) record(cs CopySet) {
	b.mu.Lock()
	for _, s := range cs {
		b.picks[s]++
	}
	b.copies += uint64(len(cs))
	b.selections++
	if b.checkEvery <= 0 || b.selections < b.checkEvery {
		b.mu.Unlock()
		return
	}
	shard, ratio := b.worstLocked()
	b.picks = make(map[cluster.ShardID]uint64)
	b.copies = 0
	b.selections = 0
	b.mu.Unlock()

	if ratio <= b.threshold || !b.warn {
		return
	}
	b.metrics.observeBiasWarning()
	if !b.limiter.Allow() {
		return
	}
	b.logger.Warn().
		Str("log", b.logID.String()).
		Uint32("epoch", uint32(b.epoch)).
		Str("shard", shard.String()).
		Float64("ratio", ratio).
		Float64("threshold", b.threshold).
		Msg("weighted placement is out of balance with declared weights")
}

// worstLocked returns the shard whose observed share of copies deviates most
// from its expected share, as a ratio >= 1 in either direction. A shard never
// picked is rated as if it had received a single copy.
func (b *balanceTracker) worstLocked() (cluster.ShardID, float64) {
	var worst cluster.ShardID
	ratio := 1.0
	if b.copies == 0 {
		return worst, ratio
	}
	for s, exp := range b.expected {
		observed := float64(b.picks[s]) / float64(b.copies)
		var r float64
		switch {
		case observed == 0:
			r = exp * float64(b.copies)
		case observed >= exp:
			r = observed / exp
		default:
			r = exp / observed
		}
		if r > ratio || (r == ratio && s.Less(worst)) {
			worst, ratio = s, r
		}
	}
	return worst, ratio
}
