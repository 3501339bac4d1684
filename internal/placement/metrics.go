package placement

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rotation reasons reported by the sticky manager.
const (
	RotationFirst      = "first"
	RotationUnwritable = "unwritable"
	RotationBlockSize  = "block_size"
	RotationBlockAge   = "block_age"
)

// Metrics holds the placement counters. A nil *Metrics records nothing.
type Metrics struct {
	selections       *prometheus.CounterVec
	rotations        *prometheus.CounterVec
	biasWarnings     prometheus.Counter
	configMismatches prometheus.Counter
}

// NewMetrics creates the placement counters and registers them on reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copyset_selections_total",
			Help: "Copyset selections by strategy and result.",
		}, []string{"strategy", "result"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copyset_sticky_rotations_total",
			Help: "Sticky copyset block rotations by reason.",
		}, []string{"reason"}),
		biasWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copyset_bias_warnings_total",
			Help: "Weighted placement imbalance warnings.",
		}),
		configMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copyset_config_mismatches_total",
			Help: "Placement pipelines found inconsistent with the nodes configuration.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.selections, m.rotations, m.biasWarnings, m.configMismatches)
	}
	return m
}

func (m *Metrics) observeSelection(kind Kind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case isInsufficient(err):
		result = "insufficient"
	default:
		result = "error"
	}
	m.selections.WithLabelValues(kind.String(), result).Inc()
}

func (m *Metrics) observeRotation(reason string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeBiasWarning() {
	if m == nil {
		return
	}
	m.biasWarnings.Inc()
}

// ObserveConfigMismatch counts a pipeline that failed its consistency
// check.
func (m *Metrics) ObserveConfigMismatch() {
	if m == nil {
		return
	}
	m.configMismatches.Inc()
}
