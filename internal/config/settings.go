package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/copyset/internal/cluster"
)

// Settings are the cluster-wide knobs copyset placement reads. Placement
// consumes a snapshot; it never changes settings itself.
type Settings struct {
	// CopysetLocalityMinScope is the smallest biggest-replication-scope for
	// which locality biasing is turned on.
	CopysetLocalityMinScope cluster.LocationScope `yaml:"copyset_locality_min_scope"`

	// WeightedCopysetSelector forces the weighted strategy for every log.
	WeightedCopysetSelector bool `yaml:"weighted_copyset_selector"`

	// StickyCopysets reuses a copyset for a block of consecutive writes.
	StickyCopysets bool `yaml:"sticky_copysets"`

	// StickyCopysetsBlockSize is the number of writes in a sticky block.
	StickyCopysetsBlockSize int `yaml:"sticky_copysets_block_size"`

	// StickyCopysetsBlockMaxTime bounds the age of a sticky block.
	StickyCopysetsBlockMaxTime time.Duration `yaml:"sticky_copysets_block_max_time"`

	// BiasWarningThreshold is the ratio between observed and expected share
	// of writes above which the weighted strategy reports imbalance.
	BiasWarningThreshold float64 `yaml:"bias_warning_threshold"`

	// BiasCheckInterval is the number of weighted selections between two
	// balance checks.
	BiasCheckInterval int `yaml:"bias_check_interval"`

	// BiasWarningInterval is the minimum time between two imbalance
	// warnings for the same epoch.
	BiasWarningInterval time.Duration `yaml:"bias_warning_interval"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		CopysetLocalityMinScope:    cluster.ScopeRack,
		WeightedCopysetSelector:    false,
		StickyCopysets:             true,
		StickyCopysetsBlockSize:    10000,
		StickyCopysetsBlockMaxTime: time.Second,
		BiasWarningThreshold:       1.5,
		BiasCheckInterval:          10000,
		BiasWarningInterval:        time.Minute,
	}
}

// Validate checks that settings are usable.
func (s Settings) Validate() error {
	if !s.CopysetLocalityMinScope.Valid() {
		return errors.Newf("invalid copyset_locality_min_scope %d", int(s.CopysetLocalityMinScope))
	}
	if s.StickyCopysets {
		if s.StickyCopysetsBlockSize <= 0 {
			return errors.Newf("sticky_copysets_block_size must be positive, got %d", s.StickyCopysetsBlockSize)
		}
		if s.StickyCopysetsBlockMaxTime <= 0 {
			return errors.Newf("sticky_copysets_block_max_time must be positive, got %s", s.StickyCopysetsBlockMaxTime)
		}
	}
	if s.BiasWarningThreshold <= 1 {
		return errors.Newf("bias_warning_threshold must be greater than 1, got %v", s.BiasWarningThreshold)
	}
	if s.BiasCheckInterval <= 0 {
		return errors.Newf("bias_check_interval must be positive, got %d", s.BiasCheckInterval)
	}
	return nil
}

// LoadSettings reads settings from a YAML file on top of Defaults. An empty
// path yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "reading settings %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "parsing settings %s", path)
	}
	if err := s.Validate(); err != nil {
		return s, errors.Wrapf(err, "settings %s", path)
	}
	return s, nil
}

// ApplyEnv overrides settings from COPYSET_* environment variables. Values
// that do not parse are ignored.
func (s Settings) ApplyEnv() Settings {
	if v := os.Getenv("COPYSET_LOCALITY_MIN_SCOPE"); v != "" {
		if scope, err := cluster.ParseScope(v); err == nil {
			s.CopysetLocalityMinScope = scope
		}
	}
	s.WeightedCopysetSelector = getenvBool("COPYSET_WEIGHTED_SELECTOR", s.WeightedCopysetSelector)
	s.StickyCopysets = getenvBool("COPYSET_STICKY", s.StickyCopysets)
	s.StickyCopysetsBlockSize = getenvInt("COPYSET_STICKY_BLOCK_SIZE", s.StickyCopysetsBlockSize)
	s.StickyCopysetsBlockMaxTime = getenvDuration("COPYSET_STICKY_BLOCK_MAX_TIME", s.StickyCopysetsBlockMaxTime)
	return s
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
