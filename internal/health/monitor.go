package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/dreamware/copyset/internal/cluster"
)

// Node health states.
const (
	NodeHealthy   = "healthy"
	NodeUnhealthy = "unhealthy"
	NodeUnknown   = "unknown"
)

// NodeHealth tracks the probe results of one storage node.
// Thread-safe: Protected by Monitor's mutex when accessed.
type NodeHealth struct {
	LastCheck        time.Time         // Timestamp of the last probe attempt
	LastHealthy      time.Time         // Timestamp of the last successful probe
	Status           string            // NodeHealthy, NodeUnhealthy or NodeUnknown
	Index            cluster.NodeIndex // Node being probed
	NumShards        int               // Shards on the node, as last reported by the node provider
	ConsecutiveFails int               // Number of consecutive failed probes
}

// ShardState is a point-in-time view of one shard.
type ShardState struct {
	Shard        cluster.ShardID `json:"shard"`
	Availability Availability    `json:"availability"`
}

// Monitor is the shard health view. Shard availability is set explicitly by
// failure detection (SetAvailability) and, at node granularity, by periodic
// probes: after maxFailures consecutive failed probes every shard of the node
// is reported unroutable until a probe succeeds again.
//
// Shards the monitor has never heard of are reported available; the static
// half of eligibility comes from the nodes configuration.
//
// Thread-safe: All methods are safe for concurrent access.
type Monitor struct {
	shards       map[cluster.ShardID]Availability   // Explicitly set shard states
	nodes        map[cluster.NodeIndex]*NodeHealth  // Probe state per node
	httpClient   *http.Client                       // HTTP client for node probes
	checkFunc    func(node cluster.NodeInfo) error  // Function to probe a node
	onUnwritable func(shard cluster.ShardID)        // Callback when a shard stops being writable
	ctx          context.Context                    // Context for cancellation
	cancel       context.CancelFunc                 // Cancel function for shutdown
	logger       zerolog.Logger                     // Structured logger
	interval     time.Duration                      // How often to probe nodes
	mu           sync.RWMutex                       // Protects shards and nodes
	wg           sync.WaitGroup                     // Wait group for graceful shutdown
	maxFailures  int                                // Failures before marking a node unroutable
}

// NewMonitor creates a health monitor that probes nodes every interval once
// started. Nodes are marked unroutable after 3 consecutive failures.
//
// Example:
//
//	monitor := health.NewMonitor(5 * time.Second)
//	go monitor.Start(ctx, func() []cluster.NodeInfo { return cfg.Nodes() })
func NewMonitor(interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		shards:      make(map[cluster.ShardID]Availability),
		nodes:       make(map[cluster.NodeIndex]*NodeHealth),
		interval:    interval,
		maxFailures: 3,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		logger: zerolog.Nop(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// SetOnUnwritable sets the callback invoked, in its own goroutine, whenever a
// shard goes from writable to unwritable.
func (m *Monitor) SetOnUnwritable(callback func(shard cluster.ShardID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUnwritable = callback
}

// SetCheckFunction overrides the node probe. The default probe issues
// GET <addr>/health.
func (m *Monitor) SetCheckFunction(checkFunc func(node cluster.NodeInfo) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFunc = checkFunc
}

// SetAvailability records the state of one shard.
func (m *Monitor) SetAvailability(shard cluster.ShardID, a Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasWritable := m.isWritableLocked(shard)
	if a == Available {
		delete(m.shards, shard)
	} else {
		m.shards[shard] = a
	}
	if wasWritable && !m.isWritableLocked(shard) {
		m.logger.Info().Stringer("shard", shard).Str("availability", string(a)).Msg("shard no longer writable")
		m.notifyLocked(shard)
	}
}

// Availability returns the effective state of a shard.
func (m *Monitor) Availability(shard cluster.ShardID) Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availabilityLocked(shard)
}

// IsWritable implements View.
func (m *Monitor) IsWritable(shard cluster.ShardID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isWritableLocked(shard)
}

// IsOverloaded implements View.
func (m *Monitor) IsOverloaded(shard cluster.ShardID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availabilityLocked(shard) == Overloaded
}

// Shards returns the shards whose state differs from Available, including
// the shards of unroutable nodes, ordered by shard id.
func (m *Monitor) Shards() []ShardState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[cluster.ShardID]bool)
	var out []ShardState
	for shard := range m.shards {
		seen[shard] = true
		out = append(out, ShardState{Shard: shard, Availability: m.availabilityLocked(shard)})
	}
	for idx, node := range m.nodes {
		if node.Status != NodeUnhealthy {
			continue
		}
		for i := 0; i < node.NumShards; i++ {
			shard := cluster.ShardID{Node: idx, Shard: cluster.ShardIndex(i)}
			if !seen[shard] {
				out = append(out, ShardState{Shard: shard, Availability: Unroutable})
			}
		}
	}
	sortShardStates(out)
	return out
}

func (m *Monitor) availabilityLocked(shard cluster.ShardID) Availability {
	if node, ok := m.nodes[shard.Node]; ok && node.Status == NodeUnhealthy {
		return Unroutable
	}
	if a, ok := m.shards[shard]; ok {
		return a
	}
	return Available
}

func (m *Monitor) isWritableLocked(shard cluster.ShardID) bool {
	return m.availabilityLocked(shard).Writable()
}

// notifyLocked fires the callback without holding the lock.
func (m *Monitor) notifyLocked(shard cluster.ShardID) {
	if m.onUnwritable != nil {
		go m.onUnwritable(shard)
	}
}

// Start probes the nodes returned by nodeProvider every interval until ctx
// or the monitor is canceled. It blocks; run it in its own goroutine.
func (m *Monitor) Start(ctx context.Context, nodeProvider func() []cluster.NodeInfo) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	m.mu.Lock()
	if m.checkFunc == nil {
		m.checkFunc = m.defaultHealthCheck
	}
	m.mu.Unlock()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("health monitor started")

	m.checkAllNodes(nodeProvider())

	for {
		select {
		case <-ticker.C:
			m.checkAllNodes(nodeProvider())
		case <-ctx.Done():
			m.logger.Info().Msg("health monitor stopping due to context cancellation")
			return
		case <-m.ctx.Done():
			m.logger.Info().Msg("health monitor stopping due to internal cancellation")
			return
		}
	}
}

// Stop cancels the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// checkAllNodes probes every node and forgets nodes no longer provided.
func (m *Monitor) checkAllNodes(nodes []cluster.NodeInfo) {
	current := make(map[cluster.NodeIndex]bool, len(nodes))
	for _, node := range nodes {
		current[node.Index] = true
		m.checkNode(node)
	}

	m.mu.Lock()
	for idx := range m.nodes {
		if !current[idx] {
			delete(m.nodes, idx)
			m.logger.Info().Uint16("node", uint16(idx)).Msg("removed node from health monitoring")
		}
	}
	m.mu.Unlock()
}

// checkNode probes a single node and updates its state. Shards of a node
// that crosses the failure threshold are reported through onUnwritable.
func (m *Monitor) checkNode(node cluster.NodeInfo) {
	m.mu.Lock()
	health, exists := m.nodes[node.Index]
	if !exists {
		health = &NodeHealth{
			Index:       node.Index,
			Status:      NodeUnknown,
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		m.nodes[node.Index] = health
	}
	health.NumShards = node.NumShards
	check := m.checkFunc
	m.mu.Unlock()

	err := check(node)

	m.mu.Lock()
	defer m.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		m.logger.Warn().Err(err).
			Uint16("node", uint16(node.Index)).
			Int("attempt", health.ConsecutiveFails).
			Int("max_failures", m.maxFailures).
			Msg("node probe failed")

		if health.ConsecutiveFails >= m.maxFailures && health.Status != NodeUnhealthy {
			var lost []cluster.ShardID
			for i := 0; i < node.NumShards; i++ {
				shard := cluster.ShardID{Node: node.Index, Shard: cluster.ShardIndex(i)}
				if m.isWritableLocked(shard) {
					lost = append(lost, shard)
				}
			}
			health.Status = NodeUnhealthy
			m.logger.Warn().Uint16("node", uint16(node.Index)).
				Int("failures", health.ConsecutiveFails).
				Msg("node marked unroutable")
			for _, shard := range lost {
				m.notifyLocked(shard)
			}
		}
		return
	}

	if health.Status == NodeUnhealthy {
		m.logger.Info().Uint16("node", uint16(node.Index)).Msg("node recovered")
	}
	health.Status = NodeHealthy
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
}

// defaultHealthCheck issues GET <addr>/health and expects 200 OK.
func (m *Monitor) defaultHealthCheck(node cluster.NodeInfo) error {
	url := node.Addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = fmt.Sprintf("http://%s", url)
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := m.httpClient.Get(url)
	if err != nil {
		return errors.Wrap(err, "health check request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// NodeHealth returns a copy of a node's probe state, or nil if the node is
// not monitored.
func (m *Monitor) NodeHealth(idx cluster.NodeIndex) *NodeHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health, ok := m.nodes[idx]
	if !ok {
		return nil
	}
	copied := *health
	return &copied
}

// IsNodeHealthy reports whether the node's last probes succeeded.
func (m *Monitor) IsNodeHealthy(idx cluster.NodeIndex) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health, ok := m.nodes[idx]
	return ok && health.Status == NodeHealthy
}
