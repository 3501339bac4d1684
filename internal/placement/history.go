package placement

import (
	"sync"
)

// historyDecay is applied to every count on each recorded selection, so the
// history covers roughly the last few hundred copysets.
const historyDecay = 0.995

// localityHistory tracks how often each domain received copies recently and
// discounts domains that got more than their fair share.
type localityHistory struct {
	mu      sync.Mutex
	counts  map[string]float64
	total   float64
	domains int
}

func newLocalityHistory(domains int) *localityHistory {
	if domains < 1 {
		domains = 1
	}
	return &localityHistory{
		counts:  make(map[string]float64),
		domains: domains,
	}
}

// record adds one copyset's domains to the history.
func (h *localityHistory) record(domains []string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for d := range h.counts {
		h.counts[d] *= historyDecay
	}
	h.total *= historyDecay
	for _, d := range domains {
		h.counts[d]++
		h.total++
	}
}

// discount returns the factor in (0, 1] applied to a domain's selection
// weight. Domains at or below their fair share are not discounted.
func (h *localityHistory) discount(domain string) float64 {
	if h == nil {
		return 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.total == 0 {
		return 1
	}
	over := h.counts[domain] / h.total * float64(h.domains)
	if over <= 1 {
		return 1
	}
	return 1 / over
}
