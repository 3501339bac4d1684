package placement

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// lockedRand is a seeded random source shared by concurrent selections.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uint64 implements rand.Source so the source can drive gonum samplers.
func (l *lockedRand) Uint64() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Uint64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// sampleIndex draws an index with probability proportional to its weight.
// Zero weights are never drawn. It returns false if no weight is positive.
func sampleIndex(weights []float64, rng *lockedRand) (int, bool) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if !(total > 0) {
		return -1, false
	}
	idx, ok := sampleuv.NewWeighted(weights, rng).Take()
	if ok && weights[idx] > 0 {
		return idx, true
	}
	// rounding on a draw at the very edge of the distribution
	for i, w := range weights {
		if w > 0 {
			return i, true
		}
	}
	return -1, false
}

// sampleWithoutReplacement draws up to k distinct indexes, each draw
// proportional to the weights of the indexes not drawn yet.
func sampleWithoutReplacement(weights []float64, k int, rng *lockedRand) []int {
	w := append([]float64(nil), weights...)
	out := make([]int, 0, k)
	for len(out) < k {
		idx, ok := sampleIndex(w, rng)
		if !ok {
			break
		}
		out = append(out, idx)
		w[idx] = 0
	}
	return out
}

// shuffleTake appends up to need shards from candidates to out in random
// order, skipping nodes already used. candidates is reordered in place.
func shuffleTake[T any](candidates []T, need int, rng *lockedRand, take func(T) bool) {
	taken := 0
	for i := 0; i < len(candidates) && taken < need; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
		if take(candidates[i]) {
			taken++
		}
	}
}
