// Package math holds the randomized refresh timing used by live price panels.
package math

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Sampler draws refresh delays for a Poisson process, i.e. exponentially
// distributed gaps between events. Delays are clamped to [0.1x, 10x] of the
// mean so a panel never refreshes in a tight loop or goes quiet for long.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler with a fixed seed
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Delay returns a delay in milliseconds with the given mean
func (s *Sampler) Delay(meanMs float64) int {
	s.mu.Lock()
	x := s.rng.ExpFloat64()
	s.mu.Unlock()
	return clampDelay(x*meanMs, meanMs)
}

func clampDelay(d, meanMs float64) int {
	if meanMs <= 0 || math.IsNaN(d) {
		return 0
	}
	lo, hi := 0.1*meanMs, 10*meanMs
	return int(math.Round(math.Min(math.Max(d, lo), hi)))
}
