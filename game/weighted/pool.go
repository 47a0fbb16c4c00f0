// Package weighted implements draw-without-replacement over weighted ids.
package weighted

import (
	"math"
	"sort"

	"github.com/kasuganosora/raidsim/server/game/rng"
)

// Pool holds ids with relative weights. Weights need not sum to anything in
// particular. A Pool is not safe for concurrent use.
type Pool struct {
	ids     []string
	weights []float64
	rng     rng.Rand
}

// New builds a Pool from entries. Ids are ordered so that draws are
// reproducible for a given Rand.
func New(entries map[string]float64, r rng.Rand) *Pool {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = entries[id]
	}
	if r == nil {
		r = rng.Default()
	}
	return &Pool{ids: ids, weights: weights, rng: r}
}

// Len returns the number of ids left in the pool.
func (p *Pool) Len() int { return len(p.ids) }

// DrawAndRemove draws up to n distinct ids, each with probability proportional
// to its weight among the ids still in the pool. Ids with a non-positive weight
// are only drawn once every positive weight is gone, and then uniformly.
func (p *Pool) DrawAndRemove(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(p.ids) {
		n = len(p.ids)
	}
	drawn := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := p.pick()
		drawn = append(drawn, p.ids[idx])
		p.ids = append(p.ids[:idx], p.ids[idx+1:]...)
		p.weights = append(p.weights[:idx], p.weights[idx+1:]...)
	}
	return drawn
}

func (p *Pool) pick() int {
	total := 0.0
	last := -1
	for i, w := range p.weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if total <= 0 {
		return p.rng.IntN(len(p.ids))
	}
	target := p.rng.Float64() * total
	cumulative := 0.0
	for i, w := range p.weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if cumulative > target {
			return i
		}
	}
	// float rounding can leave target == total
	return last
}

// ReduceWeightValues divides every weight by the greatest common divisor of
// all weights so the pool keeps the same proportions with smaller numbers.
// A single entry is set to 1. Non-integral weights are left untouched.
func ReduceWeightValues(weights map[string]float64) {
	if len(weights) == 0 {
		return
	}
	if len(weights) == 1 {
		for id := range weights {
			weights[id] = 1
		}
		return
	}
	var divisor int64
	for _, w := range weights {
		if w != math.Trunc(w) || w <= 0 {
			return
		}
		divisor = gcd(divisor, int64(w))
	}
	if divisor <= 1 {
		return
	}
	for id, w := range weights {
		weights[id] = w / float64(divisor)
	}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
