package rng

import "math/rand/v2"

// Rand is the source of randomness used by the simulation. Tests substitute
// a scripted implementation.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type global struct{}

func (global) IntN(n int) int   { return rand.IntN(n) }
func (global) Float64() float64 { return rand.Float64() }

// Default returns a Rand backed by the process-wide generator. It is safe for
// concurrent use.
func Default() Rand { return global{} }

// Int returns a value in [min, max] inclusive.
func Int(r Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + r.IntN(max-min+1)
}

// Chance100 reports whether a roll in [1, 100] lands at or below percent.
// 0 never succeeds, 100 always does.
func Chance100(r Rand, percent float64) bool {
	return float64(Int(r, 1, 100)) <= percent
}

// Pick returns a random element of values, or "" when values is empty.
func Pick(r Rand, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[r.IntN(len(values))]
}
