package rng

import "sync"

// Sequence replays fixed values. Once a list is exhausted it yields zero.
type Sequence struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

// NewSequence returns a Rand that yields ints from IntN (reduced modulo n)
// and floats from Float64, in order.
func NewSequence(ints []int, floats []float64) *Sequence {
	return &Sequence{ints: ints, floats: floats}
}

func (s *Sequence) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 || n <= 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}
