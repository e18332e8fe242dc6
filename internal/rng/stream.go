// Package rng provides the single seeded random stream a generation run draws from.
package rng

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Stream is a seeded pseudo-random stream. Every draw advances the state.
// Not safe for concurrent use.
type Stream struct {
	src   *rand.PCGSource
	rnd   *rand.Rand
	draws uint64
}

// New creates a stream seeded with seed.
func New(seed int64) *Stream {
	src := &rand.PCGSource{}
	src.Seed(uint64(seed))
	return &Stream{src: src, rnd: rand.New(src)}
}

// Draws returns how many draws have been made.
func (s *Stream) Draws() uint64 {
	return s.draws
}

// IntInclusive returns a uniform integer in [lo, hi]. Any pair of ints is
// accepted; spans wider than MaxInt are drawn over uint64.
func (s *Stream) IntInclusive(lo, hi int) int {
	s.draws++
	if hi <= lo {
		return lo
	}
	span := uint64(hi) - uint64(lo)
	switch {
	case span < math.MaxInt:
		return lo + s.rnd.Intn(int(span)+1)
	case span == math.MaxUint64:
		return int(s.rnd.Uint64())
	default:
		return lo + int(s.rnd.Uint64n(span+1))
	}
}

// Float64 returns a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
	s.draws++
	return s.rnd.Float64()
}

// Normal returns a normally distributed value.
func (s *Stream) Normal(mu, sigma float64) float64 {
	s.draws++
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// Bernoulli returns true with probability p.
func (s *Stream) Bernoulli(p float64) bool {
	s.draws++
	return distuv.Bernoulli{P: p, Src: s.src}.Rand() == 1
}

// Bytes returns n pseudo-random bytes.
func (s *Stream) Bytes(n int) []byte {
	s.draws++
	out := make([]byte, n)
	var word [8]byte
	for i := 0; i < n; i += 8 {
		binary.LittleEndian.PutUint64(word[:], s.src.Uint64())
		copy(out[i:], word[:])
	}
	return out
}
