package game

import "math/rand/v2"

// Rand is the randomness machines draw from. *rand.Rand satisfies it, which
// is what tests pass for reproducible games.
type Rand interface {
	IntN(n int) int
	Perm(n int) []int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

// NewRand returns a Rand backed by the runtime's concurrency-safe source, so
// one value can be shared by every room.
func NewRand() Rand {
	return globalRand{}
}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Perm(n int) []int                   { return rand.Perm(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
