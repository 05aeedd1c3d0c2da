// Package dice provides the deterministic seeded rolls behind action
// resolution.
package dice

import "math/rand"

// actionDieSides is fixed by the resolution rules: outcomes tier on 2d6.
const actionDieSides = 6

// Pair holds the two action dice in rolled order. The individual faces
// matter beyond the sum: double ones and double sixes override modifiers.
type Pair struct {
	Die1 int
	Die2 int
}

// Total is the unmodified dice sum.
func (p Pair) Total() int { return p.Die1 + p.Die2 }

// RollPair rolls the action dice for seed.
//
// The same seed always yields the same pair in the same order. Executed
// rolls persist their seed, so any stored roll can be replayed exactly.
func RollPair(seed int64) Pair {
	rng := rand.New(rand.NewSource(seed))
	return Pair{
		Die1: rng.Intn(actionDieSides) + 1,
		Die2: rng.Intn(actionDieSides) + 1,
	}
}
