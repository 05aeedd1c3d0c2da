package dice

import (
	"math/rand"
	"testing"
)

func TestRollPairMatchesSeededSource(t *testing.T) {
	seed := int64(42)
	rng := rand.New(rand.NewSource(seed))
	want := Pair{Die1: rng.Intn(6) + 1, Die2: rng.Intn(6) + 1}

	got := RollPair(seed)
	if got != want {
		t.Fatalf("RollPair(%d) = %+v, want %+v", seed, got, want)
	}
	if got.Total() != want.Die1+want.Die2 {
		t.Fatalf("Total() = %d, want %d", got.Total(), want.Die1+want.Die2)
	}
}

func TestRollPairIsDeterministicPerSeed(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		first := RollPair(seed)
		second := RollPair(seed)
		if first != second {
			t.Fatalf("seed %d produced %+v then %+v", seed, first, second)
		}
	}
}

func TestRollPairStaysOnDieFaces(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		pair := RollPair(seed)
		if pair.Die1 < 1 || pair.Die1 > 6 || pair.Die2 < 1 || pair.Die2 > 6 {
			t.Fatalf("seed %d rolled off the die: %+v", seed, pair)
		}
	}
}
