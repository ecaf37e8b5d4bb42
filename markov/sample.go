package markov

import (
	"math/rand/v2"
	"sort"
)

// Rand is the source of randomness used for sampling. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// globalRand draws from the math/rand/v2 top-level source, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// WeightedPick draws a key with probability proportional to its weight.
// Non-positive weights never win. It reports false when the mapping is empty
// or carries no positive weight.
func WeightedPick(rng Rand, weights map[string]int) (string, bool) {
	total := 0
	keys := make([]string, 0, len(weights))
	for key, w := range weights {
		if w <= 0 {
			continue
		}
		total += w
		keys = append(keys, key)
	}
	if total == 0 {
		return "", false
	}

	// Map iteration order is random; walk in key order so a seeded rng
	// reproduces the same draw.
	sort.Strings(keys)
	r := rng.IntN(total)
	for _, key := range keys {
		r -= weights[key]
		if r < 0 {
			return key, true
		}
	}
	return keys[len(keys)-1], true
}

// UniformPick returns one of keys with equal probability, ignoring any weight.
func UniformPick(rng Rand, keys []string) (string, bool) {
	if len(keys) == 0 {
		return "", false
	}
	return keys[rng.IntN(len(keys))], true
}
