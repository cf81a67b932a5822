package reward

import "math/rand"

// Roller draws a uniformly random integer in [1, 100].
type Roller interface {
	Roll() int
}

// RandomRoller draws from math/rand's shared source, which is safe for
// concurrent use.
type RandomRoller struct{}

func (RandomRoller) Roll() int {
	return rand.Intn(100) + 1
}

// FixedRoller always returns the same draw.
type FixedRoller int

func (f FixedRoller) Roll() int { return int(f) }
