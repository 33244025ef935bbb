package core

import "math/rand"

// RandomInRange returns a uniformly distributed value in [lo, hi].
// Arguments may be given in either order.
func RandomInRange(a, b uint32) uint32 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	span := uint64(hi) - uint64(lo) + 1
	return lo + uint32(rand.Uint64()%span)
}
