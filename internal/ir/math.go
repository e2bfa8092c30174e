package ir

import "math/bits"

// BitWidth returns the number of bits needed to count up to n, i.e.
// ceil(log2(n)) with both 0 and 1 mapping to 0.
func BitWidth(n uint64) uint64 {
	if n < 2 {
		return 0
	}
	w := uint64(bits.Len64(n) - 1)
	if n&(n-1) != 0 {
		w++
	}
	return w
}
