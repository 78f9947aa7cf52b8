// SPDX-License-Identifier: MIT
/*
Package bitint holds the power-of-two helpers used to validate FFT frame
sizes and playback buffer lengths. Both functions are branch-light, allocate
nothing and are safe to call from any goroutine.

	size := bitint.NextPowerOfTwo(1000) // 1024
	ok := bitint.IsPowerOfTwo(2048)     // true

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two map to themselves: bits.Len(7) is 3, so 8 stays 8 instead of doubling.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0 map
// to 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so clearing its lowest set bit leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
