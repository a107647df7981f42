package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Saturating arithmetic for allocation sizing. A saturated result pins at
// the maximum of the type, which callers treat as an invalid size.

func maxOf[T constraints.Unsigned]() T {
	var zero T
	return ^zero
}

// SatAdd returns a+b, pinned at the type maximum on overflow.
func SatAdd[T constraints.Unsigned](a, b T) T {
	s := a + b
	if s < a {
		return maxOf[T]()
	}
	return s
}

// SatMul returns a*b, pinned at the type maximum on overflow.
func SatMul[T constraints.Unsigned](a, b T) T {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/a != b {
		return maxOf[T]()
	}
	return p
}

// SizeValid reports whether a computed size is usable: the saturated
// maximum is reserved as the invalid value, as is anything beyond the
// addressable range.
func SizeValid(n uint64) bool {
	return n != math.MaxUint64 && n <= uint64(math.MaxInt)
}
