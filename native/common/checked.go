package common

import (
	"fmt"
	"math"

	stakeerr "stakingcore/core/errors"
)

// CheckedAdd returns a+b or ErrOverflow when the sum exceeds the uint64 range.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d", stakeerr.ErrOverflow, a, b)
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrUnderflow when b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", stakeerr.ErrUnderflow, a, b)
	}
	return a - b, nil
}

// CheckedMul returns a*b or ErrOverflow when the product exceeds the uint64
// range.
func CheckedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, fmt.Errorf("%w: %d * %d", stakeerr.ErrOverflow, a, b)
	}
	return a * b, nil
}
