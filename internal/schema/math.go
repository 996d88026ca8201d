package schema

import "math/bits"

// MulDiv computes floor(a*b/denom) over non-negative amounts using a
// 128-bit intermediate, so share*claimable never overflows before the
// division. Returns false when denom is zero or the quotient does not fit
// in an Amount.
func MulDiv(a, b, denom Amount) (Amount, bool) {
	if a < 0 || b < 0 || denom <= 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(denom) {
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, uint64(denom))
	if quo > uint64(maxAmount) {
		return 0, false
	}
	return Amount(quo), true
}

const maxAmount = Amount(int64(^uint64(0) >> 1))
