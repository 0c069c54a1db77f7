package amm

import "github.com/holiman/uint256"

var (
	one  = uint256.NewInt(1)
	q32  = new(uint256.Int).Lsh(uint256.NewInt(1), 32)
	q96  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	uMax = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
)

// MulDiv computes floor(a*b/denominator) with a full 512-bit intermediate
// product, failing when the result exceeds 256 bits or the denominator is
// zero. Inputs are never mutated.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator == nil || denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivRoundingUp is MulDiv with the quotient rounded toward positive
// infinity.
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	result, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if rem := new(uint256.Int).MulMod(a, b, denominator); !rem.IsZero() {
		if result.Eq(uMax) {
			return nil, ErrOverflow
		}
		result = new(uint256.Int).Add(result, one)
	}
	return result, nil
}
