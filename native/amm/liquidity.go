package amm

import "github.com/holiman/uint256"

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// LiquidityForAmount0 converts a token0 amount spanning [sqrtA, sqrtB] into
// liquidity units.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return nil, ErrDivisionByZero
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, q96)
	if err != nil {
		return nil, err
	}
	return MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
}

// LiquidityForAmount1 converts a token1 amount spanning [sqrtA, sqrtB] into
// liquidity units.
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return nil, ErrDivisionByZero
	}
	return MulDiv(amount1, q96, new(uint256.Int).Sub(sqrtB, sqrtA))
}

// Amount0Delta returns the token0 amount carried by liquidity across
// [sqrtA, sqrtB], rounded up when roundUp (mints charge up, burns pay down).
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrDivisionByZero
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		scaled, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return MulDivRoundingUp(scaled, one, sqrtA)
	}
	scaled, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(scaled, sqrtA), nil
}

// Amount1Delta returns the token1 amount carried by liquidity across
// [sqrtA, sqrtB], rounded up when roundUp.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, q96)
	}
	return MulDiv(liquidity, diff, q96)
}

// AmountsForLiquidity splits liquidity over [sqrtA, sqrtB] into the token
// amounts it represents at the spot ratio sqrtP: entirely token0 below the
// range, both inside, entirely token1 above.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)
	var err error
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		amount0, err = Amount0Delta(sqrtA, sqrtB, liquidity, roundUp)
		if err != nil {
			return nil, nil, err
		}
	case sqrtP.Cmp(sqrtB) < 0:
		amount0, err = Amount0Delta(sqrtP, sqrtB, liquidity, roundUp)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(sqrtA, sqrtP, liquidity, roundUp)
		if err != nil {
			return nil, nil, err
		}
	default:
		amount1, err = Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
		if err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}
