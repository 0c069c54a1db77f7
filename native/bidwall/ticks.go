package bidwall

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"rampart/native/amm"
)

// AlignTick snaps a raw tick to the nearest spacing multiple, toward
// positive infinity when roundUp is set and toward negative infinity
// otherwise. Alignment is exact for negative ticks as well.
func AlignTick(raw, spacing int32, roundUp bool) (int32, error) {
	if spacing <= 0 {
		return 0, amm.ErrTickSpacing
	}
	quotient := raw / spacing
	remainder := raw % spacing
	if roundUp {
		if remainder > 0 {
			quotient++
		}
	} else {
		if remainder < 0 {
			quotient--
		}
	}
	aligned := quotient * spacing
	if aligned < amm.MinTick || aligned > amm.MaxTick {
		return 0, amm.ErrTickRange
	}
	return aligned, nil
}

// wallRange picks the one-spacing-wide range adjacent to the current tick on
// the side that holds only the native currency: above the tick when native is
// token0, below it when native is token1. Bounds round away from spot so the
// range never straddles it; straddling would demand both currencies from a
// native-only budget.
func wallRange(currentTick, spacing int32, nativeIsToken0 bool) (int32, int32, error) {
	if nativeIsToken0 {
		lower, err := AlignTick(currentTick+1, spacing, true)
		if err != nil {
			return 0, 0, err
		}
		upper := lower + spacing
		if upper > amm.MaxTick {
			return 0, 0, amm.ErrTickRange
		}
		return lower, upper, nil
	}
	upper, err := AlignTick(currentTick-1, spacing, false)
	if err != nil {
		return 0, 0, err
	}
	lower := upper - spacing
	if lower < amm.MinTick {
		return 0, 0, amm.ErrTickRange
	}
	return lower, upper, nil
}

// reconcileTick resolves disagreement between the tick reported by the caller
// and the pool's own spot tick. The spot wins only when it sits on the far
// side of the supplied tick for the wall's direction; otherwise the supplied
// tick stands.
func reconcileTick(supplied, spot int32, nativeIsToken0 bool) int32 {
	if nativeIsToken0 && spot > supplied {
		return spot
	}
	if !nativeIsToken0 && spot < supplied {
		return spot
	}
	return supplied
}

// liquidityForNative converts a native-token budget into the liquidity a
// single-sided position over [lower, upper) can carry. The result rounds
// down, so redeploying never asks for more than the budget.
func liquidityForNative(lower, upper int32, amount *big.Int, nativeIsToken0 bool) (*big.Int, error) {
	sqrtLower, err := amm.SqrtRatioAtTick(lower)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := amm.SqrtRatioAtTick(upper)
	if err != nil {
		return nil, err
	}
	budget, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("bidwall: amount exceeds 256 bits")
	}
	var liquidity *uint256.Int
	if nativeIsToken0 {
		liquidity, err = amm.LiquidityForAmount0(sqrtLower, sqrtUpper, budget)
	} else {
		liquidity, err = amm.LiquidityForAmount1(sqrtLower, sqrtUpper, budget)
	}
	if err != nil {
		return nil, err
	}
	return liquidity.ToBig(), nil
}
