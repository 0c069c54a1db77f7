package amm

import "github.com/holiman/uint256"

// Sqrt-price bounds corresponding to MinTick and MaxTick.
var (
	MinSqrtRatio = uint256.NewInt(4295128739)
	MaxSqrtRatio = uint256.MustFromHex("0xfffd8963efd1fc6a506488495d951d5263988d26")
)

// mulShiftFactors is the sqrt(1.0001) power ladder, one factor per bit of the
// absolute tick, each scaled by 2^128.
var mulShiftFactors = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// SqrtRatioAtTick returns sqrt(1.0001)^tick as a Q64.96 fixed-point value.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickRange
	}
	return sqrtRatioAtTick(tick), nil
}

func sqrtRatioAtTick(tick int32) *uint256.Int {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	var ratio *uint256.Int
	if absTick&0x1 != 0 {
		ratio = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	} else {
		ratio = uint256.MustFromHex("0x100000000000000000000000000000000")
	}
	for i, factor := range mulShiftFactors {
		if absTick&(1<<(uint(i)+1)) != 0 {
			ratio = new(uint256.Int).Rsh(new(uint256.Int).Mul(ratio, factor), 128)
		}
	}
	if tick > 0 {
		ratio = new(uint256.Int).Div(uMax, ratio)
	}
	// Scale from Q128.128 down to Q64.96, rounding up.
	result := new(uint256.Int).Div(ratio, q32)
	if rem := new(uint256.Int).Mod(ratio, q32); !rem.IsZero() {
		result = new(uint256.Int).Add(result, one)
	}
	return result
}

// TickAtSqrtRatio returns the greatest tick whose ratio is at most
// sqrtRatioX96. The input must lie in [MinSqrtRatio, MaxSqrtRatio).
func TickAtSqrtRatio(sqrtRatioX96 *uint256.Int) (int32, error) {
	if sqrtRatioX96 == nil || sqrtRatioX96.Cmp(MinSqrtRatio) < 0 || sqrtRatioX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrSqrtRatioRange
	}
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if sqrtRatioAtTick(mid).Cmp(sqrtRatioX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
