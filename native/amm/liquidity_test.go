package amm

import (
	"testing"

	"github.com/holiman/uint256"
)

func ratioAt(t *testing.T, tick int32) *uint256.Int {
	t.Helper()
	ratio, err := SqrtRatioAtTick(tick)
	if err != nil {
		t.Fatalf("ratio at tick %d: %v", tick, err)
	}
	return ratio
}

func TestLiquidityAmountRoundTrip(t *testing.T) {
	lower := ratioAt(t, -60)
	upper := ratioAt(t, 60)
	amount := uint256.NewInt(1_000_000_000)

	liq1, err := LiquidityForAmount1(lower, upper, amount)
	if err != nil {
		t.Fatalf("liquidity for amount1: %v", err)
	}
	if liq1.IsZero() {
		t.Fatalf("expected nonzero liquidity")
	}
	down, err := Amount1Delta(lower, upper, liq1, false)
	if err != nil {
		t.Fatalf("amount1 delta: %v", err)
	}
	up, err := Amount1Delta(lower, upper, liq1, true)
	if err != nil {
		t.Fatalf("amount1 delta rounded up: %v", err)
	}
	if down.Cmp(amount) > 0 {
		t.Fatalf("floor conversion exceeded input: %s > %s", down.Dec(), amount.Dec())
	}
	if up.Cmp(down) < 0 {
		t.Fatalf("rounded-up amount below floor amount")
	}

	liq0, err := LiquidityForAmount0(lower, upper, amount)
	if err != nil {
		t.Fatalf("liquidity for amount0: %v", err)
	}
	recovered, err := Amount0Delta(lower, upper, liq0, false)
	if err != nil {
		t.Fatalf("amount0 delta: %v", err)
	}
	if recovered.Cmp(amount) > 0 {
		t.Fatalf("floor conversion exceeded input: %s > %s", recovered.Dec(), amount.Dec())
	}
}

func TestLiquidityForEqualBoundsFails(t *testing.T) {
	bound := ratioAt(t, 120)
	if _, err := LiquidityForAmount0(bound, bound, uint256.NewInt(5)); err == nil {
		t.Fatalf("expected error for empty range")
	}
	if _, err := LiquidityForAmount1(bound, bound, uint256.NewInt(5)); err == nil {
		t.Fatalf("expected error for empty range")
	}
}

func TestAmountsForLiquidityBelowRange(t *testing.T) {
	spot := ratioAt(t, 0)
	lower := ratioAt(t, 60)
	upper := ratioAt(t, 120)
	liq := uint256.NewInt(1_000_000_000_000)

	amount0, amount1, err := AmountsForLiquidity(spot, lower, upper, liq, false)
	if err != nil {
		t.Fatalf("amounts for liquidity: %v", err)
	}
	if amount0.IsZero() {
		t.Fatalf("position above spot should hold token0")
	}
	if !amount1.IsZero() {
		t.Fatalf("position above spot should hold no token1, got %s", amount1.Dec())
	}
}

func TestAmountsForLiquidityAboveRange(t *testing.T) {
	spot := ratioAt(t, 0)
	lower := ratioAt(t, -120)
	upper := ratioAt(t, -60)
	liq := uint256.NewInt(1_000_000_000_000)

	amount0, amount1, err := AmountsForLiquidity(spot, lower, upper, liq, false)
	if err != nil {
		t.Fatalf("amounts for liquidity: %v", err)
	}
	if !amount0.IsZero() {
		t.Fatalf("position below spot should hold no token0, got %s", amount0.Dec())
	}
	if amount1.IsZero() {
		t.Fatalf("position below spot should hold token1")
	}
}

func TestAmountsForLiquidityInRange(t *testing.T) {
	spot := ratioAt(t, 30)
	lower := ratioAt(t, -60)
	upper := ratioAt(t, 60)
	liq := uint256.NewInt(1_000_000_000_000)

	amount0, amount1, err := AmountsForLiquidity(spot, lower, upper, liq, false)
	if err != nil {
		t.Fatalf("amounts for liquidity: %v", err)
	}
	if amount0.IsZero() || amount1.IsZero() {
		t.Fatalf("straddling position should hold both currencies, got %s / %s", amount0.Dec(), amount1.Dec())
	}
}

func TestAmountDeltaRoundingDirection(t *testing.T) {
	lower := ratioAt(t, -60)
	upper := ratioAt(t, 60)
	liq := uint256.NewInt(12_345_678_901)

	down0, err := Amount0Delta(lower, upper, liq, false)
	if err != nil {
		t.Fatalf("amount0 delta: %v", err)
	}
	up0, err := Amount0Delta(lower, upper, liq, true)
	if err != nil {
		t.Fatalf("amount0 delta rounded: %v", err)
	}
	if up0.Cmp(down0) < 0 {
		t.Fatalf("rounding up must not shrink amount0")
	}

	down1, err := Amount1Delta(lower, upper, liq, false)
	if err != nil {
		t.Fatalf("amount1 delta: %v", err)
	}
	up1, err := Amount1Delta(lower, upper, liq, true)
	if err != nil {
		t.Fatalf("amount1 delta rounded: %v", err)
	}
	if up1.Cmp(down1) < 0 {
		t.Fatalf("rounding up must not shrink amount1")
	}
}
