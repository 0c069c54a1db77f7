package bidwall

import (
	"math/big"
)

// WallState is the per-pool record tracked by the engine. Tick bounds are
// only meaningful while Initialized is true; PendingFees counts native fees
// collected since the last reposition and CumulativeFees counts everything
// ever deposited for the pool.
type WallState struct {
	Disabled       bool
	Initialized    bool
	TickLower      int32
	TickUpper      int32
	PendingFees    *big.Int
	CumulativeFees *big.Int
	LastDepositAt  int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (w *WallState) Copy() *WallState {
	if w == nil {
		return nil
	}
	clone := *w
	if w.PendingFees != nil {
		clone.PendingFees = new(big.Int).Set(w.PendingFees)
	}
	if w.CumulativeFees != nil {
		clone.CumulativeFees = new(big.Int).Set(w.CumulativeFees)
	}
	return &clone
}

func normalizeWall(w *WallState) *WallState {
	if w == nil {
		w = &WallState{}
	}
	if w.PendingFees == nil {
		w.PendingFees = big.NewInt(0)
	}
	if w.CumulativeFees == nil {
		w.CumulativeFees = big.NewInt(0)
	}
	return w
}

// Params holds the tunable engine thresholds persisted alongside wall
// records so restarts pick up operator overrides.
type Params struct {
	SwapFeeThreshold   *big.Int
	StaleWindowSeconds int64
}

// Copy returns a deep copy of the parameter set.
func (p *Params) Copy() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	if p.SwapFeeThreshold != nil {
		clone.SwapFeeThreshold = new(big.Int).Set(p.SwapFeeThreshold)
	}
	return &clone
}
