package amm

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"rampart/core/types"
)

// PoolInfo is a read-only snapshot of a pool's identity and spot state.
type PoolInfo struct {
	ID           PoolID
	Key          PoolKey
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

type positionKey struct {
	owner types.Address
	lower int32
	upper int32
	salt  string
}

type poolState struct {
	key          PoolKey
	sqrtPriceX96 *uint256.Int
	tick         int32
	positions    map[positionKey]*uint256.Int
}

// Engine is the in-process position-accounting engine. It tracks pool spot
// state, per-identity range positions, and a currency balance book settled
// through Debit and Credit. There is no swap path: spot moves only through
// SetSpotTick, which is how simulations and tests model trading activity.
type Engine struct {
	mu       sync.RWMutex
	pools    map[PoolID]*poolState
	balances map[types.Address]map[types.Address]*big.Int
}

// NewEngine constructs an empty engine.
func NewEngine() *Engine {
	return &Engine{
		pools:    make(map[PoolID]*poolState),
		balances: make(map[types.Address]map[types.Address]*big.Int),
	}
}

// CreatePool registers a pool at the given spot tick and returns its ID.
func (e *Engine) CreatePool(key PoolKey, initialTick int32) (PoolID, error) {
	key = key.Normalized()
	if err := key.Validate(); err != nil {
		return PoolID{}, err
	}
	if initialTick < MinTick || initialTick >= MaxTick {
		return PoolID{}, ErrTickRange
	}
	id := ComputePoolID(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pools[id]; ok {
		return PoolID{}, ErrPoolExists
	}
	e.pools[id] = &poolState{
		key:          key,
		sqrtPriceX96: sqrtRatioAtTick(initialTick),
		tick:         initialTick,
		positions:    make(map[positionKey]*uint256.Int),
	}
	return id, nil
}

// Pool returns a snapshot of the identified pool.
func (e *Engine) Pool(id PoolID) (PoolInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pool, ok := e.pools[id]
	if !ok {
		return PoolInfo{}, ErrPoolNotFound
	}
	return PoolInfo{
		ID:           id,
		Key:          pool.key,
		SqrtPriceX96: new(uint256.Int).Set(pool.sqrtPriceX96),
		Tick:         pool.tick,
	}, nil
}

// SpotState returns the pool's authoritative sqrt price and tick.
func (e *Engine) SpotState(id PoolID) (*uint256.Int, int32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pool, ok := e.pools[id]
	if !ok {
		return nil, 0, ErrPoolNotFound
	}
	return new(uint256.Int).Set(pool.sqrtPriceX96), pool.tick, nil
}

// SetSpotTick moves the pool's spot to the given tick, simulating the price
// impact of trading activity.
func (e *Engine) SetSpotTick(id PoolID, tick int32) error {
	if tick < MinTick || tick >= MaxTick {
		return ErrTickRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, ok := e.pools[id]
	if !ok {
		return ErrPoolNotFound
	}
	pool.tick = tick
	pool.sqrtPriceX96 = sqrtRatioAtTick(tick)
	return nil
}

// HeldLiquidity reports the liquidity the identity holds at the given range.
// A position that was never minted reports zero.
func (e *Engine) HeldLiquidity(id PoolID, owner types.Address, lower, upper int32, salt string) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pool, ok := e.pools[id]
	if !ok {
		return nil, ErrPoolNotFound
	}
	liq, ok := pool.positions[positionKey{owner: owner, lower: lower, upper: upper, salt: salt}]
	if !ok {
		return big.NewInt(0), nil
	}
	return liq.ToBig(), nil
}

// ModifyLiquidity applies a signed liquidity delta to the identity's position
// and returns the signed currency deltas from the owner's perspective:
// negative values are owed to the pool, positive values are returned by it.
// Settlement is separate; callers follow up with Debit and Credit.
func (e *Engine) ModifyLiquidity(id PoolID, owner types.Address, lower, upper int32, liquidityDelta *big.Int, salt string) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, ok := e.pools[id]
	if !ok {
		return nil, nil, ErrPoolNotFound
	}
	if err := CheckTicks(lower, upper, pool.key.TickSpacing); err != nil {
		return nil, nil, err
	}
	if liquidityDelta == nil || liquidityDelta.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}
	magnitude, overflow := uint256.FromBig(new(big.Int).Abs(liquidityDelta))
	if overflow {
		return nil, nil, ErrOverflow
	}

	sqrtLower := sqrtRatioAtTick(lower)
	sqrtUpper := sqrtRatioAtTick(upper)
	adding := liquidityDelta.Sign() > 0
	amount0, amount1, err := AmountsForLiquidity(pool.sqrtPriceX96, sqrtLower, sqrtUpper, magnitude, adding)
	if err != nil {
		return nil, nil, err
	}

	key := positionKey{owner: owner, lower: lower, upper: upper, salt: salt}
	held := pool.positions[key]
	if adding {
		if held == nil {
			pool.positions[key] = new(uint256.Int).Set(magnitude)
		} else {
			pool.positions[key] = new(uint256.Int).Add(held, magnitude)
		}
		return new(big.Int).Neg(amount0.ToBig()), new(big.Int).Neg(amount1.ToBig()), nil
	}
	if held == nil || held.Cmp(magnitude) < 0 {
		return nil, nil, ErrPositionUnderflow
	}
	remaining := new(uint256.Int).Sub(held, magnitude)
	if remaining.IsZero() {
		delete(pool.positions, key)
	} else {
		pool.positions[key] = remaining
	}
	return amount0.ToBig(), amount1.ToBig(), nil
}

// Debit removes amount of token from the payer's balance.
func (e *Engine) Debit(token, payer types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	holders := e.balances[token]
	balance := holders[payer]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	holders[payer] = new(big.Int).Sub(balance, amount)
	return nil
}

// Credit adds amount of token to the recipient's balance.
func (e *Engine) Credit(token, recipient types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	holders := e.balances[token]
	if holders == nil {
		holders = make(map[types.Address]*big.Int)
		e.balances[token] = holders
	}
	balance := holders[recipient]
	if balance == nil {
		holders[recipient] = new(big.Int).Set(amount)
	} else {
		holders[recipient] = new(big.Int).Add(balance, amount)
	}
	return nil
}

// Fund seeds a balance outside of settlement, modelling tokens arriving from
// outside the engine (harvested fees, genesis allocations). Non-positive
// amounts are ignored.
func (e *Engine) Fund(token, holder types.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	_ = e.Credit(token, holder, amount)
}

// BalanceOf reports the holder's balance of token.
func (e *Engine) BalanceOf(token, holder types.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	balance := e.balances[token][holder]
	if balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}
