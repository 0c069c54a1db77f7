package bidwall

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"rampart/core/types"
	"rampart/native/amm"
)

// positionSalt isolates wall positions from any other liquidity the module
// account might hold in the same range.
const positionSalt = "wall"

// PoolEngine is the collaborator contract the wall engine drives. It is
// satisfied by the reference pool engine and, in tests, by decorators that
// inject faults.
type PoolEngine interface {
	Pool(id amm.PoolID) (amm.PoolInfo, error)
	SpotState(id amm.PoolID) (*uint256.Int, int32, error)
	HeldLiquidity(id amm.PoolID, owner types.Address, tickLower, tickUpper int32, salt string) (*big.Int, error)
	ModifyLiquidity(id amm.PoolID, owner types.Address, tickLower, tickUpper int32, liquidityDelta *big.Int, salt string) (*big.Int, *big.Int, error)
	Debit(token, account types.Address, amount *big.Int) error
	Credit(token, account types.Address, amount *big.Int) error
}

// operator pairs the pool engine's liquidity primitive with balance
// settlement. Settlement runs only after both currency deltas are known, and
// debits apply before credits so a rejected payment leaves no partial
// transfer behind.
type operator struct {
	pool  PoolEngine
	owner types.Address
}

// createPosition adds liquidity over [tickLower, tickUpper) and settles the
// resulting payments. The returned amounts are what the owner actually paid
// per currency.
func (o operator) createPosition(id amm.PoolID, key amm.PoolKey, tickLower, tickUpper int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	delta0, delta1, err := o.pool.ModifyLiquidity(id, o.owner, tickLower, tickUpper, liquidity, positionSalt)
	if err != nil {
		return nil, nil, fmt.Errorf("bidwall: add liquidity: %w", err)
	}
	if err := o.settle(key, delta0, delta1); err != nil {
		return nil, nil, err
	}
	return magnitude(delta0), magnitude(delta1), nil
}

// removePosition burns whatever liquidity the wall holds over the range and
// settles the withdrawal, reporting the settled amounts and the liquidity
// burned. A range with no liquidity is a no-op returning zeroes.
func (o operator) removePosition(id amm.PoolID, key amm.PoolKey, tickLower, tickUpper int32) (*big.Int, *big.Int, *big.Int, error) {
	held, err := o.pool.HeldLiquidity(id, o.owner, tickLower, tickUpper, positionSalt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bidwall: read position: %w", err)
	}
	if held.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), big.NewInt(0), nil
	}
	delta0, delta1, err := o.pool.ModifyLiquidity(id, o.owner, tickLower, tickUpper, new(big.Int).Neg(held), positionSalt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bidwall: remove liquidity: %w", err)
	}
	if err := o.settle(key, delta0, delta1); err != nil {
		return nil, nil, nil, err
	}
	return magnitude(delta0), magnitude(delta1), new(big.Int).Set(held), nil
}

// restorePosition re-mints liquidity burned earlier in the same call and
// repays the exact amounts that burn settled. Settling the recorded amounts
// instead of freshly computed ones keeps the rollback funded even though
// mints round up where burns round down. A zero liquidity is a no-op.
func (o operator) restorePosition(id amm.PoolID, key amm.PoolKey, tickLower, tickUpper int32, liquidity, refund0, refund1 *big.Int) error {
	if liquidity == nil || liquidity.Sign() == 0 {
		return nil
	}
	if _, _, err := o.pool.ModifyLiquidity(id, o.owner, tickLower, tickUpper, liquidity, positionSalt); err != nil {
		return fmt.Errorf("bidwall: restore liquidity: %w", err)
	}
	for _, leg := range []struct {
		token  types.Address
		amount *big.Int
	}{{key.Token0, refund0}, {key.Token1, refund1}} {
		if leg.amount == nil || leg.amount.Sign() == 0 {
			continue
		}
		if err := o.pool.Debit(leg.token, o.owner, leg.amount); err != nil {
			return fmt.Errorf("bidwall: repay restored position: %w", err)
		}
	}
	return nil
}

// forward moves an amount from the module account to a recipient. Zero and
// nil amounts are no-ops.
func (o operator) forward(token, recipient types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := o.pool.Debit(token, o.owner, amount); err != nil {
		return fmt.Errorf("bidwall: debit module account: %w", err)
	}
	if err := o.pool.Credit(token, recipient, amount); err != nil {
		return fmt.Errorf("bidwall: credit recipient: %w", err)
	}
	return nil
}

func (o operator) settle(key amm.PoolKey, delta0, delta1 *big.Int) error {
	type payment struct {
		token  types.Address
		amount *big.Int
		owed   bool
	}
	payments := make([]payment, 0, 2)
	for _, leg := range []struct {
		token types.Address
		delta *big.Int
	}{{key.Token0, delta0}, {key.Token1, delta1}} {
		if leg.delta == nil || leg.delta.Sign() == 0 {
			continue
		}
		payments = append(payments, payment{
			token:  leg.token,
			amount: magnitude(leg.delta),
			owed:   leg.delta.Sign() < 0,
		})
	}
	for _, p := range payments {
		if !p.owed {
			continue
		}
		if err := o.pool.Debit(p.token, o.owner, p.amount); err != nil {
			return fmt.Errorf("bidwall: settle debit: %w", err)
		}
	}
	for _, p := range payments {
		if p.owed {
			continue
		}
		if err := o.pool.Credit(p.token, o.owner, p.amount); err != nil {
			return fmt.Errorf("bidwall: settle credit: %w", err)
		}
	}
	return nil
}

func magnitude(delta *big.Int) *big.Int {
	if delta == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Abs(delta)
}
