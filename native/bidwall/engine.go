package bidwall

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"rampart/core/events"
	"rampart/core/types"
	"rampart/native/amm"
	"rampart/observability/metrics"
)

var (
	errNilState        = errors.New("bidwall engine: state not configured")
	errNilPool         = errors.New("bidwall engine: pool engine not configured")
	errNativeNotSet    = errors.New("bidwall engine: native token not configured")
	errDirectoryNotSet = errors.New("bidwall engine: token directory not configured")
	errResolverNotSet  = errors.New("bidwall engine: treasury resolver not configured")

	// ErrModulePaused is returned while the pause view blocks mutations.
	ErrModulePaused = errors.New("bidwall engine: module paused")
	// ErrNotTrustedCaller rejects lifecycle calls from anyone but the execution layer.
	ErrNotTrustedCaller = errors.New("bidwall engine: caller is not the execution layer")
	// ErrNotOwner rejects parameter changes from anyone but the module owner.
	ErrNotOwner = errors.New("bidwall engine: caller is not the module owner")
	// ErrNotCreator rejects disable toggles from anyone but the pool's creator.
	ErrNotCreator = errors.New("bidwall engine: caller is not the pool creator")
	// ErrWallDisabled rejects deposits routed to a disabled wall.
	ErrWallDisabled = errors.New("bidwall engine: wall is disabled")
	// ErrPoolBusy rejects reentrant operations on a pool already mid-flight.
	ErrPoolBusy = errors.New("bidwall engine: pool operation in progress")
	// ErrInvalidAmount rejects nil or negative deposit amounts.
	ErrInvalidAmount = errors.New("bidwall engine: amount must not be negative")
	// ErrInvalidThreshold rejects non-positive threshold overrides.
	ErrInvalidThreshold = errors.New("bidwall engine: threshold must be positive")
	// ErrInvalidStaleWindow rejects non-positive staleness windows.
	ErrInvalidStaleWindow = errors.New("bidwall engine: stale window must be positive")
	// ErrNativeNotInPool rejects pools that do not pair the native token.
	ErrNativeNotInPool = errors.New("bidwall engine: pool does not contain the native token")
	// ErrNativeSideMismatch rejects caller metadata that contradicts the pool key.
	ErrNativeSideMismatch = errors.New("bidwall engine: native side does not match pool key")
)

// ModuleName identifies the engine in pause views.
const ModuleName = "bidwall"

// DefaultStaleWindowSeconds is seven days, the fallback staleness horizon.
const DefaultStaleWindowSeconds int64 = 7 * 24 * 60 * 60

// DefaultSwapFeeThreshold is a tenth of a native unit at 18 decimals.
var DefaultSwapFeeThreshold = new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)

// Reposition trigger labels recorded on events and metrics.
const (
	TriggerThreshold = "threshold"
	TriggerStale     = "stale"
)

// PauseView reports whether a module has been administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

type engineState interface {
	GetWall(pool amm.PoolID) (*WallState, bool, error)
	PutWall(pool amm.PoolID, wall *WallState) error
	GetParams() (*Params, bool, error)
	PutParams(params *Params) error
}

// Engine drives the protocol-owned liquidity wall for every launch pool. It
// accumulates swap fees per pool and, past a threshold or a staleness
// horizon, redeploys the pool's native holdings as a single-sided position
// one spacing away from spot.
//
// The module account identified by the trusted caller must hold every fee
// amount reported through Deposit; settlement debits draw from it and never
// exceed the recorded budget.
type Engine struct {
	state     engineState
	pool      PoolEngine
	emitter   events.Emitter
	nowFn     func() int64
	pauses    PauseView
	telemetry *metrics.BidwallMetrics

	trustedCaller types.Address
	owner         types.Address
	nativeToken   types.Address

	directory TokenDirectory
	resolver  TreasuryResolver

	paramsMu         sync.RWMutex
	swapFeeThreshold *big.Int
	staleWindow      int64
	thresholdFn      ThresholdPolicy

	locks sync.Map
}

// NewEngine constructs a wall engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		telemetry:        metrics.Bidwall(),
		swapFeeThreshold: new(big.Int).Set(DefaultSwapFeeThreshold),
		staleWindow:      DefaultStaleWindowSeconds,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPoolEngine configures the pool collaborator.
func (e *Engine) SetPoolEngine(pool PoolEngine) { e.pool = pool }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses configures the pause view consulted before mutations.
func (e *Engine) SetPauses(pauses PauseView) { e.pauses = pauses }

// SetTrustedCaller configures the execution-layer account allowed to drive
// the wall lifecycle. The same account acts as the module's position owner.
func (e *Engine) SetTrustedCaller(addr types.Address) { e.trustedCaller = addr }

// SetOwner configures the account allowed to retune engine parameters.
func (e *Engine) SetOwner(addr types.Address) { e.owner = addr }

// SetNativeToken configures the protocol's reference asset.
func (e *Engine) SetNativeToken(addr types.Address) { e.nativeToken = addr }

// SetTokenDirectory configures launch metadata lookups.
func (e *Engine) SetTokenDirectory(directory TokenDirectory) { e.directory = directory }

// SetTreasuryResolver overrides how treasury recipients are resolved. When
// unset the token directory answers directly.
func (e *Engine) SetTreasuryResolver(resolver TreasuryResolver) { e.resolver = resolver }

// SetThresholdPolicy overrides the flat swap-fee threshold with a
// volume-aware policy.
func (e *Engine) SetThresholdPolicy(policy ThresholdPolicy) {
	e.paramsMu.Lock()
	defer e.paramsMu.Unlock()
	e.thresholdFn = policy
}

// LoadParams restores persisted parameter overrides. Missing or partial
// records leave the defaults in place.
func (e *Engine) LoadParams() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	params, ok, err := e.state.GetParams()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	e.paramsMu.Lock()
	defer e.paramsMu.Unlock()
	if params.SwapFeeThreshold != nil && params.SwapFeeThreshold.Sign() > 0 {
		e.swapFeeThreshold = new(big.Int).Set(params.SwapFeeThreshold)
	}
	if params.StaleWindowSeconds > 0 {
		e.staleWindow = params.StaleWindowSeconds
	}
	return nil
}

// ParamsSnapshot returns a copy of the active engine parameters.
func (e *Engine) ParamsSnapshot() *Params {
	e.paramsMu.RLock()
	defer e.paramsMu.RUnlock()
	return &Params{
		SwapFeeThreshold:   new(big.Int).Set(e.swapFeeThreshold),
		StaleWindowSeconds: e.staleWindow,
	}
}

// SetSwapFeeThreshold retunes the flat trigger level. Owner only.
func (e *Engine) SetSwapFeeThreshold(caller types.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidThreshold
	}
	e.paramsMu.Lock()
	params := &Params{
		SwapFeeThreshold:   new(big.Int).Set(amount),
		StaleWindowSeconds: e.staleWindow,
	}
	// Persist before swapping the live value so a failed write cannot leave
	// a running parameter that silently reverts on restart.
	if err := e.state.PutParams(params); err != nil {
		e.paramsMu.Unlock()
		return err
	}
	e.swapFeeThreshold = new(big.Int).Set(amount)
	e.paramsMu.Unlock()
	e.emit(ThresholdUpdatedEvent(amount.String()))
	return nil
}

// SetStaleWindow retunes the staleness horizon in seconds. Owner only.
func (e *Engine) SetStaleWindow(caller types.Address, seconds int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if seconds <= 0 {
		return ErrInvalidStaleWindow
	}
	e.paramsMu.Lock()
	params := &Params{
		SwapFeeThreshold:   new(big.Int).Set(e.swapFeeThreshold),
		StaleWindowSeconds: seconds,
	}
	if err := e.state.PutParams(params); err != nil {
		e.paramsMu.Unlock()
		return err
	}
	e.staleWindow = seconds
	e.paramsMu.Unlock()
	e.emit(StaleWindowUpdatedEvent(strconv.FormatInt(seconds, 10)))
	return nil
}

// Deposit credits swap fees to a pool's wall and repositions it once the
// pending balance reaches the active threshold. Zero amounts are accepted
// and ignored.
func (e *Engine) Deposit(caller types.Address, pool amm.PoolID, amount *big.Int, currentTick int32, nativeIsToken0 bool) error {
	if err := e.requireCore(); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.trustedCaller {
		return ErrNotTrustedCaller
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	info, err := e.pool.Pool(pool)
	if err != nil {
		return fmt.Errorf("bidwall engine: pool lookup: %w", err)
	}
	if err := e.checkNativeSide(info.Key, nativeIsToken0); err != nil {
		return err
	}
	unlock, err := e.lockPool(pool)
	if err != nil {
		return err
	}
	defer unlock()

	wall, err := e.loadWall(pool)
	if err != nil {
		return err
	}
	if wall.Disabled {
		return ErrWallDisabled
	}
	snapshot := wall.Copy()
	wall.PendingFees = new(big.Int).Add(wall.PendingFees, amount)
	wall.CumulativeFees = new(big.Int).Add(wall.CumulativeFees, amount)
	wall.LastDepositAt = e.now()
	pendingTotal := new(big.Int).Set(wall.PendingFees)

	threshold := e.effectiveThreshold(wall.CumulativeFees)
	if wall.PendingFees.Cmp(threshold) < 0 {
		if err := e.state.PutWall(pool, wall); err != nil {
			return err
		}
		e.emit(DepositReceivedEvent(pool.String(), amount.String(), pendingTotal.String()))
		e.telemetry.ObserveDeposit("accumulated")
		return nil
	}

	start := time.Now()
	outcome, err := e.reposition(pool, info, wall, currentTick, nativeIsToken0)
	if err != nil {
		if putErr := e.state.PutWall(pool, snapshot); putErr != nil {
			return errors.Join(err, putErr)
		}
		return err
	}
	e.emit(DepositReceivedEvent(pool.String(), amount.String(), pendingTotal.String()))
	e.emitRepositionEvents(pool, TriggerThreshold, outcome)
	e.telemetry.ObserveDeposit("repositioned")
	e.telemetry.ObserveReposition(TriggerThreshold, time.Since(start).Seconds())
	return nil
}

// CheckStaleness repositions a wall whose pending fees have sat idle past
// the staleness window. Pools with nothing pending, or with recent deposit
// activity, are left untouched.
func (e *Engine) CheckStaleness(caller types.Address, pool amm.PoolID, currentTick int32, nativeIsToken0 bool) error {
	if err := e.requireCore(); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.trustedCaller {
		return ErrNotTrustedCaller
	}
	info, err := e.pool.Pool(pool)
	if err != nil {
		return fmt.Errorf("bidwall engine: pool lookup: %w", err)
	}
	if err := e.checkNativeSide(info.Key, nativeIsToken0); err != nil {
		return err
	}
	unlock, err := e.lockPool(pool)
	if err != nil {
		return err
	}
	defer unlock()

	wall, err := e.loadWall(pool)
	if err != nil {
		return err
	}
	if wall.PendingFees.Sign() == 0 {
		return nil
	}
	e.paramsMu.RLock()
	window := e.staleWindow
	e.paramsMu.RUnlock()
	// The wall stays put until the window has strictly elapsed.
	if e.now()-wall.LastDepositAt <= window {
		return nil
	}

	snapshot := wall.Copy()
	start := time.Now()
	outcome, err := e.reposition(pool, info, wall, currentTick, nativeIsToken0)
	if err != nil {
		if putErr := e.state.PutWall(pool, snapshot); putErr != nil {
			return errors.Join(err, putErr)
		}
		return err
	}
	e.emitRepositionEvents(pool, TriggerStale, outcome)
	e.telemetry.ObserveReposition(TriggerStale, time.Since(start).Seconds())
	return nil
}

// Close tears a wall down and sweeps everything it holds, pending fees
// included, to the pool's treasury. Safe to call on a wall that never
// deployed; the sweep is simply zero.
func (e *Engine) Close(caller types.Address, pool amm.PoolID) error {
	if err := e.requireCore(); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.trustedCaller {
		return ErrNotTrustedCaller
	}
	info, err := e.pool.Pool(pool)
	if err != nil {
		return fmt.Errorf("bidwall engine: pool lookup: %w", err)
	}
	nativeIsToken0, err := e.nativeSide(info.Key)
	if err != nil {
		return err
	}
	unlock, err := e.lockPool(pool)
	if err != nil {
		return err
	}
	defer unlock()

	wall, err := e.loadWall(pool)
	if err != nil {
		return err
	}
	snapshot := wall.Copy()
	outcome, err := e.closeLocked(pool, info, wall, nativeIsToken0)
	if err != nil {
		if putErr := e.state.PutWall(pool, snapshot); putErr != nil {
			return errors.Join(err, putErr)
		}
		return err
	}
	e.emitCloseEvents(pool, outcome)
	e.telemetry.ObserveClose()
	return nil
}

// SetDisabled toggles a wall on or off. Only the pool's creator may call
// it; disabling closes the wall first so nothing stays deployed. Setting
// the flag to its current value is a silent no-op.
func (e *Engine) SetDisabled(caller types.Address, pool amm.PoolID, disabled bool) error {
	if err := e.requireCore(); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	info, err := e.pool.Pool(pool)
	if err != nil {
		return fmt.Errorf("bidwall engine: pool lookup: %w", err)
	}
	nativeIsToken0, err := e.nativeSide(info.Key)
	if err != nil {
		return err
	}
	other := info.Key.Token1
	if !nativeIsToken0 {
		other = info.Key.Token0
	}
	if e.directory == nil {
		return errDirectoryNotSet
	}
	creator, err := e.directory.CreatorOf(other)
	if err != nil {
		return fmt.Errorf("bidwall engine: creator lookup: %w", err)
	}
	if caller != creator {
		return ErrNotCreator
	}
	unlock, err := e.lockPool(pool)
	if err != nil {
		return err
	}
	defer unlock()

	wall, err := e.loadWall(pool)
	if err != nil {
		return err
	}
	if wall.Disabled == disabled {
		return nil
	}
	snapshot := wall.Copy()
	var closed *closeOutcome
	if disabled {
		closed, err = e.closeLocked(pool, info, wall, nativeIsToken0)
		if err != nil {
			if putErr := e.state.PutWall(pool, snapshot); putErr != nil {
				return errors.Join(err, putErr)
			}
			return err
		}
	}
	wall.Disabled = disabled
	if err := e.state.PutWall(pool, wall); err != nil {
		return err
	}
	if closed != nil {
		e.emitCloseEvents(pool, closed)
		e.telemetry.ObserveClose()
	}
	e.emit(WallDisabledEvent(pool.String(), strconv.FormatBool(disabled)))
	return nil
}

// Wall returns a copy of the pool's wall record. Pools that never saw a
// deposit report a zero-valued record.
func (e *Engine) Wall(pool amm.PoolID) (*WallState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadWall(pool)
}

// QueryPosition reports the amounts currently deployed under the wall plus
// its undeployed pending fees. Uninitialized walls report zero holdings.
func (e *Engine) QueryPosition(pool amm.PoolID) (*big.Int, *big.Int, *big.Int, error) {
	if err := e.requireCore(); err != nil {
		return nil, nil, nil, err
	}
	wall, err := e.loadWall(pool)
	if err != nil {
		return nil, nil, nil, err
	}
	pending := new(big.Int).Set(wall.PendingFees)
	if !wall.Initialized {
		return big.NewInt(0), big.NewInt(0), pending, nil
	}
	held, err := e.pool.HeldLiquidity(pool, e.trustedCaller, wall.TickLower, wall.TickUpper, positionSalt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bidwall engine: read position: %w", err)
	}
	sqrtPrice, _, err := e.pool.SpotState(pool)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bidwall engine: spot lookup: %w", err)
	}
	sqrtLower, err := amm.SqrtRatioAtTick(wall.TickLower)
	if err != nil {
		return nil, nil, nil, err
	}
	sqrtUpper, err := amm.SqrtRatioAtTick(wall.TickUpper)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, overflow := uint256.FromBig(held)
	if overflow {
		return nil, nil, nil, fmt.Errorf("bidwall engine: liquidity exceeds 256 bits")
	}
	amount0, amount1, err := amm.AmountsForLiquidity(sqrtPrice, sqrtLower, sqrtUpper, liquidity, false)
	if err != nil {
		return nil, nil, nil, err
	}
	return amount0.ToBig(), amount1.ToBig(), pending, nil
}

type repositionOutcome struct {
	created        bool
	firstDeploy    bool
	nativeDeployed *big.Int
	tickLower      int32
	tickUpper      int32
	otherForwarded *big.Int
	otherToken     types.Address
	treasury       types.Address
}

// reposition runs the remove-recompute-add sequence. Pending fees are
// captured and persisted as spent before the first pool interaction so a
// reentrant observer can never count them twice. Any failure after the old
// position was burned re-mints it at the old range before returning, so the
// pre-call snapshot the caller restores still describes a position the pool
// holds.
func (e *Engine) reposition(pool amm.PoolID, info amm.PoolInfo, wall *WallState, currentTick int32, nativeIsToken0 bool) (*repositionOutcome, error) {
	key := info.Key
	other := key.Token1
	if !nativeIsToken0 {
		other = key.Token0
	}

	_, spotTick, err := e.pool.SpotState(pool)
	if err != nil {
		return nil, fmt.Errorf("bidwall engine: spot lookup: %w", err)
	}
	workingTick := reconcileTick(currentTick, spotTick, nativeIsToken0)
	tickLower, tickUpper, err := wallRange(workingTick, key.TickSpacing, nativeIsToken0)
	if err != nil {
		return nil, err
	}

	var treasury types.Address
	wasInitialized := wall.Initialized
	if wasInitialized {
		treasury, err = e.resolveTreasury(pool, other)
		if err != nil {
			return nil, err
		}
	}

	totalFees := new(big.Int).Set(wall.PendingFees)
	wall.PendingFees = big.NewInt(0)
	oldLower, oldUpper := wall.TickLower, wall.TickUpper
	if err := e.state.PutWall(pool, wall); err != nil {
		return nil, err
	}

	op := operator{pool: e.pool, owner: e.trustedCaller}
	nativeRecovered, otherRecovered := big.NewInt(0), big.NewInt(0)
	removed0, removed1, removedLiquidity := big.NewInt(0), big.NewInt(0), big.NewInt(0)
	if wasInitialized {
		removed0, removed1, removedLiquidity, err = op.removePosition(pool, key, oldLower, oldUpper)
		if err != nil {
			return nil, err
		}
		if nativeIsToken0 {
			nativeRecovered, otherRecovered = removed0, removed1
		} else {
			nativeRecovered, otherRecovered = removed1, removed0
		}
	}

	nativeDeployed := big.NewInt(0)
	created := false

	// Burns any position minted during this call, then puts the burned
	// position back so the snapshot the caller restores matches the pool.
	rollback := func(cause error) error {
		if created {
			if _, _, _, rmErr := op.removePosition(pool, key, tickLower, tickUpper); rmErr != nil {
				return errors.Join(cause, fmt.Errorf("bidwall engine: unwind new position: %w", rmErr))
			}
		}
		if restoreErr := op.restorePosition(pool, key, oldLower, oldUpper, removedLiquidity, removed0, removed1); restoreErr != nil {
			return errors.Join(cause, fmt.Errorf("bidwall engine: restore old position: %w", restoreErr))
		}
		return cause
	}

	deployable := new(big.Int).Add(nativeRecovered, totalFees)
	if deployable.Sign() > 0 {
		liquidity, err := liquidityForNative(tickLower, tickUpper, deployable, nativeIsToken0)
		if err != nil {
			return nil, rollback(err)
		}
		if liquidity.Sign() > 0 {
			paid0, paid1, err := op.createPosition(pool, key, tickLower, tickUpper, liquidity)
			if err != nil {
				return nil, rollback(err)
			}
			if nativeIsToken0 {
				nativeDeployed = paid0
			} else {
				nativeDeployed = paid1
			}
			created = true
		}
	}

	wall.Initialized = created
	if created {
		wall.TickLower, wall.TickUpper = tickLower, tickUpper
	} else {
		wall.TickLower, wall.TickUpper = 0, 0
	}
	if err := e.state.PutWall(pool, wall); err != nil {
		return nil, rollback(err)
	}

	if otherRecovered.Sign() > 0 {
		if err := op.forward(other, treasury, otherRecovered); err != nil {
			return nil, rollback(err)
		}
	}

	return &repositionOutcome{
		created:        created,
		firstDeploy:    created && !wasInitialized,
		nativeDeployed: nativeDeployed,
		tickLower:      tickLower,
		tickUpper:      tickUpper,
		otherForwarded: otherRecovered,
		otherToken:     other,
		treasury:       treasury,
	}, nil
}

type closeOutcome struct {
	nativeSwept *big.Int
	otherSwept  *big.Int
	otherToken  types.Address
	treasury    types.Address
}

// closeLocked removes the wall's position and sweeps native holdings plus
// pending fees to the treasury. The record is zeroed before the pool is
// touched; lifetime counters survive.
func (e *Engine) closeLocked(pool amm.PoolID, info amm.PoolInfo, wall *WallState, nativeIsToken0 bool) (*closeOutcome, error) {
	key := info.Key
	native, other := key.Token0, key.Token1
	if !nativeIsToken0 {
		native, other = key.Token1, key.Token0
	}

	pendingHeld := new(big.Int).Set(wall.PendingFees)
	var treasury types.Address
	var err error
	if wall.Initialized || pendingHeld.Sign() > 0 {
		treasury, err = e.resolveTreasury(pool, other)
		if err != nil {
			return nil, err
		}
	}

	wasInitialized := wall.Initialized
	oldLower, oldUpper := wall.TickLower, wall.TickUpper
	wall.Initialized = false
	wall.TickLower, wall.TickUpper = 0, 0
	wall.PendingFees = big.NewInt(0)
	if err := e.state.PutWall(pool, wall); err != nil {
		return nil, err
	}

	op := operator{pool: e.pool, owner: e.trustedCaller}
	nativeRecovered, otherRecovered := big.NewInt(0), big.NewInt(0)
	removed0, removed1, removedLiquidity := big.NewInt(0), big.NewInt(0), big.NewInt(0)
	if wasInitialized {
		removed0, removed1, removedLiquidity, err = op.removePosition(pool, key, oldLower, oldUpper)
		if err != nil {
			return nil, err
		}
		if nativeIsToken0 {
			nativeRecovered, otherRecovered = removed0, removed1
		} else {
			nativeRecovered, otherRecovered = removed1, removed0
		}
	}

	// A failed sweep re-mints the burned position so the record the caller
	// restores matches the pool again.
	rollback := func(cause error) error {
		if restoreErr := op.restorePosition(pool, key, oldLower, oldUpper, removedLiquidity, removed0, removed1); restoreErr != nil {
			return errors.Join(cause, fmt.Errorf("bidwall engine: restore position: %w", restoreErr))
		}
		return cause
	}

	nativeSwept := new(big.Int).Add(nativeRecovered, pendingHeld)
	if err := op.forward(native, treasury, nativeSwept); err != nil {
		return nil, rollback(err)
	}
	if err := op.forward(other, treasury, otherRecovered); err != nil {
		return nil, rollback(err)
	}

	return &closeOutcome{
		nativeSwept: nativeSwept,
		otherSwept:  otherRecovered,
		otherToken:  other,
		treasury:    treasury,
	}, nil
}

func (e *Engine) emitRepositionEvents(pool amm.PoolID, trigger string, outcome *repositionOutcome) {
	if outcome == nil {
		return
	}
	lower := strconv.FormatInt(int64(outcome.tickLower), 10)
	upper := strconv.FormatInt(int64(outcome.tickUpper), 10)
	if outcome.firstDeploy {
		e.emit(WallInitializedEvent(pool.String(), outcome.nativeDeployed.String(), lower, upper))
	} else {
		e.emit(WallRepositionedEvent(pool.String(), trigger, outcome.nativeDeployed.String(), lower, upper))
	}
	if outcome.otherForwarded != nil && outcome.otherForwarded.Sign() > 0 {
		e.emit(RewardsTransferredEvent(pool.String(), outcome.otherToken.String(), outcome.treasury.String(), outcome.otherForwarded.String()))
		e.telemetry.ObserveRewardTransfer()
	}
}

func (e *Engine) emitCloseEvents(pool amm.PoolID, outcome *closeOutcome) {
	if outcome == nil {
		return
	}
	e.emit(WallClosedEvent(pool.String(), outcome.treasury.String(), outcome.nativeSwept.String()))
	if outcome.otherSwept != nil && outcome.otherSwept.Sign() > 0 {
		e.emit(RewardsTransferredEvent(pool.String(), outcome.otherToken.String(), outcome.treasury.String(), outcome.otherSwept.String()))
		e.telemetry.ObserveRewardTransfer()
	}
}

func (e *Engine) requireCore() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.pool == nil {
		return errNilPool
	}
	return nil
}

func (e *Engine) guard() error {
	if e.pauses != nil && e.pauses.IsPaused(ModuleName) {
		return ErrModulePaused
	}
	return nil
}

func (e *Engine) lockPool(pool amm.PoolID) (func(), error) {
	entry, _ := e.locks.LoadOrStore(pool, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, ErrPoolBusy
	}
	return mu.Unlock, nil
}

func (e *Engine) loadWall(pool amm.PoolID) (*WallState, error) {
	wall, ok, err := e.state.GetWall(pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		wall = &WallState{}
	}
	return normalizeWall(wall), nil
}

func (e *Engine) nativeSide(key amm.PoolKey) (bool, error) {
	if e.nativeToken == (types.Address{}) {
		return false, errNativeNotSet
	}
	switch e.nativeToken {
	case key.Token0:
		return true, nil
	case key.Token1:
		return false, nil
	}
	return false, ErrNativeNotInPool
}

func (e *Engine) checkNativeSide(key amm.PoolKey, claimed bool) error {
	derived, err := e.nativeSide(key)
	if err != nil {
		return err
	}
	if derived != claimed {
		return ErrNativeSideMismatch
	}
	return nil
}

func (e *Engine) effectiveThreshold(cumulative *big.Int) *big.Int {
	e.paramsMu.RLock()
	defer e.paramsMu.RUnlock()
	if e.thresholdFn != nil {
		return e.thresholdFn.Threshold(cumulative)
	}
	return new(big.Int).Set(e.swapFeeThreshold)
}

func (e *Engine) resolveTreasury(pool amm.PoolID, token types.Address) (types.Address, error) {
	if e.resolver != nil {
		return e.resolver.ResolveTreasury(pool, token)
	}
	if e.directory != nil {
		return e.directory.TreasuryOf(token)
	}
	return types.Address{}, errResolverNotSet
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}
