package bidwall

import (
	"errors"
	"math/big"
	"testing"

	"rampart/core/events"
	"rampart/core/types"
	"rampart/native/amm"
)

const (
	testSpacing   int32 = 60
	testThreshold int64 = 1_000_000
	testWindow    int64 = 3_600
)

func testAddr(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

var (
	testCaller   = testAddr(0xaa)
	testOwner    = testAddr(0xbb)
	testCreator  = testAddr(0xcc)
	testTreasury = testAddr(0xdd)
	testStranger = testAddr(0xee)
)

type mockState struct {
	walls  map[amm.PoolID]*WallState
	params *Params
}

func newMockState() *mockState {
	return &mockState{walls: make(map[amm.PoolID]*WallState)}
}

func (m *mockState) GetWall(pool amm.PoolID) (*WallState, bool, error) {
	wall, ok := m.walls[pool]
	if !ok {
		return nil, false, nil
	}
	return wall.Copy(), true, nil
}

func (m *mockState) PutWall(pool amm.PoolID, wall *WallState) error {
	if wall == nil {
		return errors.New("nil wall")
	}
	m.walls[pool] = wall.Copy()
	return nil
}

func (m *mockState) GetParams() (*Params, bool, error) {
	if m.params == nil {
		return nil, false, nil
	}
	return m.params.Copy(), true, nil
}

func (m *mockState) PutParams(params *Params) error {
	if params == nil {
		return errors.New("nil params")
	}
	m.params = params.Copy()
	return nil
}

type recordingEmitter struct {
	emitted []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.emitted = append(r.emitted, evt)
}

func (r *recordingEmitter) count(eventType string) int {
	total := 0
	for _, evt := range r.emitted {
		if evt.EventType() == eventType {
			total++
		}
	}
	return total
}

func (r *recordingEmitter) last(eventType string) *types.Event {
	for i := len(r.emitted) - 1; i >= 0; i-- {
		if r.emitted[i].EventType() != eventType {
			continue
		}
		if env, ok := r.emitted[i].(eventEnvelope); ok {
			return env.Event()
		}
	}
	return nil
}

type engineHarness struct {
	t       *testing.T
	engine  *Engine
	pool    *amm.Engine
	state   *mockState
	emitter *recordingEmitter
	poolID  amm.PoolID
	key     amm.PoolKey
	native  types.Address
	other   types.Address
	now     int64
}

// newHarness wires an engine against the reference pool engine with the
// module account funded to cover every test deposit.
func newHarness(t *testing.T, nativeIsToken0 bool, initialTick int32) *engineHarness {
	t.Helper()
	h := &engineHarness{t: t, now: 1_700_000_000}
	if nativeIsToken0 {
		h.native, h.other = testAddr(0x01), testAddr(0x02)
	} else {
		h.native, h.other = testAddr(0x09), testAddr(0x03)
	}
	h.key = amm.PoolKey{Token0: h.native, Token1: h.other, FeeBps: 3000, TickSpacing: testSpacing}.Normalized()
	if (h.key.Token0 == h.native) != nativeIsToken0 {
		t.Fatalf("harness token ordering does not match requested side")
	}

	h.pool = amm.NewEngine()
	id, err := h.pool.CreatePool(h.key, initialTick)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	h.poolID = id
	h.pool.Fund(h.native, testCaller, new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil))

	directory := NewStaticDirectory()
	directory.Register(h.other, testCreator, testTreasury)

	h.state = newMockState()
	h.emitter = &recordingEmitter{}
	h.engine = NewEngine()
	h.engine.SetState(h.state)
	h.engine.SetPoolEngine(h.pool)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetNowFunc(func() int64 { return h.now })
	h.engine.SetTrustedCaller(testCaller)
	h.engine.SetOwner(testOwner)
	h.engine.SetNativeToken(h.native)
	h.engine.SetTokenDirectory(directory)
	if err := h.engine.SetSwapFeeThreshold(testOwner, big.NewInt(testThreshold)); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if err := h.engine.SetStaleWindow(testOwner, testWindow); err != nil {
		t.Fatalf("set stale window: %v", err)
	}
	return h
}

func (h *engineHarness) nativeIsToken0() bool { return h.key.Token0 == h.native }

func (h *engineHarness) spotTick() int32 {
	h.t.Helper()
	_, tick, err := h.pool.SpotState(h.poolID)
	if err != nil {
		h.t.Fatalf("spot state: %v", err)
	}
	return tick
}

func (h *engineHarness) deposit(amount int64) error {
	return h.engine.Deposit(testCaller, h.poolID, big.NewInt(amount), h.spotTick(), h.nativeIsToken0())
}

func (h *engineHarness) wall() *WallState {
	h.t.Helper()
	wall, ok, err := h.state.GetWall(h.poolID)
	if err != nil {
		h.t.Fatalf("get wall: %v", err)
	}
	if !ok {
		return normalizeWall(&WallState{})
	}
	return normalizeWall(wall)
}

func (h *engineHarness) held(lower, upper int32) *big.Int {
	h.t.Helper()
	liq, err := h.pool.HeldLiquidity(h.poolID, testCaller, lower, upper, positionSalt)
	if err != nil {
		h.t.Fatalf("held liquidity: %v", err)
	}
	return liq
}

func TestDepositAccumulatesUntilThreshold(t *testing.T) {
	h := newHarness(t, true, 1000)

	if err := h.deposit(400_000); err != nil {
		t.Fatalf("deposit below threshold: %v", err)
	}
	wall := h.wall()
	if wall.Initialized {
		t.Fatalf("wall deployed before threshold")
	}
	if wall.PendingFees.Int64() != 400_000 || wall.CumulativeFees.Int64() != 400_000 {
		t.Fatalf("counters after first deposit: pending=%s cumulative=%s", wall.PendingFees, wall.CumulativeFees)
	}
	if got := h.emitter.count(EventTypeWallInitialized); got != 0 {
		t.Fatalf("initialized events before threshold: %d", got)
	}

	if err := h.deposit(700_000); err != nil {
		t.Fatalf("deposit crossing threshold: %v", err)
	}
	wall = h.wall()
	if !wall.Initialized {
		t.Fatalf("wall not deployed after threshold crossed")
	}
	if wall.PendingFees.Sign() != 0 {
		t.Fatalf("pending fees not reset: %s", wall.PendingFees)
	}
	if wall.CumulativeFees.Int64() != 1_100_000 {
		t.Fatalf("cumulative fees: %s", wall.CumulativeFees)
	}
	// Spot 1000, spacing 60: the range sits one spacing above, [1020, 1080).
	if wall.TickLower != 1020 || wall.TickUpper != 1080 {
		t.Fatalf("wall range [%d, %d), want [1020, 1080)", wall.TickLower, wall.TickUpper)
	}
	if wall.TickUpper-wall.TickLower != testSpacing {
		t.Fatalf("range width %d, want one spacing", wall.TickUpper-wall.TickLower)
	}
	if h.held(wall.TickLower, wall.TickUpper).Sign() <= 0 {
		t.Fatalf("no liquidity held at the wall range")
	}
	if got := h.emitter.count(EventTypeWallInitialized); got != 1 {
		t.Fatalf("initialized events: %d, want 1", got)
	}
	if got := h.emitter.count(EventTypeDepositReceived); got != 2 {
		t.Fatalf("deposit events: %d, want 2", got)
	}
}

func TestDepositThresholdBoundaryInclusive(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("deposit at threshold: %v", err)
	}
	wall := h.wall()
	if !wall.Initialized {
		t.Fatalf("deposit equal to the threshold must trigger a reposition")
	}
	if wall.PendingFees.Sign() != 0 {
		t.Fatalf("pending fees after boundary deposit: %s", wall.PendingFees)
	}
}

func TestDepositZeroIsNoop(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.deposit(0); err != nil {
		t.Fatalf("zero deposit: %v", err)
	}
	if got := h.emitter.count(EventTypeDepositReceived); got != 0 {
		t.Fatalf("zero deposit emitted %d events", got)
	}
	if err := h.engine.Deposit(testCaller, h.poolID, big.NewInt(-1), 0, true); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative deposit: %v", err)
	}
	if err := h.engine.Deposit(testCaller, h.poolID, nil, 0, true); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil deposit: %v", err)
	}
}

func TestDepositAuthorization(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.engine.Deposit(testStranger, h.poolID, big.NewInt(1), 0, true); !errors.Is(err, ErrNotTrustedCaller) {
		t.Fatalf("stranger deposit: %v", err)
	}
	if err := h.engine.CheckStaleness(testStranger, h.poolID, 0, true); !errors.Is(err, ErrNotTrustedCaller) {
		t.Fatalf("stranger staleness check: %v", err)
	}
	if err := h.engine.Close(testStranger, h.poolID); !errors.Is(err, ErrNotTrustedCaller) {
		t.Fatalf("stranger close: %v", err)
	}
}

func TestDepositRejectsMismatchedSide(t *testing.T) {
	h := newHarness(t, true, 0)
	err := h.engine.Deposit(testCaller, h.poolID, big.NewInt(10), 0, false)
	if !errors.Is(err, ErrNativeSideMismatch) {
		t.Fatalf("mismatched side metadata: %v", err)
	}
}

func TestCumulativeFeesConservation(t *testing.T) {
	h := newHarness(t, true, 500)
	deposits := []int64{300_000, 200_000, 600_000, 250_000, 800_000}
	total := int64(0)
	sinceReposition := int64(0)
	for _, amount := range deposits {
		if err := h.deposit(amount); err != nil {
			t.Fatalf("deposit %d: %v", amount, err)
		}
		total += amount
		sinceReposition += amount
		if sinceReposition >= testThreshold {
			sinceReposition = 0
		}
		wall := h.wall()
		if wall.CumulativeFees.Int64() != total {
			t.Fatalf("cumulative %s after %d deposited", wall.CumulativeFees, total)
		}
		if wall.PendingFees.Int64() != sinceReposition {
			t.Fatalf("pending %s, want %d", wall.PendingFees, sinceReposition)
		}
	}
}

func TestCloseOnUninitializedPool(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.engine.Close(testCaller, h.poolID); err != nil {
		t.Fatalf("close uninitialized: %v", err)
	}
	wall := h.wall()
	if wall.Initialized {
		t.Fatalf("close left the wall initialized")
	}
	if balance := h.pool.BalanceOf(h.native, testTreasury); balance.Sign() != 0 {
		t.Fatalf("treasury received %s from an empty wall", balance)
	}
	evt := h.emitter.last(EventTypeWallClosed)
	if evt == nil {
		t.Fatalf("no closed event emitted")
	}
	if evt.Attributes["nativeAmount"] != "0" {
		t.Fatalf("closed event nativeAmount = %q, want 0", evt.Attributes["nativeAmount"])
	}
}

func TestCloseSweepsHoldingsAndPendingFees(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	deployed := h.wall()
	if err := h.deposit(400_000); err != nil {
		t.Fatalf("pending deposit: %v", err)
	}

	if err := h.engine.Close(testCaller, h.poolID); err != nil {
		t.Fatalf("close: %v", err)
	}
	wall := h.wall()
	if wall.Initialized {
		t.Fatalf("wall still initialized after close")
	}
	if wall.PendingFees.Sign() != 0 {
		t.Fatalf("pending fees after close: %s", wall.PendingFees)
	}
	// Lifetime volume is monotone and survives teardown.
	if wall.CumulativeFees.Int64() != testThreshold+400_000 {
		t.Fatalf("cumulative fees after close: %s", wall.CumulativeFees)
	}
	if h.held(deployed.TickLower, deployed.TickUpper).Sign() != 0 {
		t.Fatalf("liquidity still held after close")
	}
	swept := h.pool.BalanceOf(h.native, testTreasury)
	if swept.Cmp(big.NewInt(400_000)) < 0 {
		t.Fatalf("treasury swept %s, want at least the pending fees", swept)
	}
	if got := h.emitter.count(EventTypeWallClosed); got != 1 {
		t.Fatalf("closed events: %d", got)
	}
}

func TestStalenessBoundary(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(100_000); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	depositedAt := h.now

	// Exactly at the window boundary nothing moves.
	h.now = depositedAt + testWindow
	if err := h.engine.CheckStaleness(testCaller, h.poolID, h.spotTick(), true); err != nil {
		t.Fatalf("staleness at boundary: %v", err)
	}
	if h.wall().Initialized {
		t.Fatalf("boundary check must not trigger")
	}

	// One second past the window the pending fees deploy.
	h.now = depositedAt + testWindow + 1
	if err := h.engine.CheckStaleness(testCaller, h.poolID, h.spotTick(), true); err != nil {
		t.Fatalf("staleness past boundary: %v", err)
	}
	wall := h.wall()
	if !wall.Initialized {
		t.Fatalf("stale pending fees were not deployed")
	}
	if wall.PendingFees.Sign() != 0 {
		t.Fatalf("pending fees after stale reposition: %s", wall.PendingFees)
	}
}

func TestStalenessRequiresPendingFees(t *testing.T) {
	h := newHarness(t, true, 1000)
	h.now += 10 * testWindow
	if err := h.engine.CheckStaleness(testCaller, h.poolID, h.spotTick(), true); err != nil {
		t.Fatalf("staleness without pending fees: %v", err)
	}
	if len(h.emitter.emitted) != h.emitter.count(EventTypeThresholdUpdated)+h.emitter.count(EventTypeStaleWindowUpdated) {
		t.Fatalf("staleness check on an idle pool emitted events")
	}

	// A second check inside a fresh window after the stale reposition is a
	// no-op as well: the reposition left nothing pending.
	if err := h.deposit(100_000); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	h.now += testWindow + 1
	if err := h.engine.CheckStaleness(testCaller, h.poolID, h.spotTick(), true); err != nil {
		t.Fatalf("first stale check: %v", err)
	}
	repositions := h.emitter.count(EventTypeWallInitialized) + h.emitter.count(EventTypeWallRepositioned)
	h.now += testWindow + 1
	if err := h.engine.CheckStaleness(testCaller, h.poolID, h.spotTick(), true); err != nil {
		t.Fatalf("second stale check: %v", err)
	}
	if got := h.emitter.count(EventTypeWallInitialized) + h.emitter.count(EventTypeWallRepositioned); got != repositions {
		t.Fatalf("stale check without new deposits repositioned the wall")
	}
}

func TestSetDisabledIsIdempotent(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}

	if err := h.engine.SetDisabled(testCreator, h.poolID, true); err != nil {
		t.Fatalf("disable: %v", err)
	}
	wall := h.wall()
	if !wall.Disabled || wall.Initialized {
		t.Fatalf("disable must close the wall: disabled=%v initialized=%v", wall.Disabled, wall.Initialized)
	}
	if got := h.emitter.count(EventTypeWallDisabled); got != 1 {
		t.Fatalf("disabled events: %d", got)
	}

	// Toggling to the current state changes nothing and stays silent.
	if err := h.engine.SetDisabled(testCreator, h.poolID, true); err != nil {
		t.Fatalf("repeat disable: %v", err)
	}
	if got := h.emitter.count(EventTypeWallDisabled); got != 1 {
		t.Fatalf("repeat disable emitted again: %d events", got)
	}
	if got := h.emitter.count(EventTypeWallClosed); got != 1 {
		t.Fatalf("repeat disable closed again: %d events", got)
	}

	if err := h.deposit(10); !errors.Is(err, ErrWallDisabled) {
		t.Fatalf("deposit on disabled wall: %v", err)
	}

	if err := h.engine.SetDisabled(testCreator, h.poolID, false); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if err := h.deposit(10); err != nil {
		t.Fatalf("deposit after re-enable: %v", err)
	}
}

func TestSetDisabledRequiresCreator(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.engine.SetDisabled(testStranger, h.poolID, true); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("stranger disable: %v", err)
	}
}

func TestParameterSettersAreOwnerGated(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.engine.SetSwapFeeThreshold(testStranger, big.NewInt(1)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("stranger threshold: %v", err)
	}
	if err := h.engine.SetSwapFeeThreshold(testOwner, big.NewInt(0)); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("zero threshold: %v", err)
	}
	if err := h.engine.SetStaleWindow(testStranger, 60); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("stranger window: %v", err)
	}
	if err := h.engine.SetStaleWindow(testOwner, 0); !errors.Is(err, ErrInvalidStaleWindow) {
		t.Fatalf("zero window: %v", err)
	}
}

func TestParamsSurviveEngineRestart(t *testing.T) {
	h := newHarness(t, true, 0)
	if err := h.engine.SetSwapFeeThreshold(testOwner, big.NewInt(42)); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if err := h.engine.SetStaleWindow(testOwner, 123); err != nil {
		t.Fatalf("set window: %v", err)
	}

	restarted := NewEngine()
	restarted.SetState(h.state)
	if err := restarted.LoadParams(); err != nil {
		t.Fatalf("load params: %v", err)
	}
	params := restarted.ParamsSnapshot()
	if params.SwapFeeThreshold.Int64() != 42 {
		t.Fatalf("restored threshold %s", params.SwapFeeThreshold)
	}
	if params.StaleWindowSeconds != 123 {
		t.Fatalf("restored window %d", params.StaleWindowSeconds)
	}
}

type paramWriteFailState struct {
	*mockState
}

func (s *paramWriteFailState) PutParams(*Params) error { return errors.New("write rejected") }

func TestParamSettersPersistBeforeApplying(t *testing.T) {
	h := newHarness(t, true, 0)
	before := h.engine.ParamsSnapshot()

	// A failed write must not leave a live value that reverts on restart.
	h.engine.SetState(&paramWriteFailState{mockState: h.state})
	if err := h.engine.SetSwapFeeThreshold(testOwner, big.NewInt(testThreshold+1)); err == nil {
		t.Fatalf("threshold update survived a failed persist")
	}
	if err := h.engine.SetStaleWindow(testOwner, testWindow+1); err == nil {
		t.Fatalf("window update survived a failed persist")
	}

	after := h.engine.ParamsSnapshot()
	if after.SwapFeeThreshold.Cmp(before.SwapFeeThreshold) != 0 {
		t.Fatalf("running threshold %s, want %s", after.SwapFeeThreshold, before.SwapFeeThreshold)
	}
	if after.StaleWindowSeconds != before.StaleWindowSeconds {
		t.Fatalf("running window %d, want %d", after.StaleWindowSeconds, before.StaleWindowSeconds)
	}
	stored, ok, err := h.state.GetParams()
	if err != nil || !ok {
		t.Fatalf("stored params: ok=%v err=%v", ok, err)
	}
	if stored.SwapFeeThreshold.Cmp(before.SwapFeeThreshold) != 0 || stored.StaleWindowSeconds != before.StaleWindowSeconds {
		t.Fatalf("stored params diverged: %s/%d", stored.SwapFeeThreshold, stored.StaleWindowSeconds)
	}
}

func TestTickReconciliationQuadrants(t *testing.T) {
	cases := []struct {
		name           string
		nativeIsToken0 bool
		supplied       int32
		spot           int32
		wantLower      int32
		wantUpper      int32
	}{
		// Spot ran past the supplied tick toward the wall side: the
		// supplied tick would place a range straddling spot, so the spot
		// tick wins.
		{"token0 corrected", true, 1000, 1100, 1140, 1200},
		{"token1 corrected", false, 1000, 900, 780, 840},
		// Spot moved away from the wall side: the supplied tick already
		// yields a range strictly outside spot and stands.
		{"token0 uncorrected", true, 1000, 900, 1020, 1080},
		{"token1 uncorrected", false, 800, 900, 720, 780},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.nativeIsToken0, tc.spot)
			if err := h.engine.Deposit(testCaller, h.poolID, big.NewInt(testThreshold), tc.supplied, tc.nativeIsToken0); err != nil {
				t.Fatalf("triggering deposit: %v", err)
			}
			wall := h.wall()
			if !wall.Initialized {
				t.Fatalf("wall not deployed")
			}
			if wall.TickLower != tc.wantLower || wall.TickUpper != tc.wantUpper {
				t.Fatalf("range [%d, %d), want [%d, %d)", wall.TickLower, wall.TickUpper, tc.wantLower, tc.wantUpper)
			}
		})
	}
}

func TestRepositionForwardsRealizedGains(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	first := h.wall()

	// Price trades through the wall: the old range fills entirely with the
	// launch token, which the next reposition realizes as gains.
	if err := h.pool.SetSpotTick(h.poolID, 2000); err != nil {
		t.Fatalf("move spot: %v", err)
	}
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("second deposit: %v", err)
	}

	wall := h.wall()
	if !wall.Initialized {
		t.Fatalf("wall not redeployed")
	}
	if wall.TickLower != 2040 || wall.TickUpper != 2100 {
		t.Fatalf("new range [%d, %d), want [2040, 2100)", wall.TickLower, wall.TickUpper)
	}
	if h.held(first.TickLower, first.TickUpper).Sign() != 0 {
		t.Fatalf("old range still holds liquidity")
	}
	gains := h.pool.BalanceOf(h.other, testTreasury)
	if gains.Sign() <= 0 {
		t.Fatalf("treasury received no realized gains")
	}
	evt := h.emitter.last(EventTypeRewardsTransferred)
	if evt == nil {
		t.Fatalf("no rewards event emitted")
	}
	if evt.Attributes["amount"] != gains.String() {
		t.Fatalf("rewards event amount %q, treasury holds %s", evt.Attributes["amount"], gains)
	}
	if got := h.emitter.count(EventTypeWallRepositioned); got != 1 {
		t.Fatalf("repositioned events: %d, want 1", got)
	}
}

// faultyPool rejects the next addFailures liquidity additions and passes
// everything else through, so a rolled-back call can still re-mint.
type faultyPool struct {
	*amm.Engine
	addFailures int
}

var errPoolRejected = errors.New("pool rejected")

func (f *faultyPool) ModifyLiquidity(id amm.PoolID, owner types.Address, lower, upper int32, delta *big.Int, salt string) (*big.Int, *big.Int, error) {
	if f.addFailures > 0 && delta != nil && delta.Sign() > 0 {
		f.addFailures--
		return nil, nil, errPoolRejected
	}
	return f.Engine.ModifyLiquidity(id, owner, lower, upper, delta, salt)
}

func TestFailedRepositionRestoresWallRecord(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(400_000); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	before := h.wall()

	h.engine.SetPoolEngine(&faultyPool{Engine: h.pool, addFailures: 1})
	err := h.deposit(testThreshold)
	if !errors.Is(err, errPoolRejected) {
		t.Fatalf("triggering deposit: %v", err)
	}

	// The whole call rolls back: the failed deposit never lands in the
	// counters and nothing is marked deployed.
	after := h.wall()
	if after.PendingFees.Cmp(before.PendingFees) != 0 {
		t.Fatalf("pending fees %s, want %s", after.PendingFees, before.PendingFees)
	}
	if after.CumulativeFees.Cmp(before.CumulativeFees) != 0 {
		t.Fatalf("cumulative fees %s, want %s", after.CumulativeFees, before.CumulativeFees)
	}
	if after.Initialized {
		t.Fatalf("failed reposition left the wall initialized")
	}
	if got := h.emitter.count(EventTypeWallInitialized); got != 0 {
		t.Fatalf("failed reposition emitted %d initialized events", got)
	}
}

func TestFailedRepositionRestoresPoolPosition(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	before := h.wall()
	heldBefore := h.held(before.TickLower, before.TickUpper)
	moduleBefore := h.pool.BalanceOf(h.native, testCaller)

	h.engine.SetPoolEngine(&faultyPool{Engine: h.pool, addFailures: 1})
	err := h.deposit(testThreshold)
	if !errors.Is(err, errPoolRejected) {
		t.Fatalf("triggering deposit: %v", err)
	}

	// The restored record must still describe liquidity the pool holds: the
	// old position is re-minted and the recovered capital repaid, so the next
	// reposition finds exactly what the record claims.
	after := h.wall()
	if !after.Initialized {
		t.Fatalf("failed reposition left an initialized wall marked torn down")
	}
	if after.TickLower != before.TickLower || after.TickUpper != before.TickUpper {
		t.Fatalf("range [%d, %d), want [%d, %d)", after.TickLower, after.TickUpper, before.TickLower, before.TickUpper)
	}
	if got := h.held(before.TickLower, before.TickUpper); got.Cmp(heldBefore) != 0 {
		t.Fatalf("held liquidity %s after rollback, want %s", got, heldBefore)
	}
	if got := h.pool.BalanceOf(h.native, testCaller); got.Cmp(moduleBefore) != 0 {
		t.Fatalf("module balance %s after rollback, want %s", got, moduleBefore)
	}
	if after.PendingFees.Cmp(before.PendingFees) != 0 {
		t.Fatalf("pending fees %s, want %s", after.PendingFees, before.PendingFees)
	}
}

// vetoDebitPool rejects the next failures debits of one token and passes
// everything else through.
type vetoDebitPool struct {
	*amm.Engine
	token    types.Address
	failures int
}

func (p *vetoDebitPool) Debit(token, payer types.Address, amount *big.Int) error {
	if token == p.token && p.failures > 0 {
		p.failures--
		return errPoolRejected
	}
	return p.Engine.Debit(token, payer, amount)
}

func TestFailedGainsForwardRollsBackReposition(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("bootstrap deposit: %v", err)
	}
	before := h.wall()
	if err := h.pool.SetSpotTick(h.poolID, 2000); err != nil {
		t.Fatalf("move spot: %v", err)
	}
	heldBefore := h.held(before.TickLower, before.TickUpper)

	h.engine.SetPoolEngine(&vetoDebitPool{Engine: h.pool, token: h.other, failures: 1})
	err := h.deposit(testThreshold)
	if !errors.Is(err, errPoolRejected) {
		t.Fatalf("triggering deposit: %v", err)
	}

	// The new position is unwound and the filled one re-minted, so the
	// realized gains stay in the wall instead of stranding in the module
	// account.
	after := h.wall()
	if !after.Initialized || after.TickLower != before.TickLower || after.TickUpper != before.TickUpper {
		t.Fatalf("record after rollback: initialized=%v range [%d, %d)", after.Initialized, after.TickLower, after.TickUpper)
	}
	if got := h.held(before.TickLower, before.TickUpper); got.Cmp(heldBefore) != 0 {
		t.Fatalf("held liquidity %s after rollback, want %s", got, heldBefore)
	}
	if got := h.held(2040, 2100); got.Sign() != 0 {
		t.Fatalf("new range still holds %s after rollback", got)
	}
	if balance := h.pool.BalanceOf(h.other, testTreasury); balance.Sign() != 0 {
		t.Fatalf("treasury received %s from a rolled-back reposition", balance)
	}
}

type reentrantPool struct {
	*amm.Engine
	hook func()
}

func (p *reentrantPool) Debit(token, payer types.Address, amount *big.Int) error {
	if p.hook != nil {
		hook := p.hook
		p.hook = nil
		hook()
	}
	return p.Engine.Debit(token, payer, amount)
}

func TestReentrantCallDuringSettlementIsRejected(t *testing.T) {
	h := newHarness(t, true, 1000)
	wrapped := &reentrantPool{Engine: h.pool}
	h.engine.SetPoolEngine(wrapped)

	var reentrant error
	wrapped.hook = func() {
		reentrant = h.engine.CheckStaleness(testCaller, h.poolID, 1000, true)
	}
	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("triggering deposit: %v", err)
	}
	if !errors.Is(reentrant, ErrPoolBusy) {
		t.Fatalf("reentrant call: %v, want ErrPoolBusy", reentrant)
	}
	if !h.wall().Initialized {
		t.Fatalf("outer deposit did not complete")
	}
}

func TestQueryPosition(t *testing.T) {
	h := newHarness(t, true, 1000)
	if err := h.deposit(250_000); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	amount0, amount1, pending, err := h.engine.QueryPosition(h.poolID)
	if err != nil {
		t.Fatalf("query before deploy: %v", err)
	}
	if amount0.Sign() != 0 || amount1.Sign() != 0 {
		t.Fatalf("undeployed wall reports holdings %s/%s", amount0, amount1)
	}
	if pending.Int64() != 250_000 {
		t.Fatalf("pending %s, want 250000", pending)
	}

	if err := h.deposit(testThreshold); err != nil {
		t.Fatalf("triggering deposit: %v", err)
	}
	amount0, amount1, pending, err = h.engine.QueryPosition(h.poolID)
	if err != nil {
		t.Fatalf("query after deploy: %v", err)
	}
	// Native is token0 and the range sits above spot, so the position is
	// entirely native.
	if amount0.Sign() <= 0 {
		t.Fatalf("deployed wall reports no native holdings")
	}
	if amount1.Sign() != 0 {
		t.Fatalf("single-sided wall reports launch-token holdings %s", amount1)
	}
	if pending.Sign() != 0 {
		t.Fatalf("pending after reposition: %s", pending)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	h := newHarness(t, true, 0)
	h.engine.SetPauses(staticPauses{ModuleName: true})
	if err := h.deposit(10); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("deposit while paused: %v", err)
	}
	if err := h.engine.Close(testCaller, h.poolID); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("close while paused: %v", err)
	}
}

type staticPauses map[string]bool

func (s staticPauses) IsPaused(module string) bool { return s[module] }
