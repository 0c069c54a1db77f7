package bidwall

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"rampart/native/amm"
)

// Storage abstracts the subset of state manager functionality required by the
// wall store.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Store persists wall records and engine parameters behind the state manager.
type Store struct {
	kv Storage
}

// NewStore constructs a store bound to the provided storage backend.
func NewStore(kv Storage) *Store {
	return &Store{kv: kv}
}

type storedWallState struct {
	Disabled       bool
	Initialized    bool
	TickLower      uint64
	TickUpper      uint64
	PendingFees    string
	CumulativeFees string
	LastDepositAt  uint64
}

type storedParams struct {
	SwapFeeThreshold   string
	StaleWindowSeconds uint64
}

// GetWall retrieves the wall record for a pool. A missing record reports
// ok=false with a nil state.
func (s *Store) GetWall(pool amm.PoolID) (*WallState, bool, error) {
	if s == nil || s.kv == nil {
		return nil, false, fmt.Errorf("bidwall: store not initialised")
	}
	var stored storedWallState
	ok, err := s.kv.KVGet(wallKey(pool), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	wall, err := fromStoredWall(&stored)
	if err != nil {
		return nil, false, err
	}
	return wall, true, nil
}

// PutWall persists the wall record for a pool.
func (s *Store) PutWall(pool amm.PoolID, wall *WallState) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("bidwall: store not initialised")
	}
	if wall == nil {
		return fmt.Errorf("bidwall: wall record must not be nil")
	}
	return s.kv.KVPut(wallKey(pool), toStoredWall(wall))
}

// GetParams retrieves persisted engine parameters, if any were stored.
func (s *Store) GetParams() (*Params, bool, error) {
	if s == nil || s.kv == nil {
		return nil, false, fmt.Errorf("bidwall: store not initialised")
	}
	var stored storedParams
	ok, err := s.kv.KVGet(paramsStateKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	params, err := fromStoredParams(&stored)
	if err != nil {
		return nil, false, err
	}
	return params, true, nil
}

// PutParams persists the engine parameters.
func (s *Store) PutParams(params *Params) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("bidwall: store not initialised")
	}
	if params == nil {
		return fmt.Errorf("bidwall: params must not be nil")
	}
	return s.kv.KVPut(paramsStateKey, toStoredParams(params))
}

func toStoredWall(wall *WallState) storedWallState {
	stored := storedWallState{}
	if wall == nil {
		return stored
	}
	stored.Disabled = wall.Disabled
	stored.Initialized = wall.Initialized
	stored.TickLower = tickToStored(wall.TickLower)
	stored.TickUpper = tickToStored(wall.TickUpper)
	if wall.PendingFees != nil {
		stored.PendingFees = wall.PendingFees.String()
	}
	if wall.CumulativeFees != nil {
		stored.CumulativeFees = wall.CumulativeFees.String()
	}
	if wall.LastDepositAt > 0 {
		stored.LastDepositAt = uint64(wall.LastDepositAt)
	}
	return stored
}

func fromStoredWall(stored *storedWallState) (*WallState, error) {
	if stored == nil {
		return nil, fmt.Errorf("bidwall: nil stored record")
	}
	lastDeposit, err := uint64ToInt64(stored.LastDepositAt)
	if err != nil {
		return nil, fmt.Errorf("bidwall: last deposit overflow: %w", err)
	}
	wall := &WallState{
		Disabled:      stored.Disabled,
		Initialized:   stored.Initialized,
		TickLower:     storedToTick(stored.TickLower),
		TickUpper:     storedToTick(stored.TickUpper),
		LastDepositAt: lastDeposit,
	}
	wall.PendingFees, err = parseStoredAmount(stored.PendingFees)
	if err != nil {
		return nil, err
	}
	wall.CumulativeFees, err = parseStoredAmount(stored.CumulativeFees)
	if err != nil {
		return nil, err
	}
	return wall, nil
}

func toStoredParams(params *Params) storedParams {
	stored := storedParams{}
	if params == nil {
		return stored
	}
	if params.SwapFeeThreshold != nil {
		stored.SwapFeeThreshold = params.SwapFeeThreshold.String()
	}
	if params.StaleWindowSeconds > 0 {
		stored.StaleWindowSeconds = uint64(params.StaleWindowSeconds)
	}
	return stored
}

func fromStoredParams(stored *storedParams) (*Params, error) {
	if stored == nil {
		return nil, fmt.Errorf("bidwall: nil stored params")
	}
	staleWindow, err := uint64ToInt64(stored.StaleWindowSeconds)
	if err != nil {
		return nil, fmt.Errorf("bidwall: stale window overflow: %w", err)
	}
	params := &Params{StaleWindowSeconds: staleWindow}
	params.SwapFeeThreshold, err = parseStoredAmount(stored.SwapFeeThreshold)
	if err != nil {
		return nil, err
	}
	return params, nil
}

func parseStoredAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("bidwall: invalid amount %q", raw)
	}
	return amount, nil
}

// Ticks are signed; RLP only encodes unsigned integers, so they round-trip
// through their 32-bit two's complement image.
func tickToStored(tick int32) uint64 {
	return uint64(uint32(tick))
}

func storedToTick(stored uint64) int32 {
	return int32(uint32(stored))
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64", value)
	}
	return int64(value), nil
}
