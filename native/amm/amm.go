// Package amm provides the concentrated-liquidity primitives the protocol
// builds on: Q64.96 sqrt-price math, tick conversions, liquidity accounting,
// and an in-process position engine used by tests and devnet deployments.
package amm

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"rampart/core/types"
)

// Tick bounds shared by every pool regardless of spacing.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	ErrTickRange           = errors.New("amm: tick out of range")
	ErrTickOrder           = errors.New("amm: tick lower must be below tick upper")
	ErrTickSpacing         = errors.New("amm: tick spacing must be positive")
	ErrTickAlignment       = errors.New("amm: tick not aligned to pool spacing")
	ErrSqrtRatioRange      = errors.New("amm: sqrt ratio out of range")
	ErrDivisionByZero      = errors.New("amm: division by zero")
	ErrOverflow            = errors.New("amm: arithmetic overflow")
	ErrIdenticalCurrencies = errors.New("amm: pool currencies must differ")
	ErrZeroCurrency        = errors.New("amm: pool currency must not be zero")
	ErrPoolExists          = errors.New("amm: pool already exists")
	ErrPoolNotFound        = errors.New("amm: pool not found")
	ErrPositionUnderflow   = errors.New("amm: position liquidity underflow")
	ErrInsufficientBalance = errors.New("amm: insufficient balance")
	ErrInvalidAmount       = errors.New("amm: amount must be positive")
	ErrInvalidPoolID       = errors.New("amm: invalid pool id")
)

// PoolKey identifies a pool by its ordered currencies, fee tier and spacing.
type PoolKey struct {
	Token0      types.Address
	Token1      types.Address
	FeeBps      uint32
	TickSpacing int32
}

// Normalized returns the key with its currencies in canonical byte order.
func (k PoolKey) Normalized() PoolKey {
	if bytes.Compare(k.Token0[:], k.Token1[:]) > 0 {
		k.Token0, k.Token1 = k.Token1, k.Token0
	}
	return k
}

// Validate rejects keys no pool may carry.
func (k PoolKey) Validate() error {
	if k.Token0.IsZero() || k.Token1.IsZero() {
		return ErrZeroCurrency
	}
	if k.Token0 == k.Token1 {
		return ErrIdenticalCurrencies
	}
	if k.TickSpacing <= 0 {
		return ErrTickSpacing
	}
	return nil
}

// PoolID is the canonical 32-byte pool identifier derived from the key.
type PoolID [32]byte

// ComputePoolID derives the identifier from the normalized key.
func ComputePoolID(key PoolKey) PoolID {
	key = key.Normalized()
	buf := make([]byte, 0, 2*types.AddressLength+8)
	buf = append(buf, key.Token0[:]...)
	buf = append(buf, key.Token1[:]...)
	var meta [8]byte
	binary.BigEndian.PutUint32(meta[:4], key.FeeBps)
	binary.BigEndian.PutUint32(meta[4:], uint32(key.TickSpacing))
	buf = append(buf, meta[:]...)
	var id PoolID
	copy(id[:], crypto.Keccak256(buf))
	return id
}

// String renders the identifier as lowercase hex.
func (id PoolID) String() string { return hex.EncodeToString(id[:]) }

// ParsePoolID decodes a hex pool identifier with or without a 0x prefix.
func ParsePoolID(s string) (PoolID, error) {
	var id PoolID
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidPoolID, err)
	}
	if len(raw) != len(id) {
		return id, ErrInvalidPoolID
	}
	copy(id[:], raw)
	return id, nil
}

// CheckTicks validates a position range against a pool's spacing.
func CheckTicks(lower, upper, spacing int32) error {
	if spacing <= 0 {
		return ErrTickSpacing
	}
	if lower >= upper {
		return ErrTickOrder
	}
	if lower < MinTick || upper > MaxTick {
		return ErrTickRange
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return ErrTickAlignment
	}
	return nil
}
