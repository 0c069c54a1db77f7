package bidwall

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"rampart/core/types"
	"rampart/native/amm"
)

// ErrTokenUnknown is returned when a directory lookup misses.
var ErrTokenUnknown = errors.New("bidwall: token not registered")

// ThresholdPolicy decides the pending-fee level at which a deposit triggers a
// reposition, given the pool's lifetime fee volume.
type ThresholdPolicy interface {
	Threshold(cumulativeFees *big.Int) *big.Int
}

// FixedThreshold applies the same trigger level regardless of volume.
type FixedThreshold struct {
	Amount *big.Int
}

// Threshold implements ThresholdPolicy.
func (f FixedThreshold) Threshold(_ *big.Int) *big.Int {
	if f.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(f.Amount)
}

// ThresholdTier maps a minimum lifetime volume to a trigger level.
type ThresholdTier struct {
	MinCumulative *big.Int
	Amount        *big.Int
}

// TieredThreshold lowers the trigger level as a pool's lifetime volume grows,
// so busy pools reposition more often than quiet ones. The highest tier whose
// MinCumulative the volume has reached wins.
type TieredThreshold struct {
	tiers []ThresholdTier
}

// NewTieredThreshold constructs a policy from the supplied tiers. Tiers with
// nil bounds or amounts are dropped.
func NewTieredThreshold(tiers []ThresholdTier) *TieredThreshold {
	cleaned := make([]ThresholdTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.MinCumulative == nil || tier.Amount == nil {
			continue
		}
		cleaned = append(cleaned, ThresholdTier{
			MinCumulative: new(big.Int).Set(tier.MinCumulative),
			Amount:        new(big.Int).Set(tier.Amount),
		})
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].MinCumulative.Cmp(cleaned[j].MinCumulative) < 0
	})
	return &TieredThreshold{tiers: cleaned}
}

// Threshold implements ThresholdPolicy.
func (t *TieredThreshold) Threshold(cumulativeFees *big.Int) *big.Int {
	if t == nil || len(t.tiers) == 0 {
		return big.NewInt(0)
	}
	volume := cumulativeFees
	if volume == nil {
		volume = big.NewInt(0)
	}
	selected := t.tiers[0].Amount
	for _, tier := range t.tiers {
		if volume.Cmp(tier.MinCumulative) < 0 {
			break
		}
		selected = tier.Amount
	}
	return new(big.Int).Set(selected)
}

// TokenDirectory resolves launch metadata for non-native pool currencies.
type TokenDirectory interface {
	CreatorOf(token types.Address) (types.Address, error)
	TreasuryOf(token types.Address) (types.Address, error)
}

// TreasuryResolver determines where a pool's realized gains are forwarded.
type TreasuryResolver interface {
	ResolveTreasury(pool amm.PoolID, token types.Address) (types.Address, error)
}

// DirectoryResolver answers treasury lookups from a token directory. It is
// the default resolver wired by the daemon.
type DirectoryResolver struct {
	Directory TokenDirectory
}

// ResolveTreasury implements TreasuryResolver.
func (r DirectoryResolver) ResolveTreasury(_ amm.PoolID, token types.Address) (types.Address, error) {
	if r.Directory == nil {
		return types.Address{}, errors.New("bidwall: directory not configured")
	}
	return r.Directory.TreasuryOf(token)
}

type tokenRecord struct {
	creator  types.Address
	treasury types.Address
}

// StaticDirectory is an in-memory token directory used by the devnet daemon
// and tests.
type StaticDirectory struct {
	mu     sync.RWMutex
	tokens map[types.Address]tokenRecord
}

// NewStaticDirectory constructs an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{tokens: make(map[types.Address]tokenRecord)}
}

// Register records the creator and treasury for a token, replacing any
// previous entry.
func (d *StaticDirectory) Register(token, creator, treasury types.Address) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[token] = tokenRecord{creator: creator, treasury: treasury}
}

// CreatorOf implements TokenDirectory.
func (d *StaticDirectory) CreatorOf(token types.Address) (types.Address, error) {
	if d == nil {
		return types.Address{}, ErrTokenUnknown
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	record, ok := d.tokens[token]
	if !ok {
		return types.Address{}, ErrTokenUnknown
	}
	return record.creator, nil
}

// TreasuryOf implements TokenDirectory.
func (d *StaticDirectory) TreasuryOf(token types.Address) (types.Address, error) {
	if d == nil {
		return types.Address{}, ErrTokenUnknown
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	record, ok := d.tokens[token]
	if !ok {
		return types.Address{}, ErrTokenUnknown
	}
	return record.treasury, nil
}
