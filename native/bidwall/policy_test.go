package bidwall

import (
	"errors"
	"math/big"
	"testing"

	"rampart/core/types"
)

func TestFixedThreshold(t *testing.T) {
	policy := FixedThreshold{Amount: big.NewInt(1000)}
	if got := policy.Threshold(big.NewInt(0)); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("threshold at zero volume: %s", got)
	}
	if got := policy.Threshold(new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("threshold at high volume: %s", got)
	}
	if got := (FixedThreshold{}).Threshold(big.NewInt(5)); got.Sign() != 0 {
		t.Fatalf("empty policy threshold: %s", got)
	}
}

func TestTieredThresholdSelection(t *testing.T) {
	policy := NewTieredThreshold([]ThresholdTier{
		{MinCumulative: big.NewInt(1_000_000), Amount: big.NewInt(500)},
		{MinCumulative: big.NewInt(0), Amount: big.NewInt(2000)},
		{MinCumulative: big.NewInt(100_000), Amount: big.NewInt(1000)},
	})

	cases := []struct {
		volume int64
		want   int64
	}{
		{0, 2000},
		{99_999, 2000},
		{100_000, 1000},
		{999_999, 1000},
		{1_000_000, 500},
		{5_000_000, 500},
	}
	for _, tc := range cases {
		if got := policy.Threshold(big.NewInt(tc.volume)); got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("volume %d: threshold %s, want %d", tc.volume, got, tc.want)
		}
	}
	if got := policy.Threshold(nil); got.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("nil volume: threshold %s", got)
	}
}

func TestTieredThresholdDropsBrokenTiers(t *testing.T) {
	policy := NewTieredThreshold([]ThresholdTier{
		{MinCumulative: nil, Amount: big.NewInt(1)},
		{MinCumulative: big.NewInt(1), Amount: nil},
	})
	if got := policy.Threshold(big.NewInt(10)); got.Sign() != 0 {
		t.Fatalf("expected zero threshold from empty policy, got %s", got)
	}
}

func TestStaticDirectory(t *testing.T) {
	directory := NewStaticDirectory()
	token := testAddr(0x01)
	creator := testAddr(0x02)
	treasury := testAddr(0x03)

	if _, err := directory.CreatorOf(token); !errors.Is(err, ErrTokenUnknown) {
		t.Fatalf("lookup before register: %v", err)
	}

	directory.Register(token, creator, treasury)

	got, err := directory.CreatorOf(token)
	if err != nil {
		t.Fatalf("creator lookup: %v", err)
	}
	if got != creator {
		t.Fatalf("creator mismatch: %s", got)
	}
	got, err = directory.TreasuryOf(token)
	if err != nil {
		t.Fatalf("treasury lookup: %v", err)
	}
	if got != treasury {
		t.Fatalf("treasury mismatch: %s", got)
	}

	replacement := testAddr(0x04)
	directory.Register(token, creator, replacement)
	got, err = directory.TreasuryOf(token)
	if err != nil {
		t.Fatalf("treasury lookup after update: %v", err)
	}
	if got != replacement {
		t.Fatalf("treasury not replaced: %s", got)
	}
}

func TestDirectoryResolver(t *testing.T) {
	directory := NewStaticDirectory()
	token := testAddr(0x0A)
	treasury := testAddr(0x0B)
	directory.Register(token, types.Address{}, treasury)

	resolver := DirectoryResolver{Directory: directory}
	got, err := resolver.ResolveTreasury(testPoolID(0x01), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != treasury {
		t.Fatalf("resolver mismatch: %s", got)
	}

	if _, err := (DirectoryResolver{}).ResolveTreasury(testPoolID(0x01), token); err == nil {
		t.Fatal("expected error from unconfigured resolver")
	}
}
