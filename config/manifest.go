package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rampart/core/types"
	"rampart/native/amm"
)

// Manifest seeds the devnet reference pool engine: the native currency plus
// one entry per launch pool.
type Manifest struct {
	Native string         `yaml:"native"`
	Pools  []ManifestPool `yaml:"pools"`
}

// ManifestPool declares one launch pool paired against the native currency.
type ManifestPool struct {
	Token         string `yaml:"token"`
	Creator       string `yaml:"creator"`
	Treasury      string `yaml:"treasury"`
	FeeBps        uint32 `yaml:"fee_bps"`
	TickSpacing   int32  `yaml:"tick_spacing"`
	InitialTick   int32  `yaml:"initial_tick"`
	ModuleFunding string `yaml:"module_funding"`
}

// SeedPool is the parsed form of a manifest entry.
type SeedPool struct {
	Key           amm.PoolKey
	Token         types.Address
	Creator       types.Address
	Treasury      types.Address
	InitialTick   int32
	ModuleFunding *big.Int
}

// LoadManifest reads and validates a YAML pool manifest.
func LoadManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open: %w", err)
	}
	defer file.Close()

	manifest := &Manifest{}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(manifest); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", path, err)
	}
	if strings.TrimSpace(manifest.Native) == "" {
		return nil, fmt.Errorf("manifest: native currency address required")
	}
	if len(manifest.Pools) == 0 {
		return nil, fmt.Errorf("manifest: at least one pool required")
	}
	return manifest, nil
}

// Seeds resolves every manifest entry against the native currency.
func (m *Manifest) Seeds() (types.Address, []SeedPool, error) {
	native, err := types.ParseAddress(m.Native)
	if err != nil {
		return types.Address{}, nil, fmt.Errorf("manifest: native: %w", err)
	}
	seeds := make([]SeedPool, 0, len(m.Pools))
	for i, entry := range m.Pools {
		seed, err := entry.resolve(native)
		if err != nil {
			return types.Address{}, nil, fmt.Errorf("manifest: pool %d: %w", i, err)
		}
		seeds = append(seeds, seed)
	}
	return native, seeds, nil
}

func (p ManifestPool) resolve(native types.Address) (SeedPool, error) {
	seed := SeedPool{InitialTick: p.InitialTick}
	var err error
	if seed.Token, err = types.ParseAddress(p.Token); err != nil {
		return seed, fmt.Errorf("token: %w", err)
	}
	if seed.Token == native {
		return seed, fmt.Errorf("token must differ from the native currency")
	}
	if seed.Creator, err = types.ParseAddress(p.Creator); err != nil {
		return seed, fmt.Errorf("creator: %w", err)
	}
	if seed.Treasury, err = types.ParseAddress(p.Treasury); err != nil {
		return seed, fmt.Errorf("treasury: %w", err)
	}
	if p.TickSpacing <= 0 {
		return seed, fmt.Errorf("tick spacing must be positive")
	}
	if p.InitialTick < amm.MinTick || p.InitialTick >= amm.MaxTick {
		return seed, fmt.Errorf("initial tick %d out of range", p.InitialTick)
	}
	seed.Key = amm.PoolKey{
		Token0:      native,
		Token1:      seed.Token,
		FeeBps:      p.FeeBps,
		TickSpacing: p.TickSpacing,
	}.Normalized()
	funding := strings.TrimSpace(p.ModuleFunding)
	if funding == "" {
		seed.ModuleFunding = big.NewInt(0)
		return seed, nil
	}
	parsed, ok := new(big.Int).SetString(funding, 10)
	if !ok || parsed.Sign() < 0 {
		return seed, fmt.Errorf("module funding %q is not a non-negative decimal", p.ModuleFunding)
	}
	seed.ModuleFunding = parsed
	return seed, nil
}
