package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rampart/core/types"
	"rampart/native/bidwall"
)

// Storage backend identifiers accepted by the daemon.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Config is the root daemon configuration decoded from TOML.
type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	StorageBackend  string `toml:"StorageBackend"`
	GenesisManifest string `toml:"GenesisManifest"`
	Env             string `toml:"Env"`

	Log       LogConfig       `toml:"Log"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
	Engine    EngineConfig    `toml:"Engine"`
}

// LogConfig controls the optional rotating file sink next to stdout.
type LogConfig struct {
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// AuthConfig gates the HTTP surface with HS256 bearer tokens.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// RateLimitConfig throttles HTTP clients.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// EngineConfig carries the wall engine's wiring and tunables. Addresses are
// bech32 strings in the file and resolved through Resolve.
type EngineConfig struct {
	TrustedCaller      string `toml:"TrustedCaller"`
	Owner              string `toml:"Owner"`
	NativeToken        string `toml:"NativeToken"`
	SwapFeeThreshold   string `toml:"SwapFeeThreshold"`
	StaleWindowSeconds int64  `toml:"StaleWindowSeconds"`
}

// EngineWiring is the parsed form of EngineConfig.
type EngineWiring struct {
	TrustedCaller      types.Address
	Owner              types.Address
	NativeToken        types.Address
	SwapFeeThreshold   *big.Int
	StaleWindowSeconds int64
}

// Load reads the configuration at path, creating a commented default file on
// first run. Unknown keys are rejected so typos fail loudly instead of
// silently falling back to defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s contains unknown key %q", path, undecoded[0].String())
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:   ":8681",
		DataDir:         "./rampart-data",
		StorageBackend:  BackendLevelDB,
		GenesisManifest: "",
		Env:             "dev",
		Log: LogConfig{
			MaxSizeMB:  128,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
			Metrics:  true,
			Traces:   true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             30,
		},
		Engine: EngineConfig{
			SwapFeeThreshold:   bidwall.DefaultSwapFeeThreshold.String(),
			StaleWindowSeconds: bidwall.DefaultStaleWindowSeconds,
		},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write default %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if c.ListenAddress == "" {
		c.ListenAddress = ":8681"
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./rampart-data"
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = BackendLevelDB
	}
	c.GenesisManifest = strings.TrimSpace(c.GenesisManifest)
	c.Env = strings.TrimSpace(c.Env)
	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	c.Auth.HMACSecret = strings.TrimSpace(c.Auth.HMACSecret)
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	c.Auth.Audience = strings.TrimSpace(c.Auth.Audience)
	c.Engine.TrustedCaller = strings.TrimSpace(c.Engine.TrustedCaller)
	c.Engine.Owner = strings.TrimSpace(c.Engine.Owner)
	c.Engine.NativeToken = strings.TrimSpace(c.Engine.NativeToken)
	c.Engine.SwapFeeThreshold = strings.TrimSpace(c.Engine.SwapFeeThreshold)
	if c.Engine.SwapFeeThreshold == "" {
		c.Engine.SwapFeeThreshold = bidwall.DefaultSwapFeeThreshold.String()
	}
	if c.Engine.StaleWindowSeconds <= 0 {
		c.Engine.StaleWindowSeconds = bidwall.DefaultStaleWindowSeconds
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 600
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 30
	}
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	if c.Auth.Enabled && c.Auth.HMACSecret == "" {
		return fmt.Errorf("config: auth enabled without an HMAC secret")
	}
	if c.Log.FilePath != "" && c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("config: log rotation requires a positive MaxSizeMB")
	}
	if _, err := c.Engine.Resolve(); err != nil {
		return err
	}
	return nil
}

// Resolve parses the bech32 addresses and decimal threshold into their
// runtime representations. Empty addresses resolve to the zero address so a
// fresh default file loads; the daemon refuses to serve until they are set.
func (e EngineConfig) Resolve() (EngineWiring, error) {
	wiring := EngineWiring{StaleWindowSeconds: e.StaleWindowSeconds}
	var err error
	if wiring.TrustedCaller, err = parseOptionalAddress(e.TrustedCaller); err != nil {
		return wiring, fmt.Errorf("config: engine trusted caller: %w", err)
	}
	if wiring.Owner, err = parseOptionalAddress(e.Owner); err != nil {
		return wiring, fmt.Errorf("config: engine owner: %w", err)
	}
	if wiring.NativeToken, err = parseOptionalAddress(e.NativeToken); err != nil {
		return wiring, fmt.Errorf("config: engine native token: %w", err)
	}
	threshold := strings.TrimSpace(e.SwapFeeThreshold)
	if threshold == "" {
		wiring.SwapFeeThreshold = new(big.Int).Set(bidwall.DefaultSwapFeeThreshold)
		return wiring, nil
	}
	parsed, ok := new(big.Int).SetString(threshold, 10)
	if !ok || parsed.Sign() <= 0 {
		return wiring, fmt.Errorf("config: engine threshold %q is not a positive decimal", e.SwapFeeThreshold)
	}
	wiring.SwapFeeThreshold = parsed
	return wiring, nil
}

func parseOptionalAddress(raw string) (types.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Address{}, nil
	}
	return types.ParseAddress(raw)
}
