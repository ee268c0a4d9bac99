package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"presale/native/sale"
)

// Config is the top-level daemon configuration.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	Environment     string `toml:"Environment"`
	RPCAuthTokenEnv string `toml:"RPCAuthTokenEnv"`

	Log       LogConfig      `toml:"Log"`
	RateLimit RateLimit      `toml:"RateLimit"`
	Oracle    OracleConfig   `toml:"Oracle"`
	Sale      SaleConfig     `toml:"Sale"`
	Stables   []StableAsset  `toml:"StableAssets"`
	Rewards   []RewardBinder `toml:"RewardTokens"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RateLimit bounds the JSON-RPC request rate per listener.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// OracleConfig selects the native-asset price feed.
type OracleConfig struct {
	Endpoint      string `toml:"Endpoint"`
	MaxAgeSeconds int64  `toml:"MaxAgeSeconds"`
}

// SaleConfig carries the fixed economic parameters. Amounts are decimal
// strings in 18-decimal units.
type SaleConfig struct {
	Owner          string   `toml:"Owner"`
	Beneficiary    string   `toml:"Beneficiary"`
	SaleAccount    string   `toml:"SaleAccount"`
	PriceA         string   `toml:"PriceA"`
	PriceB         string   `toml:"PriceB"`
	MinUSD         string   `toml:"MinUSD"`
	MaxUSD         string   `toml:"MaxUSD"`
	CapA           string   `toml:"CapA"`
	FeedDecimals   uint8    `toml:"FeedDecimals"`
	RewardDecimals uint8    `toml:"RewardDecimals"`
	ScheduleA      Schedule `toml:"ScheduleA"`
	ScheduleB      Schedule `toml:"ScheduleB"`
}

// Schedule expresses a vesting schedule in seconds.
type Schedule struct {
	CliffSeconds    uint64 `toml:"CliffSeconds"`
	DurationSeconds uint64 `toml:"DurationSeconds"`
	IntervalSeconds uint64 `toml:"IntervalSeconds"`
}

// StableAsset registers one stablecoin payment path.
type StableAsset struct {
	Symbol   string `toml:"Symbol"`
	Address  string `toml:"Address"`
	Decimals uint8  `toml:"Decimals"`
}

// RewardBinder pre-registers a reward token in the bank so the claim latch
// can resolve it.
type RewardBinder struct {
	Symbol   string `toml:"Symbol"`
	Address  string `toml:"Address"`
	Decimals uint8  `toml:"Decimals"`
}

// Load reads the configuration at path, writing a commented default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./presale-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if strings.TrimSpace(c.RPCAuthTokenEnv) == "" {
		c.RPCAuthTokenEnv = "PRESALE_RPC_TOKEN"
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 50
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 100
	}
	if c.Sale.FeedDecimals == 0 {
		c.Sale.FeedDecimals = 8
	}
	if c.Sale.RewardDecimals == 0 {
		c.Sale.RewardDecimals = 18
	}
}

// Validate checks the structural fields; economic parameters are validated
// again when the sale engine is constructed.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.Sale.Owner); err != nil {
		return fmt.Errorf("config: Sale.Owner: %w", err)
	}
	if _, err := parseAddress(c.Sale.Beneficiary); err != nil {
		return fmt.Errorf("config: Sale.Beneficiary: %w", err)
	}
	if _, err := parseAddress(c.Sale.SaleAccount); err != nil {
		return fmt.Errorf("config: Sale.SaleAccount: %w", err)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"Sale.PriceA", c.Sale.PriceA},
		{"Sale.PriceB", c.Sale.PriceB},
		{"Sale.MinUSD", c.Sale.MinUSD},
		{"Sale.MaxUSD", c.Sale.MaxUSD},
		{"Sale.CapA", c.Sale.CapA},
	} {
		if _, err := parseWei(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	seen := make(map[string]bool, len(c.Stables))
	for _, asset := range c.Stables {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: stable asset symbol required")
		}
		if seen[symbol] {
			return fmt.Errorf("config: duplicate stable asset %s", symbol)
		}
		seen[symbol] = true
		if _, err := parseAddress(asset.Address); err != nil {
			return fmt.Errorf("config: stable asset %s: %w", symbol, err)
		}
		if asset.Decimals == 0 || asset.Decimals > 18 {
			return fmt.Errorf("config: stable asset %s decimals out of range", symbol)
		}
	}
	for _, reward := range c.Rewards {
		if _, err := parseAddress(reward.Address); err != nil {
			return fmt.Errorf("config: reward token %s: %w", reward.Symbol, err)
		}
	}
	return nil
}

// EngineConfig converts the TOML fields into the engine's typed parameters.
func (c *Config) EngineConfig() (sale.Config, error) {
	owner, err := parseAddress(c.Sale.Owner)
	if err != nil {
		return sale.Config{}, err
	}
	beneficiary, err := parseAddress(c.Sale.Beneficiary)
	if err != nil {
		return sale.Config{}, err
	}
	priceA, err := parseWei(c.Sale.PriceA)
	if err != nil {
		return sale.Config{}, err
	}
	priceB, err := parseWei(c.Sale.PriceB)
	if err != nil {
		return sale.Config{}, err
	}
	minUSD, err := parseWei(c.Sale.MinUSD)
	if err != nil {
		return sale.Config{}, err
	}
	maxUSD, err := parseWei(c.Sale.MaxUSD)
	if err != nil {
		return sale.Config{}, err
	}
	capA, err := parseWei(c.Sale.CapA)
	if err != nil {
		return sale.Config{}, err
	}
	return sale.Config{
		PriceA:         priceA,
		PriceB:         priceB,
		MinUSD:         minUSD,
		MaxUSD:         maxUSD,
		CapA:           capA,
		Owner:          owner,
		Beneficiary:    beneficiary,
		FeedDecimals:   c.Sale.FeedDecimals,
		RewardDecimals: c.Sale.RewardDecimals,
		ScheduleA: sale.VestingSchedule{
			Cliff:    c.Sale.ScheduleA.CliffSeconds,
			Duration: c.Sale.ScheduleA.DurationSeconds,
			Interval: c.Sale.ScheduleA.IntervalSeconds,
		},
		ScheduleB: sale.VestingSchedule{
			Cliff:    c.Sale.ScheduleB.CliffSeconds,
			Duration: c.Sale.ScheduleB.DurationSeconds,
			Interval: c.Sale.ScheduleB.IntervalSeconds,
		},
	}, nil
}

// SaleAccountAddress returns the parsed custody account.
func (c *Config) SaleAccountAddress() (common.Address, error) {
	return parseAddress(c.Sale.SaleAccount)
}

// AuthToken resolves the RPC bearer token from the configured environment
// variable. An empty token disables authenticated methods.
func (c *Config) AuthToken() string {
	return strings.TrimSpace(os.Getenv(c.RPCAuthTokenEnv))
}

const month = uint64(30 * 24 * 60 * 60)

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:      ":8545",
		DataDir:         "./presale-data",
		Environment:     "dev",
		RPCAuthTokenEnv: "PRESALE_RPC_TOKEN",
		RateLimit:       RateLimit{RequestsPerSecond: 50, Burst: 100},
		Sale: SaleConfig{
			Owner:          common.Address{}.Hex(),
			Beneficiary:    common.Address{}.Hex(),
			SaleAccount:    common.Address{}.Hex(),
			PriceA:         "2500000000000000",
			PriceB:         "250000000000000000",
			MinUSD:         "100000000000000000000",
			MaxUSD:         "10000000000000000000000",
			CapA:           "100000000000000000000000000",
			FeedDecimals:   8,
			RewardDecimals: 18,
			ScheduleA:      Schedule{CliffSeconds: 8 * month, DurationSeconds: 28 * month, IntervalSeconds: 2 * month},
			ScheduleB:      Schedule{CliffSeconds: 8 * month, DurationSeconds: 28 * month, IntervalSeconds: 2 * month},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseWei(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return parsed, nil
}
