package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/BurntSushi/toml"
)

// Config carries the pool's economic parameters. It is loaded once at boot;
// runtime changes go through the engine's administrative surface.
type Config struct {
	// ReservePercentageBps is the share of net asset value targeted for the
	// reserve tier, in basis points.
	ReservePercentageBps uint64 `toml:"ReservePercentageBps"`
	// AtomicBuyEnabled toggles the lending facility's purchase extension as
	// the waterfall's fourth tier.
	AtomicBuyEnabled bool `toml:"AtomicBuyEnabled"`
	// MaxSupply caps the pool's net asset value in base units. Empty or "0"
	// leaves the pool uncapped.
	MaxSupply string `toml:"MaxSupply"`
	// AdminAddresses are granted the pool administrator role at boot.
	AdminAddresses []string `toml:"AdminAddresses"`
	// CustodianAddresses are granted the network custodian role at boot.
	CustodianAddresses []string `toml:"CustodianAddresses"`
	// LendingWhitelist enumerates borrowers allowed to draw on the facility
	// besides the pool itself.
	LendingWhitelist []string `toml:"LendingWhitelist"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ReservePercentageBps: 1_000,
		AtomicBuyEnabled:     false,
	}
}

// Load reads the TOML file at path, falling back to defaults when the file
// does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the engine would refuse anyway, so
// misconfiguration surfaces at boot rather than on the first request.
func (c *Config) Validate() error {
	if c.ReservePercentageBps > 10_000 {
		return fmt.Errorf("config: ReservePercentageBps %d exceeds 10000", c.ReservePercentageBps)
	}
	if _, err := c.MaxSupplyAmount(); err != nil {
		return err
	}
	return nil
}

// MaxSupplyAmount parses the configured cap. A nil-free zero means uncapped.
func (c *Config) MaxSupplyAmount() (*big.Int, error) {
	if c.MaxSupply == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(c.MaxSupply, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid MaxSupply %q", c.MaxSupply)
	}
	return amount, nil
}
