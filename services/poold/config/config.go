package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's runtime configuration.
type Config struct {
	ListenAddress string `yaml:"listen_address"`
	DataDir       string `yaml:"data_dir"`
	// PoolConfigPath points at the TOML file carrying the pool's economic
	// parameters.
	PoolConfigPath string `yaml:"pool_config_path"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	// RebalanceSchedule is a cron expression for the maintenance cycle.
	RebalanceSchedule string `yaml:"rebalance_schedule"`
	// OperatorAddress is the identity the scheduler uses when it runs the
	// rebalance. It must carry the pool administrator role.
	OperatorAddress string  `yaml:"operator_address"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	// Environment tags emitted telemetry (for example "staging").
	Environment string `yaml:"environment"`
	// AdminJWTSecret is the HMAC secret for admin bearer tokens. Leaving it
	// empty keeps the admin routes closed.
	AdminJWTSecret   string `yaml:"admin_jwt_secret"`
	AdminJWTIssuer   string `yaml:"admin_jwt_issuer"`
	AdminJWTAudience string `yaml:"admin_jwt_audience"`
}

func Default() Config {
	return Config{
		ListenAddress:     ":8645",
		DataDir:           "./data",
		PoolConfigPath:    "./pool.toml",
		LogLevel:          "info",
		LogFormat:         "json",
		RebalanceSchedule: "0 0 * * *",
		RateLimitRPS:      20,
		RateLimitBurst:    40,
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("poold config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("poold config: parse %s: %w", path, err)
	}
	if cfg.ListenAddress == "" {
		return cfg, fmt.Errorf("poold config: listen_address is required")
	}
	if cfg.RateLimitRPS <= 0 {
		return cfg, fmt.Errorf("poold config: rate_limit_rps must be positive")
	}
	return cfg, nil
}
