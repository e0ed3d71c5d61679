// Package config defines all configuration for the backtester.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via NYC_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DataConfig describes the candle dataset to replay.
//
//   - Symbols:  exchange tickers, e.g. BTCUSDT.
//   - Interval: Binance kline interval key (1m, 5m, 15m, 1h, 4h, 1d).
//   - Start/End: dataset window as epoch seconds, end exclusive.
//   - CacheDir: where fetched klines are cached; empty disables the cache.
//   - BaseURL / WSURL: exchange endpoints, overridable for testing.
type DataConfig struct {
	Symbols  []string `mapstructure:"symbols"`
	Interval string   `mapstructure:"interval"`
	Start    uint64   `mapstructure:"start"`
	End      uint64   `mapstructure:"end"`
	CacheDir string   `mapstructure:"cache_dir"`
	BaseURL  string   `mapstructure:"base_url"`
	WSURL    string   `mapstructure:"ws_url"`
}

// AgentConfig seeds each simulated agent's ledger and the reference policy.
type AgentConfig struct {
	InitialBalance float32 `mapstructure:"initial_balance"`
	Commission     float32 `mapstructure:"commission"`
	Stake          float32 `mapstructure:"stake"`
	EntryDip       float32 `mapstructure:"entry_dip"`
	TakeProfit     float32 `mapstructure:"take_profit"`
	Expiration     uint64  `mapstructure:"expiration"`
}

// ReportConfig sets where run results are persisted. An empty path disables
// persistence.
type ReportConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	ModelID      string `mapstructure:"model_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides (NYC_ prefix).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("NYC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data.base_url", "https://api.binance.com")
	v.SetDefault("data.ws_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("data.interval", "5m")
	v.SetDefault("agent.initial_balance", 1000.0)
	v.SetDefault("agent.commission", 0.0001)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols is required")
	}
	if c.Data.Interval == "" {
		return fmt.Errorf("data.interval is required")
	}
	if c.Data.End <= c.Data.Start {
		return fmt.Errorf("data.end must be after data.start")
	}
	if c.Agent.InitialBalance <= 0 {
		return fmt.Errorf("agent.initial_balance must be > 0")
	}
	if c.Agent.Commission < 0 {
		return fmt.Errorf("agent.commission must be >= 0")
	}
	if c.Agent.Stake <= 0 {
		return fmt.Errorf("agent.stake must be > 0")
	}
	if c.Agent.EntryDip < 0 || c.Agent.EntryDip >= 1 {
		return fmt.Errorf("agent.entry_dip must be in [0, 1)")
	}
	if c.Agent.TakeProfit <= 0 {
		return fmt.Errorf("agent.take_profit must be > 0")
	}
	return nil
}
