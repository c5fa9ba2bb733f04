// Package config defines all configuration for a kernel instance. Config is
// loaded from a YAML file (default: configs/config.yaml) with sensitive
// fields overridable via NAUTILUS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Kernel  KernelConfig  `mapstructure:"kernel"`
	Venues  []VenueConfig `mapstructure:"venues"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Store   StoreConfig   `mapstructure:"store"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// KernelConfig configures kernel construction directly (configuration is
// fully expressed at kernel construction; runtime parameter tuning flows
// through the message bus instead).
//
//   - TraderID: identifies this kernel instance on the message bus and in
//     reconciliation reports.
//   - Oms: "netting" or "hedging".
//   - NumberFormat: the one process-wide datum permitted outside the
//     kernel itself — governs decimal parsing/display. Only "plain"
//     (unlocalized, no grouping) is currently supported; anything else is
//     rejected at Validate.
//   - Backtest: true runs the kernel against RegisterBacktestVenue'd data
//     instead of live adapters.
type KernelConfig struct {
	TraderID     string `mapstructure:"trader_id"`
	Oms          string `mapstructure:"oms"`
	NumberFormat string `mapstructure:"number_format"`
	Backtest     bool   `mapstructure:"backtest"`
}

// VenueConfig holds one venue's connection details. Testnet/Demo select
// sandbox credentials and endpoints without changing the wire protocol.
// PingInterval/ReadTimeout/WriteTimeout/MaxReconnectWait tune the venue's
// WS feed directly (adapter.WSConfig); zero values fall back to that
// package's defaults rather than any one venue's published tunings.
type VenueConfig struct {
	Name             string        `mapstructure:"name"`
	RestURL          string        `mapstructure:"rest_url"`
	WSURL            string        `mapstructure:"ws_url"`
	ApiKey           string        `mapstructure:"api_key"`
	Secret           string        `mapstructure:"secret"`
	Testnet          bool          `mapstructure:"testnet"`
	Demo             bool          `mapstructure:"demo"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	MaxReconnectWait time.Duration `mapstructure:"max_reconnect_wait"`
	OrderRateBurst   float64       `mapstructure:"order_rate_burst"`
	OrderRatePerSec  float64       `mapstructure:"order_rate_per_sec"`
	CancelRateBurst  float64       `mapstructure:"cancel_rate_burst"`
	CancelRatePerSec float64       `mapstructure:"cancel_rate_per_sec"`
	BookRateBurst    float64       `mapstructure:"book_rate_burst"`
	BookRatePerSec   float64       `mapstructure:"book_rate_per_sec"`
}

// RiskConfig bounds pre-trade order submission rate and the kill-switch
// cooldown after an account liquidation; MaxOrders/Window map directly
// onto risk.RateLimitConfig.
type RiskConfig struct {
	MaxOrders          int           `mapstructure:"max_orders"`
	Window             time.Duration `mapstructure:"window"`
	KillSwitchCooldown time.Duration `mapstructure:"kill_switch_cooldown"`
}

// CatalogConfig points at the day-partitioned historical data directory.
type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// StoreConfig sets the MongoDB URI positions/accounts are durably
// snapshot to (cache.NewStore).
type StoreConfig struct {
	MongoURI string `mapstructure:"mongo_uri"`
}

// BridgeConfig mirrors msgbus.BridgeConfig: a topic whitelist forwarded onto
// a shared Redis stream for a dashboard or a second node.
type BridgeConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	RedisAddr      string   `mapstructure:"redis_addr"`
	Topics         []string `mapstructure:"topics"`
	StreamPrefix   string   `mapstructure:"stream_prefix"`
	UseTraderID    bool     `mapstructure:"use_trader_id"`
	UseInstanceID  bool     `mapstructure:"use_instance_id"`
	StreamPerTopic bool     `mapstructure:"stream_per_topic"`
	MaxStreamLen   int64    `mapstructure:"max_stream_len"`
	InstanceID     string   `mapstructure:"instance_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("NAUTILUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if uri := os.Getenv("NAUTILUS_MONGO_URI"); uri != "" {
		cfg.Store.MongoURI = uri
	}
	if addr := os.Getenv("NAUTILUS_REDIS_ADDR"); addr != "" {
		cfg.Bridge.RedisAddr = addr
	}
	if os.Getenv("NAUTILUS_DRY_RUN") == "true" || os.Getenv("NAUTILUS_DRY_RUN") == "1" {
		cfg.DryRun = true
	}
	if cfg.Kernel.NumberFormat == "" {
		cfg.Kernel.NumberFormat = "plain"
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Kernel.TraderID == "" {
		return fmt.Errorf("kernel.trader_id is required")
	}
	switch c.Kernel.Oms {
	case "netting", "hedging":
	default:
		return fmt.Errorf("kernel.oms must be one of: netting, hedging")
	}
	if c.Kernel.NumberFormat != "plain" {
		return fmt.Errorf("kernel.number_format must be \"plain\" (unlocalized decimal, no grouping)")
	}
	if !c.Kernel.Backtest && len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue is required unless kernel.backtest is true")
	}
	for _, venue := range c.Venues {
		if venue.Name == "" {
			return fmt.Errorf("venues[].name is required")
		}
		if venue.RestURL == "" {
			return fmt.Errorf("venue %q: rest_url is required", venue.Name)
		}
	}
	if c.Risk.MaxOrders < 0 {
		return fmt.Errorf("risk.max_orders must be >= 0")
	}
	if c.Bridge.Enabled && c.Bridge.RedisAddr == "" {
		return fmt.Errorf("bridge.redis_addr is required when bridge.enabled is true")
	}
	return nil
}
