package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the pattern lab services.
type Config struct {
	Storage    Storage          `yaml:"storage"`
	Server     Server           `yaml:"server"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Redis      Redis            `yaml:"redis"`
	Logging    Logging          `yaml:"logging"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Detection  DetectionConfig  `yaml:"detection"`
	Backtest   BacktestConfig   `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
	RateLimit int    `yaml:"rate_limit_per_min"`
}

// Redis configures the market-data cache.
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MarketDataConfig controls bar retrieval and caching.
type MarketDataConfig struct {
	DefaultTimeframe string `yaml:"default_timeframe"`
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
	LookbackDays     int    `yaml:"lookback_days"`
}

// CacheTTL returns the cache time-to-live as a duration.
func (m MarketDataConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// DetectionConfig controls the rule-based pattern detector.
type DetectionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// BacktestConfig holds transaction costs, sample-size limits and the default
// exit rules for backtest runs.
type BacktestConfig struct {
	TransactionCost float64 `yaml:"transaction_cost"`
	MinTrades       int     `yaml:"min_trades"`
	Workers         int     `yaml:"workers"`
	HoldingPeriod   int     `yaml:"holding_period"`
	StopLoss        float64 `yaml:"stop_loss"`
	TakeProfit      float64 `yaml:"take_profit"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and then fills any
// remaining zero values with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields. Stop loss and take profit keep
// their sign conventions: a zero stop becomes -2%, a zero target +4%.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/patternlab.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Alpaca.RateLimit == 0 {
		cfg.Alpaca.RateLimit = 200
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.MarketData.DefaultTimeframe == "" {
		cfg.MarketData.DefaultTimeframe = "1h"
	}
	if cfg.MarketData.CacheTTLSeconds == 0 {
		cfg.MarketData.CacheTTLSeconds = 300
	}
	if cfg.MarketData.LookbackDays == 0 {
		cfg.MarketData.LookbackDays = 30
	}
	if cfg.Detection.ConfidenceThreshold == 0 {
		cfg.Detection.ConfidenceThreshold = 0.6
	}
	if cfg.Backtest.TransactionCost == 0 {
		cfg.Backtest.TransactionCost = 0.001
	}
	if cfg.Backtest.MinTrades == 0 {
		cfg.Backtest.MinTrades = 30
	}
	if cfg.Backtest.Workers == 0 {
		cfg.Backtest.Workers = 1
	}
	if cfg.Backtest.HoldingPeriod == 0 {
		cfg.Backtest.HoldingPeriod = 5
	}
	if cfg.Backtest.StopLoss == 0 {
		cfg.Backtest.StopLoss = -0.02
	}
	if cfg.Backtest.TakeProfit == 0 {
		cfg.Backtest.TakeProfit = 0.04
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("TRANSACTION_COST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.TransactionCost = f
		}
	}

	if v := os.Getenv("MIN_TRADES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.MinTrades = n
		}
	}

	// Standard Alpaca env vars take precedence.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
