package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig writes yamlContent to a temp file and returns its path.
func writeTempConfig(t *testing.T, yamlContent []byte) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "patternlab-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func TestLoadFile(t *testing.T) {
	path := writeTempConfig(t, []byte(`
storage:
  data_dir: "/tmp/patternlab/data"
  sqlite_path: "/tmp/patternlab/patternlab.db"
server:
  host: "0.0.0.0"
  port: 8000
  grpc_port: 9000
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "sip"
redis:
  enabled: true
  addr: "redis:6379"
  db: 2
logging:
  level: "debug"
  format: "json"
market_data:
  default_timeframe: "4h"
  cache_ttl_seconds: 120
  lookback_days: 90
detection:
  confidence_threshold: 0.7
backtest:
  transaction_cost: 0.002
  min_trades: 10
  workers: 4
  holding_period: 8
  stop_loss: -0.03
  take_profit: 0.06
`))

	// Clear any environment overrides that might interfere.
	for _, k := range []string{"ALPACA_API_KEY", "APCA_API_KEY_ID", "DATA_DIR", "REDIS_ADDR", "LOG_LEVEL", "TRANSACTION_COST", "MIN_TRADES"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/patternlab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/patternlab/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/patternlab/patternlab.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/patternlab/patternlab.db")
	}

	// -- Server --
	if cfg.Server.Port != 8000 || cfg.Server.GRPCPort != 9000 {
		t.Errorf("Server ports = %d/%d, want 8000/9000", cfg.Server.Port, cfg.Server.GRPCPort)
	}

	// -- Alpaca / Redis --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v, want enabled redis:6379 db 2", cfg.Redis)
	}

	// -- Market data / detection --
	if cfg.MarketData.DefaultTimeframe != "4h" {
		t.Errorf("MarketData.DefaultTimeframe = %q, want %q", cfg.MarketData.DefaultTimeframe, "4h")
	}
	if cfg.MarketData.CacheTTL() != 2*time.Minute {
		t.Errorf("MarketData.CacheTTL() = %v, want %v", cfg.MarketData.CacheTTL(), 2*time.Minute)
	}
	if cfg.Detection.ConfidenceThreshold != 0.7 {
		t.Errorf("Detection.ConfidenceThreshold = %f, want %f", cfg.Detection.ConfidenceThreshold, 0.7)
	}

	// -- Backtest --
	bt := cfg.Backtest
	if bt.TransactionCost != 0.002 || bt.MinTrades != 10 || bt.Workers != 4 {
		t.Errorf("Backtest = %+v, want cost 0.002, min trades 10, workers 4", bt)
	}
	if bt.HoldingPeriod != 8 || bt.StopLoss != -0.03 || bt.TakeProfit != 0.06 {
		t.Errorf("Backtest exits = %d/%f/%f, want 8/-0.03/0.06", bt.HoldingPeriod, bt.StopLoss, bt.TakeProfit)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, []byte("logging:\n  level: warn\n"))
	for _, k := range []string{"LOG_LEVEL", "TRANSACTION_COST", "MIN_TRADES", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Backtest.TransactionCost != 0.001 {
		t.Errorf("Backtest.TransactionCost = %f, want %f", cfg.Backtest.TransactionCost, 0.001)
	}
	if cfg.Backtest.MinTrades != 30 {
		t.Errorf("Backtest.MinTrades = %d, want %d", cfg.Backtest.MinTrades, 30)
	}
	if cfg.Backtest.HoldingPeriod != 5 || cfg.Backtest.StopLoss != -0.02 || cfg.Backtest.TakeProfit != 0.04 {
		t.Errorf("Backtest exits = %+v, want 5/-0.02/0.04", cfg.Backtest)
	}
	if cfg.MarketData.CacheTTL() != 5*time.Minute {
		t.Errorf("MarketData.CacheTTL() = %v, want 5m", cfg.MarketData.CacheTTL())
	}
	if cfg.Detection.ConfidenceThreshold != 0.6 {
		t.Errorf("Detection.ConfidenceThreshold = %f, want 0.6", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled = true, want false by default")
	}

	if d := Default(); d.Backtest.MinTrades != 30 || d.MarketData.DefaultTimeframe != "1h" {
		t.Errorf("Default() = %+v, want built-in defaults", d)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, []byte(`
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
backtest:
  min_trades: 50
`))

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("TRANSACTION_COST", "0.0005")
	t.Setenv("MIN_TRADES", "")
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6380" {
		t.Errorf("Redis = %+v, want enabled at cache:6380", cfg.Redis)
	}
	if cfg.Backtest.TransactionCost != 0.0005 {
		t.Errorf("Backtest.TransactionCost = %f, want 0.0005 (env override)", cfg.Backtest.TransactionCost)
	}
	if cfg.Backtest.MinTrades != 50 {
		t.Errorf("Backtest.MinTrades = %d, want 50 (from YAML)", cfg.Backtest.MinTrades)
	}
}
