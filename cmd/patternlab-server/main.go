package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/api"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/config"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/marketdata"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/util"
)

const version = "0.1.0"

func main() {
	cfgPath := "config/patternlab.yaml"
	if p := os.Getenv("PATTERNLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfgPath, os.Stdout)
	cancel()
	if err != nil {
		log.Fatalf("patternlab-server: %v", err)
	}
}

// run wires the stores, market data and service from the config at cfgPath
// and serves until ctx is cancelled. Resources are released before it
// returns.
func run(ctx context.Context, cfgPath string, stdout io.Writer) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLoggerTo(stdout, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	tf, err := marketdata.ParseTimeframe(cfg.MarketData.DefaultTimeframe)
	if err != nil {
		return fmt.Errorf("market_data.default_timeframe: %w", err)
	}

	// Stores.
	ps := store.NewParquetStore(cfg.Storage.DataDir)
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer runs.Close()

	// Market data: Alpaca when credentials are present, local parquet bars
	// otherwise.
	var source marketdata.Source
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		source = marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Alpaca.Feed, cfg.Alpaca.RateLimit, logger)
		logger.Info("market data source", "source", "alpaca", "feed", cfg.Alpaca.Feed)
	} else {
		source = marketdata.NewStoreSource(ps)
		logger.Info("market data source", "source", "parquet", "dataDir", cfg.Storage.DataDir)
	}

	var cache marketdata.Cache
	if cfg.Redis.Enabled {
		rc := marketdata.NewRedisCache(marketdata.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.MarketData.CacheTTL(),
		}, logger)
		defer rc.Close()
		cache = rc
	}

	fetcher := marketdata.NewFetcher(source, cache,
		time.Duration(cfg.MarketData.LookbackDays)*24*time.Hour, logger)

	svc := service.New(service.Options{
		Detector: pattern.NewRuleDetector(cfg.Detection.ConfidenceThreshold),
		Backtester: backtest.NewBacktester(backtest.Config{
			TransactionCost: cfg.Backtest.TransactionCost,
			MinTrades:       cfg.Backtest.MinTrades,
			Workers:         cfg.Backtest.Workers,
		}, logger),
		Fetcher: fetcher,
		Runs:    runs,
		Trades:  ps,
		Defaults: backtest.Params{
			HoldingPeriod: cfg.Backtest.HoldingPeriod,
			StopLoss:      cfg.Backtest.StopLoss,
			TakeProfit:    cfg.Backtest.TakeProfit,
		},
		DefaultTimeframe: tf,
		Log:              logger,
	})

	logger.Info("patternlab-server starting",
		"version", version,
		"http", cfg.Server.Port,
		"grpc", cfg.Server.GRPCPort,
	)
	if err := api.NewServer(cfg, svc, version, logger).ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("patternlab-server stopped")
	return nil
}
