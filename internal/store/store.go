// Package store defines storage interfaces for price bars, exported trade
// records and backtest run history, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// ErrRunNotFound is returned when a backtest run ID is unknown.
var ErrRunNotFound = errors.New("backtest run not found")

// ErrInvalidKey is returned for a symbol, timeframe or run ID that cannot be
// used as a file path element.
var ErrInvalidKey = errors.New("invalid storage key")

// BarStore persists and retrieves OHLCV bars per symbol and timeframe.
type BarStore interface {
	// WriteBars merges bars into storage, replacing bars with equal timestamps.
	WriteBars(ctx context.Context, symbol, timeframe string, bars domain.PriceSeries) error

	// ReadBars returns bars for symbol and timeframe within [start, end] in
	// ascending time order.
	ReadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) (domain.PriceSeries, error)

	// ListSymbols returns all symbols with bars stored for timeframe.
	ListSymbols(ctx context.Context, timeframe string) ([]string, error)
}

// TradeStore exports the simulated trades of a backtest run.
type TradeStore interface {
	// WriteTrades stores the trades of run runID, replacing any previous export.
	WriteTrades(ctx context.Context, runID string, trades []domain.TradeRecord) error

	// ReadTrades returns the trades exported for runID in simulation order.
	ReadTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error)
}

// RunStore persists backtest runs.
type RunStore interface {
	// SaveRun inserts a run. The run's ID must be set.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with its full result, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first. Listed runs carry
	// a Summary; Overall and Result are left nil.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is one persisted backtest execution. GetRun fills Overall and Result;
// ListRuns fills only Summary.
type Run struct {
	ID        string                          `json:"id"`
	Symbol    string                          `json:"symbol,omitempty"`
	Timeframe string                          `json:"timeframe,omitempty"`
	CreatedAt time.Time                       `json:"created_at"`
	Params    backtest.Params                 `json:"params"`
	Summary   *RunSummary                     `json:"summary,omitempty"`
	Overall   *backtest.PerformanceStatistics `json:"overall_stats,omitempty"`
	Result    *backtest.Result                `json:"result,omitempty"`
	Report    string                          `json:"report,omitempty"`
}

// RunSummary holds the headline statistics indexed for run listings.
type RunSummary struct {
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	AvgReturn   float64 `json:"avg_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}
