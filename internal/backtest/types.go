// Package backtest replays detected pattern occurrences against subsequent
// price action and aggregates the resulting trades into performance
// statistics.
package backtest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Errors returned for structurally invalid backtest input.
var (
	ErrEmptySeries   = errors.New("price series has no bars")
	ErrInvalidParams = errors.New("invalid backtest parameters")
)

// ---------------------------------------------------------------------------
// Configuration and parameters
// ---------------------------------------------------------------------------

// Config holds the process-wide backtest settings. It is read-only once a
// Backtester has been constructed.
type Config struct {
	// TransactionCost is the fractional cost of one side of a trade
	// (0.001 = 0.1%). A round trip is charged twice.
	TransactionCost float64
	// MinTrades is the sample size below which statistics are flagged as
	// unreliable and per-pattern report rows are suppressed.
	MinTrades int
	// Workers bounds the number of occurrences simulated concurrently.
	// Values <= 1 simulate sequentially.
	Workers int
}

// DefaultConfig returns the stock settings: 0.1% per side, 30 trades, one
// worker.
func DefaultConfig() Config {
	return Config{
		TransactionCost: 0.001,
		MinTrades:       30,
		Workers:         1,
	}
}

// Params are the per-run exit rules.
type Params struct {
	HoldingPeriod int     `json:"holding_period"` // max bars in a position
	StopLoss      float64 `json:"stop_loss"`      // negative fraction, e.g. -0.02
	TakeProfit    float64 `json:"take_profit"`    // positive fraction, e.g. 0.04
}

// DefaultParams returns a 5-bar hold with a 2% stop and a 4% target.
func DefaultParams() Params {
	return Params{
		HoldingPeriod: 5,
		StopLoss:      -0.02,
		TakeProfit:    0.04,
	}
}

// Validate rejects parameters the simulator cannot interpret.
func (p Params) Validate() error {
	if p.HoldingPeriod < 1 {
		return fmt.Errorf("%w: holding period %d < 1", ErrInvalidParams, p.HoldingPeriod)
	}
	if p.StopLoss >= 0 {
		return fmt.Errorf("%w: stop loss %v must be negative", ErrInvalidParams, p.StopLoss)
	}
	if p.TakeProfit <= 0 {
		return fmt.Errorf("%w: take profit %v must be positive", ErrInvalidParams, p.TakeProfit)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// PerformanceStatistics summarises a set of trades.
type PerformanceStatistics struct {
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRate            float64 `json:"win_rate"`
	AvgReturn          float64 `json:"avg_return"`
	StdReturn          float64 `json:"std_return"`
	MaxReturn          float64 `json:"max_return"`
	MinReturn          float64 `json:"min_return"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	AvgHoldingDuration float64 `json:"avg_holding_duration"`
	MaxDrawdown        float64 `json:"max_drawdown"`
}

// Result is the output of one backtest run. Overall is nil when no
// occurrence produced a trade.
type Result struct {
	Overall         *PerformanceStatistics           `json:"overall_stats"`
	PatternStats    map[string]PerformanceStatistics `json:"pattern_stats"`
	ConfidenceStats map[string]PerformanceStatistics `json:"confidence_stats"`
	Trades          []domain.TradeRecord             `json:"trade_results"`
	Params          Params                           `json:"params"`
	Warnings        []string                         `json:"warnings,omitempty"`
}

// Empty reports whether the result carries no statistics.
func (r *Result) Empty() bool {
	return r == nil || r.Overall == nil
}

// PatternNames returns the pattern names present in PatternStats, sorted.
func (r *Result) PatternNames() []string {
	names := make([]string, 0, len(r.PatternStats))
	for name := range r.PatternStats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Confidence brackets
// ---------------------------------------------------------------------------

// Bracket is a half-open confidence range [Low, High).
type Bracket struct {
	Low  float64
	High float64
}

// ConfidenceBrackets are the fixed ranges used to slice results by detection
// confidence. Trades below 0.6 fall outside every bracket.
var ConfidenceBrackets = []Bracket{
	{Low: 0.6, High: 0.7},
	{Low: 0.7, High: 0.8},
	{Low: 0.8, High: 0.9},
	{Low: 0.9, High: 1.0},
}

// Label returns the bracket key, e.g. "0.6-0.7".
func (b Bracket) Label() string {
	return fmt.Sprintf("%.1f-%.1f", b.Low, b.High)
}

// Contains reports whether Low <= c < High.
func (b Bracket) Contains(c float64) bool {
	return b.Low <= c && c < b.High
}
