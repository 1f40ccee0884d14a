package service

import (
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
)

// Source selects the bars a request operates on: inline Bars, or Symbol and
// Timeframe fetched over [Start, End].
type Source struct {
	Symbol    string             `json:"symbol,omitempty"`
	Timeframe string             `json:"timeframe,omitempty"`
	Start     *time.Time         `json:"start,omitempty"`
	End       *time.Time         `json:"end,omitempty"`
	Bars      domain.PriceSeries `json:"bars,omitempty"`
}

// DetectRequest is the body of a detection request.
type DetectRequest struct {
	Source
	PatternsToDetect    []string `json:"patterns_to_detect,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	Analyze             bool     `json:"analyze,omitempty"`
}

// DetectResponse lists detected occurrences, highest confidence first.
type DetectResponse struct {
	Bars     int                        `json:"bars"`
	Patterns []domain.PatternOccurrence `json:"patterns"`
	Analysis []pattern.Analysis         `json:"analysis,omitempty"`
}

// BacktestRequest is the body of a backtest request. Patterns carries
// external detector output; when empty the rule detector runs instead.
// Nil exit parameters fall back to the configured defaults.
type BacktestRequest struct {
	Source
	Patterns            []pattern.RawOccurrence `json:"patterns,omitempty"`
	PatternsToDetect    []string                `json:"patterns_to_detect,omitempty"`
	ConfidenceThreshold *float64                `json:"confidence_threshold,omitempty"`
	HoldingPeriod       *int                    `json:"holding_period,omitempty"`
	StopLoss            *float64                `json:"stop_loss,omitempty"`
	TakeProfit          *float64                `json:"take_profit,omitempty"`
	DryRun              bool                    `json:"dry_run,omitempty"`
}

// BacktestResponse carries the run result and its text report.
type BacktestResponse struct {
	RunID  string           `json:"run_id,omitempty"`
	Result *backtest.Result `json:"result"`
	Report string           `json:"report"`
}
