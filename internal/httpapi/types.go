// Package httpapi provides the HTTP REST API for pattern detection,
// backtesting and run history.
package httpapi

import (
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// PatternsResponse lists the detectable pattern names.
type PatternsResponse struct {
	Patterns []string `json:"patterns"`
}

// TimeframesResponse lists the supported bar intervals.
type TimeframesResponse struct {
	Timeframes []string `json:"timeframes"`
	Default    string   `json:"default"`
}

// RunsResponse lists stored backtest runs, newest first.
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// TradesResponse holds the exported trades of one run.
type TradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}
