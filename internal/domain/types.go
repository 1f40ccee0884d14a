// Package domain defines the core value types shared across the pattern
// detection and backtesting packages: price bars, pattern occurrences and
// simulated trade records.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidOccurrence is returned when a pattern occurrence violates its
// index or confidence invariants.
var ErrInvalidOccurrence = errors.New("invalid pattern occurrence")

// ErrInvalidSeries is returned when a price series is structurally unusable.
var ErrInvalidSeries = errors.New("invalid price series")

// ---------------------------------------------------------------------------
// Price data
// ---------------------------------------------------------------------------

// PriceBar is a single OHLCV candle.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSeries is a time-ascending sequence of bars. The slice index is the
// unit of time used by detection and simulation.
type PriceSeries []PriceBar

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s) }

// Closes returns the close prices in index order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Validate checks that the series has at least one bar, ascending timestamps
// and finite OHLC prices.
func (s PriceSeries) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no bars", ErrInvalidSeries)
	}
	for i := range s {
		b := &s[i]
		if !finite(b.Open) || !finite(b.High) || !finite(b.Low) || !finite(b.Close) {
			return fmt.Errorf("%w: non-finite price at index %d", ErrInvalidSeries, i)
		}
		if i > 0 && b.Timestamp.Before(s[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps not ascending at index %d", ErrInvalidSeries, i)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pattern occurrences
// ---------------------------------------------------------------------------

// PatternType is the directional bias of a detected pattern.
type PatternType string

const (
	PatternBullish PatternType = "bullish"
	PatternBearish PatternType = "bearish"
)

// Valid reports whether t is a known pattern type.
func (t PatternType) Valid() bool {
	return t == PatternBullish || t == PatternBearish
}

// Detection methods recorded on occurrences.
const (
	MethodRule  = "rule"
	MethodModel = "model"
)

// PatternOccurrence is a detector's claim that a named pattern spans bars
// [StartIndex, EndIndex] with the given bias and confidence.
type PatternOccurrence struct {
	PatternName string      `json:"pattern_name"`
	Confidence  float64     `json:"confidence"`
	StartIndex  int         `json:"start_index"`
	EndIndex    int         `json:"end_index"`
	PatternType PatternType `json:"pattern_type"`
	Method      string      `json:"detection_method,omitempty"`
}

// Validate checks the occurrence against a series of n bars:
// 0 <= StartIndex <= EndIndex < n, confidence in [0,1], known type.
func (o PatternOccurrence) Validate(n int) error {
	switch {
	case o.PatternName == "":
		return fmt.Errorf("%w: empty pattern name", ErrInvalidOccurrence)
	case !o.PatternType.Valid():
		return fmt.Errorf("%w: unknown pattern type %q", ErrInvalidOccurrence, o.PatternType)
	case math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1:
		return fmt.Errorf("%w: confidence %v out of [0,1]", ErrInvalidOccurrence, o.Confidence)
	case o.StartIndex < 0 || o.StartIndex > o.EndIndex || o.EndIndex >= n:
		return fmt.Errorf("%w: indices [%d,%d] out of range for %d bars",
			ErrInvalidOccurrence, o.StartIndex, o.EndIndex, n)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// ExitReason records which rule closed a simulated trade.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTakeProfit    ExitReason = "take_profit"
	ExitHoldingPeriod ExitReason = "holding_period"
)

// TradeRecord is the outcome of simulating one pattern occurrence.
type TradeRecord struct {
	PatternName     string      `json:"pattern_name"`
	PatternType     PatternType `json:"pattern_type"`
	Confidence      float64     `json:"confidence"`
	EntryIndex      int         `json:"entry_index"`
	ExitIndex       int         `json:"exit_index"`
	EntryTime       time.Time   `json:"entry_time"`
	ExitTime        time.Time   `json:"exit_time"`
	EntryPrice      float64     `json:"entry_price"`
	ExitPrice       float64     `json:"exit_price"`
	Return          float64     `json:"return"`
	ExitReason      ExitReason  `json:"exit_reason"`
	HoldingDuration int         `json:"holding_duration"`
}

// IsLong reports whether the trade was opened on a bullish pattern.
func (t TradeRecord) IsLong() bool { return t.PatternType == PatternBullish }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
