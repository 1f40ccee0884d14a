// Package marketdata retrieves OHLCV bars for a symbol and timeframe from
// Alpaca or the local Parquet store, with an optional redis cache in front.
package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// ErrUnknownTimeframe is returned for a timeframe string outside the
// supported set.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is a bar interval such as "1h".
type Timeframe string

const (
	OneMinute      Timeframe = "1m"
	FiveMinutes    Timeframe = "5m"
	FifteenMinutes Timeframe = "15m"
	ThirtyMinutes  Timeframe = "30m"
	OneHour        Timeframe = "1h"
	FourHours      Timeframe = "4h"
	OneDay         Timeframe = "1d"
)

// DefaultTimeframe is used when a request names none.
const DefaultTimeframe = OneHour

type tfSpec struct {
	dur    time.Duration
	amount int
	unit   alpacamd.TimeFrameUnit
}

var timeframes = map[Timeframe]tfSpec{
	OneMinute:      {time.Minute, 1, alpacamd.Min},
	FiveMinutes:    {5 * time.Minute, 5, alpacamd.Min},
	FifteenMinutes: {15 * time.Minute, 15, alpacamd.Min},
	ThirtyMinutes:  {30 * time.Minute, 30, alpacamd.Min},
	OneHour:        {time.Hour, 1, alpacamd.Hour},
	FourHours:      {4 * time.Hour, 4, alpacamd.Hour},
	OneDay:         {24 * time.Hour, 1, alpacamd.Day},
}

// Timeframes returns the supported timeframes, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{OneMinute, FiveMinutes, FifteenMinutes, ThirtyMinutes, OneHour, FourHours, OneDay}
}

// ParseTimeframe validates s. An empty string yields DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return DefaultTimeframe, nil
	}
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
	return tf, nil
}

// Duration returns the length of one bar, or 0 for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframes[tf].dur
}

// alpaca converts tf to the Alpaca API representation.
func (tf Timeframe) alpaca() (alpacamd.TimeFrame, error) {
	ts, ok := timeframes[tf]
	if !ok {
		return alpacamd.TimeFrame{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, string(tf))
	}
	return alpacamd.NewTimeFrame(ts.amount, ts.unit), nil
}
