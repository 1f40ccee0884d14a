package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// DefaultLookback is the window fetched when a request has no start time.
const DefaultLookback = 30 * 24 * time.Hour

// Fetcher serves bars from the cache when present, otherwise from the
// source, writing source results back to the cache.
type Fetcher struct {
	source   Source
	cache    Cache
	lookback time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewFetcher creates a Fetcher. cache may be nil. A non-positive lookback
// uses DefaultLookback.
func NewFetcher(source Source, cache Cache, lookback time.Duration, log *slog.Logger) *Fetcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		source:   source,
		cache:    cache,
		lookback: lookback,
		now:      time.Now,
		log:      log.With("component", "marketdata"),
	}
}

// Fetch returns bars for symbol and tf within [start, end]. A zero end means
// now, truncated to the bar interval; a zero start means end minus the
// lookback window.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) (domain.PriceSeries, error) {
	if _, ok := timeframes[tf]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimeframe, string(tf))
	}
	if end.IsZero() {
		end = f.now().UTC().Truncate(tf.Duration())
	}
	if start.IsZero() {
		start = end.Add(-f.lookback)
	}
	if start.After(end) {
		return nil, fmt.Errorf("start %s after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	key := CacheKey(symbol, tf, start)
	if f.cache != nil {
		bars, err := f.cache.Get(ctx, key)
		switch {
		case err == nil:
			f.log.Debug("cache hit", "key", key, "bars", len(bars))
			return bars, nil
		case !errors.Is(err, ErrCacheMiss):
			f.log.Warn("cache read failed", "key", key, "error", err)
		}
	}

	bars, err := f.source.FetchBars(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", symbol, tf, err)
	}

	if f.cache != nil && len(bars) > 0 {
		if err := f.cache.Set(ctx, key, bars); err != nil {
			f.log.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return bars, nil
}
