package marketdata

import (
	"context"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// Source retrieves bars for a symbol within [start, end].
type Source interface {
	FetchBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) (domain.PriceSeries, error)
}

// Compile-time interface checks.
var _ Source = (*StoreSource)(nil)
var _ Source = (*AlpacaSource)(nil)

// StoreSource serves bars previously written to a BarStore.
type StoreSource struct {
	bars store.BarStore
}

// NewStoreSource wraps a BarStore as a Source.
func NewStoreSource(bars store.BarStore) *StoreSource {
	return &StoreSource{bars: bars}
}

// FetchBars reads bars from the underlying store.
func (s *StoreSource) FetchBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) (domain.PriceSeries, error) {
	return s.bars.ReadBars(ctx, symbol, string(tf), start, end)
}
