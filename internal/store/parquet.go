package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ TradeStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and TradeStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for OHLCV bars.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// TradeRow is the Parquet schema for an exported simulated trade.
type TradeRow struct {
	PatternName     string  `parquet:"pattern_name"`
	PatternType     string  `parquet:"pattern_type"`
	Confidence      float64 `parquet:"confidence"`
	EntryIndex      int64   `parquet:"entry_index"`
	ExitIndex       int64   `parquet:"exit_index"`
	EntryTime       int64   `parquet:"entry_time,timestamp(millisecond)"`
	ExitTime        int64   `parquet:"exit_time,timestamp(millisecond)"`
	EntryPrice      float64 `parquet:"entry_price"`
	ExitPrice       float64 `parquet:"exit_price"`
	Return          float64 `parquet:"return"`
	ExitReason      string  `parquet:"exit_reason"`
	HoldingDuration int64   `parquet:"holding_duration"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars to Parquet files organized by timeframe, symbol and
// year:
//
//	<DataDir>/<timeframe>/<SYMBOL>/<YYYY>.parquet
//
// Existing files are merged, with incoming bars replacing stored bars that
// share a timestamp.
func (s *ParquetStore) WriteBars(ctx context.Context, symbol, timeframe string, bars domain.PriceSeries) error {
	if err := checkPathKeys(symbol, timeframe); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		y := b.Timestamp.UTC().Year()
		groups[y] = append(groups[y], BarRecord{
			Symbol:    symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for year, records := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.barPath(symbol, timeframe, year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading bars for %s/%s/%d: %w", timeframe, symbol, year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%s/%d: %w", timeframe, symbol, year, err)
		}
	}
	return nil
}

// ReadBars reads bars for the given symbol and timeframe within [start, end].
// Years without a file contribute no bars.
func (s *ParquetStore) ReadBars(ctx context.Context, symbol, timeframe string, start, end time.Time) (domain.PriceSeries, error) {
	if err := checkPathKeys(symbol, timeframe); err != nil {
		return nil, err
	}
	var bars domain.PriceSeries
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.barPath(symbol, timeframe, year)

		records, err := readParquetFile[BarRecord](path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s/%s/%d: %w", timeframe, symbol, year, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bars stored for timeframe.
func (s *ParquetStore) ListSymbols(_ context.Context, timeframe string) ([]string, error) {
	if err := checkPathKeys(timeframe); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.DataDir, timeframe)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// WriteTrades writes a run's trades to <DataDir>/backtests/<runID>.parquet.
func (s *ParquetStore) WriteTrades(_ context.Context, runID string, trades []domain.TradeRecord) error {
	if err := checkPathKeys(runID); err != nil {
		return err
	}

	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			PatternName:     t.PatternName,
			PatternType:     string(t.PatternType),
			Confidence:      t.Confidence,
			EntryIndex:      int64(t.EntryIndex),
			ExitIndex:       int64(t.ExitIndex),
			EntryTime:       t.EntryTime.UnixMilli(),
			ExitTime:        t.ExitTime.UnixMilli(),
			EntryPrice:      t.EntryPrice,
			ExitPrice:       t.ExitPrice,
			Return:          t.Return,
			ExitReason:      string(t.ExitReason),
			HoldingDuration: int64(t.HoldingDuration),
		}
	}

	if err := writeParquetFile(s.tradePath(runID), rows); err != nil {
		return fmt.Errorf("writing trades for run %s: %w", runID, err)
	}
	return nil
}

// ReadTrades reads the trades exported for runID.
func (s *ParquetStore) ReadTrades(_ context.Context, runID string) ([]domain.TradeRecord, error) {
	if err := checkPathKeys(runID); err != nil {
		return nil, err
	}
	rows, err := readParquetFile[TradeRow](s.tradePath(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no trade export for %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading trades for run %s: %w", runID, err)
	}

	trades := make([]domain.TradeRecord, len(rows))
	for i, r := range rows {
		trades[i] = domain.TradeRecord{
			PatternName:     r.PatternName,
			PatternType:     domain.PatternType(r.PatternType),
			Confidence:      r.Confidence,
			EntryIndex:      int(r.EntryIndex),
			ExitIndex:       int(r.ExitIndex),
			EntryTime:       time.UnixMilli(r.EntryTime).UTC(),
			ExitTime:        time.UnixMilli(r.ExitTime).UTC(),
			EntryPrice:      r.EntryPrice,
			ExitPrice:       r.ExitPrice,
			Return:          r.Return,
			ExitReason:      domain.ExitReason(r.ExitReason),
			HoldingDuration: int(r.HoldingDuration),
		}
	}
	return trades, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// checkPathKeys rejects values that would escape their directory when used
// as a path element: empty strings, separators and "..".
func checkPathKeys(keys ...string) error {
	for _, k := range keys {
		if k == "" || k == "." || strings.ContainsAny(k, `/\`) || strings.Contains(k, "..") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
	}
	return nil
}

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<timeframe>/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, timeframe string, year int) string {
	return filepath.Join(s.DataDir, timeframe, strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// tradePath returns the filesystem path for a trade export.
// Layout: <dataDir>/backtests/<runID>.parquet
func (s *ParquetStore) tradePath(runID string) string {
	return filepath.Join(s.DataDir, "backtests", runID+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by timestamp, preferring incoming
// records over existing ones. The result is sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
