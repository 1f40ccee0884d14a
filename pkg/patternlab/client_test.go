package patternlab

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/httpapi"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func newServer(t *testing.T) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	svc := service.New(service.Options{Runs: runs, Trades: store.NewParquetStore(t.TempDir()), Log: log})
	srv := httptest.NewServer(httpapi.NewServer(svc, "test", log).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func bars(n int) []PriceBar {
	t0 := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	out := make([]PriceBar, n)
	for i := range out {
		out[i] = PriceBar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000}
	}
	return out
}

func TestClientRoundTrip(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	names, err := c.ListPatterns(ctx)
	if err != nil {
		t.Fatalf("ListPatterns: %v", err)
	}
	if len(names) != len(pattern.Rules) {
		t.Errorf("ListPatterns = %v", names)
	}

	det, err := c.Detect(ctx, DetectRequest{Source: Source{Bars: bars(3)}, PatternsToDetect: []string{"DOJI"}})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.Patterns) != 3 {
		t.Errorf("Detect patterns = %d, want 3", len(det.Patterns))
	}

	bt, err := c.RunBacktest(ctx, BacktestRequest{
		Source: Source{Bars: bars(10)},
		Patterns: []pattern.RawOccurrence{
			{"pattern_name": "DOJI", "confidence": 0.8, "start_index": 2, "end_index": 2, "pattern_type": "bullish"},
		},
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if bt.RunID == "" || len(bt.Result.Trades) != 1 {
		t.Fatalf("RunBacktest = %+v", bt)
	}

	report, err := c.GetReport(ctx, bt.RunID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report != bt.Report {
		t.Errorf("GetReport differs from run report")
	}

	run, err := c.GetRun(ctx, bt.RunID)
	if err != nil || run.ID != bt.RunID {
		t.Errorf("GetRun = %+v, %v", run, err)
	}

	runs, err := c.ListRuns(ctx, 5)
	if err != nil || len(runs) != 1 {
		t.Errorf("ListRuns = %+v, %v", runs, err)
	} else if runs[0].Summary == nil || runs[0].Summary.TotalTrades != 1 || runs[0].Overall != nil {
		t.Errorf("listed run = %+v, want a one-trade summary and no Overall", runs[0])
	}

	trades, err := c.GetTrades(ctx, bt.RunID)
	if err != nil || len(trades) != 1 || trades[0].EntryIndex != 3 {
		t.Errorf("GetTrades = %+v, %v", trades, err)
	}
}

func TestClientAPIError(t *testing.T) {
	c := newServer(t)
	_, err := c.GetRun(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetRun error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("APIError = %+v", apiErr)
	}
}
