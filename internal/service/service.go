// Package service implements the pattern detection and backtesting use cases
// shared by the HTTP and gRPC front ends.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/marketdata"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// Errors classifying request failures for the transports.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("not configured")
)

// BarFetcher retrieves bars for a symbol; *marketdata.Fetcher satisfies it.
type BarFetcher interface {
	Fetch(ctx context.Context, symbol string, tf marketdata.Timeframe, start, end time.Time) (domain.PriceSeries, error)
}

// Options wires a Service. Fetcher, Runs and Trades may be nil; requests
// needing them then fail with ErrUnavailable (or skip persistence).
type Options struct {
	Detector         *pattern.RuleDetector
	Backtester       *backtest.Backtester
	Fetcher          BarFetcher
	Runs             store.RunStore
	Trades           store.TradeStore
	Defaults         backtest.Params
	DefaultTimeframe marketdata.Timeframe
	Log              *slog.Logger
}

// Service runs detection and backtests against inline or fetched bars.
type Service struct {
	detector *pattern.RuleDetector
	bt       *backtest.Backtester
	fetcher  BarFetcher
	runs     store.RunStore
	trades   store.TradeStore
	defaults backtest.Params
	tf       marketdata.Timeframe
	log      *slog.Logger
}

// New creates a Service. A nil Detector or Backtester gets the stock one;
// zero Defaults become backtest.DefaultParams().
func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.Detector == nil {
		opts.Detector = pattern.NewRuleDetector(pattern.DefaultThreshold)
	}
	if opts.Backtester == nil {
		opts.Backtester = backtest.NewBacktester(backtest.DefaultConfig(), log)
	}
	if opts.Defaults == (backtest.Params{}) {
		opts.Defaults = backtest.DefaultParams()
	}
	if opts.DefaultTimeframe == "" {
		opts.DefaultTimeframe = marketdata.DefaultTimeframe
	}
	return &Service{
		detector: opts.Detector,
		bt:       opts.Backtester,
		fetcher:  opts.Fetcher,
		runs:     opts.Runs,
		trades:   opts.Trades,
		defaults: opts.Defaults,
		tf:       opts.DefaultTimeframe,
		log:      log.With("component", "service"),
	}
}

// Patterns returns the names of the patterns the detector recognises.
func (s *Service) Patterns() []string {
	return s.detector.Patterns()
}

// ---------------------------------------------------------------------------
// Detection
// ---------------------------------------------------------------------------

// Detect runs the rule detector over the requested bars.
func (s *Service) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	series, err := s.loadSeries(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	occs := s.detectorFor(req.PatternsToDetect, req.ConfidenceThreshold).Detect(series)
	resp := &DetectResponse{
		Bars:     len(series),
		Patterns: occs,
	}
	if resp.Patterns == nil {
		resp.Patterns = []domain.PatternOccurrence{}
	}
	if req.Analyze {
		resp.Analysis = make([]pattern.Analysis, 0, len(occs))
		for _, o := range occs {
			a, err := pattern.Analyze(series, o)
			if err != nil {
				return nil, err
			}
			resp.Analysis = append(resp.Analysis, a)
		}
	}
	return resp, nil
}

func (s *Service) detectorFor(names []string, threshold *float64) *pattern.RuleDetector {
	if len(names) == 0 && threshold == nil {
		return s.detector
	}
	th := s.detector.Threshold()
	if threshold != nil {
		th = *threshold
	}
	return pattern.NewRuleDetector(th, names...)
}

// ---------------------------------------------------------------------------
// Backtesting
// ---------------------------------------------------------------------------

// Backtest simulates the requested (or detected) occurrences and, unless
// DryRun is set, persists the run when a run store is configured.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	series, err := s.loadSeries(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	var (
		occs     []domain.PatternOccurrence
		warnings []string
	)
	if len(req.Patterns) > 0 {
		occs, warnings = pattern.ParseOccurrences(req.Patterns, len(series))
		for _, w := range warnings {
			s.log.Warn("dropping detector output", "reason", w)
		}
	} else {
		occs = s.detectorFor(req.PatternsToDetect, req.ConfidenceThreshold).Detect(series)
	}

	params := s.defaults
	if req.HoldingPeriod != nil {
		params.HoldingPeriod = *req.HoldingPeriod
	}
	if req.StopLoss != nil {
		params.StopLoss = *req.StopLoss
	}
	if req.TakeProfit != nil {
		params.TakeProfit = *req.TakeProfit
	}

	res, err := s.bt.Run(ctx, series, occs, params)
	if err != nil {
		if errors.Is(err, backtest.ErrInvalidParams) || errors.Is(err, backtest.ErrEmptySeries) {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil, err
	}
	res.Warnings = append(warnings, res.Warnings...)

	resp := &BacktestResponse{
		Result: res,
		Report: s.bt.Report(res),
	}

	if !req.DryRun && s.runs != nil {
		id, err := s.save(ctx, req, res, resp.Report)
		if err != nil {
			return nil, err
		}
		resp.RunID = id
	}
	return resp, nil
}

func (s *Service) save(ctx context.Context, req BacktestRequest, res *backtest.Result, report string) (string, error) {
	run := &store.Run{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		CreatedAt: time.Now().UTC(),
		Params:    res.Params,
		Overall:   res.Overall,
		Result:    res,
		Report:    report,
	}
	if run.Symbol != "" && run.Timeframe == "" {
		run.Timeframe = string(s.tf)
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	if s.trades != nil {
		if err := s.trades.WriteTrades(ctx, run.ID, res.Trades); err != nil {
			s.log.Warn("trade export failed", "run", run.ID, "error", err)
		}
	}
	s.log.Info("backtest saved", "run", run.ID, "symbol", run.Symbol, "trades", len(res.Trades))
	return run.ID, nil
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// ListRuns returns up to limit recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: run store", ErrUnavailable)
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return runs, nil
}

// GetRun returns a stored run with its result.
func (s *Service) GetRun(ctx context.Context, id string) (*store.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: run store", ErrUnavailable)
	}
	return s.runs.GetRun(ctx, id)
}

// RunTrades returns the exported trades of a stored run.
func (s *Service) RunTrades(ctx context.Context, id string) ([]domain.TradeRecord, error) {
	if s.trades == nil {
		return nil, fmt.Errorf("%w: trade store", ErrUnavailable)
	}
	return s.trades.ReadTrades(ctx, id)
}

// ---------------------------------------------------------------------------
// Bars
// ---------------------------------------------------------------------------

func (s *Service) loadSeries(ctx context.Context, src Source) (domain.PriceSeries, error) {
	var series domain.PriceSeries
	switch {
	case len(src.Bars) > 0:
		series = src.Bars
	case src.Symbol != "":
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: market data", ErrUnavailable)
		}
		tf := s.tf
		if src.Timeframe != "" {
			var err error
			if tf, err = marketdata.ParseTimeframe(src.Timeframe); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
		}
		var start, end time.Time
		if src.Start != nil {
			start = *src.Start
		}
		if src.End != nil {
			end = *src.End
		}
		bars, err := s.fetcher.Fetch(ctx, src.Symbol, tf, start, end)
		if err != nil {
			return nil, err
		}
		series = bars
	default:
		return nil, fmt.Errorf("%w: either bars or symbol is required", ErrBadRequest)
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return series, nil
}
