package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Backtester drives the Simulator over every pattern occurrence and slices
// the resulting trades into overall, per-pattern and per-confidence
// statistics.
type Backtester struct {
	cfg Config
	sim *Simulator
	log *slog.Logger
}

// NewBacktester creates a Backtester from an immutable Config. A nil logger
// falls back to slog.Default().
func NewBacktester(cfg Config, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		cfg: cfg,
		sim: NewSimulator(cfg.TransactionCost),
		log: log.With("component", "backtest"),
	}
}

// Config returns the settings the Backtester was built with.
func (b *Backtester) Config() Config { return b.cfg }

// outcome is the per-occurrence simulation result, kept by input position so
// parallel runs reassemble in occurrence order.
type outcome struct {
	trade domain.TradeRecord
	ok    bool
	err   error
}

// Run simulates every occurrence against series and aggregates the trades.
//
// Occurrences that fail to simulate are skipped and reported in
// Result.Warnings; the run itself only fails for an empty series, invalid
// params or a cancelled context.
func (b *Backtester) Run(ctx context.Context, series domain.PriceSeries, occurrences []domain.PatternOccurrence, p Params) (*Result, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	outcomes, err := b.simulateAll(ctx, series, occurrences, p)
	if err != nil {
		return nil, err
	}

	res := &Result{
		PatternStats:    make(map[string]PerformanceStatistics),
		ConfidenceStats: make(map[string]PerformanceStatistics),
		Trades:          make([]domain.TradeRecord, 0, len(occurrences)),
		Params:          p,
	}

	for i, o := range outcomes {
		if o.err != nil {
			occ := occurrences[i]
			b.log.Warn("skipping occurrence",
				"index", i,
				"pattern", occ.PatternName,
				"error", o.err,
			)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("occurrence %d (%s) skipped: %v", i, occ.PatternName, o.err))
			continue
		}
		if o.ok {
			res.Trades = append(res.Trades, o.trade)
		}
	}

	if len(res.Trades) < b.cfg.MinTrades {
		b.log.Warn("insufficient trades for reliable statistics",
			"trades", len(res.Trades),
			"min_trades", b.cfg.MinTrades,
		)
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("insufficient trades (%d) for reliable statistics, minimum required: %d",
				len(res.Trades), b.cfg.MinTrades))
	}

	if st, ok := Aggregate(res.Trades); ok {
		res.Overall = &st
	}

	// Per-pattern partitions keep occurrence order within each group.
	byPattern := make(map[string][]domain.TradeRecord)
	for _, t := range res.Trades {
		byPattern[t.PatternName] = append(byPattern[t.PatternName], t)
	}
	for name, trades := range byPattern {
		if st, ok := Aggregate(trades); ok {
			res.PatternStats[name] = st
		}
	}

	for _, br := range ConfidenceBrackets {
		var trades []domain.TradeRecord
		for _, t := range res.Trades {
			if br.Contains(t.Confidence) {
				trades = append(trades, t)
			}
		}
		if st, ok := Aggregate(trades); ok {
			res.ConfidenceStats[br.Label()] = st
		}
	}

	b.log.Info("backtest complete",
		"occurrences", len(occurrences),
		"trades", len(res.Trades),
		"patterns", len(res.PatternStats),
	)
	return res, nil
}

// Report renders res using the configured minimum-trades threshold.
func (b *Backtester) Report(res *Result) string {
	return FormatReport(res, b.cfg.MinTrades)
}

// simulateAll runs the simulator for each occurrence, concurrently when more
// than one worker is configured. Results are indexed by occurrence position.
func (b *Backtester) simulateAll(ctx context.Context, series domain.PriceSeries, occurrences []domain.PatternOccurrence, p Params) ([]outcome, error) {
	outcomes := make([]outcome, len(occurrences))

	if b.cfg.Workers <= 1 {
		for i := range occurrences {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			t, ok, err := b.sim.Simulate(series, occurrences[i], p)
			outcomes[i] = outcome{trade: t, ok: ok, err: err}
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i := range occurrences {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, ok, err := b.sim.Simulate(series, occurrences[i], p)
			outcomes[i] = outcome{trade: t, ok: ok, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
