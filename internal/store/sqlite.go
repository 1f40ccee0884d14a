package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// migrations are applied in order; PRAGMA user_version records how many
// have run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id             TEXT PRIMARY KEY,
		symbol         TEXT NOT NULL DEFAULT '',
		timeframe      TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL,
		holding_period INTEGER NOT NULL,
		stop_loss      REAL NOT NULL,
		take_profit    REAL NOT NULL,
		total_trades   INTEGER NOT NULL DEFAULT 0,
		win_rate       REAL NOT NULL DEFAULT 0,
		avg_return     REAL NOT NULL DEFAULT 0,
		sharpe_ratio   REAL NOT NULL DEFAULT 0,
		max_drawdown   REAL NOT NULL DEFAULT 0,
		result_json    TEXT NOT NULL,
		report         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at DESC)`,
}

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies any
// pending migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a run. A zero CreatedAt is set to the current time.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("saving run: empty id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encoding result for run %s: %w", run.ID, err)
	}

	overall := run.Overall
	if overall == nil && run.Result != nil {
		overall = run.Result.Overall
	}
	var st backtest.PerformanceStatistics
	if overall != nil {
		st = *overall
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, symbol, timeframe, created_at,
			holding_period, stop_loss, take_profit,
			total_trades, win_rate, avg_return, sharpe_ratio, max_drawdown,
			result_json, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Timeframe, run.CreatedAt.UnixMilli(),
		run.Params.HoldingPeriod, run.Params.StopLoss, run.Params.TakeProfit,
		st.TotalTrades, st.WinRate, st.AvgReturn, st.SharpeRatio, st.MaxDrawdown,
		string(resultJSON), run.Report,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run and its decoded result.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, timeframe, created_at,
		       holding_period, stop_loss, take_profit,
		       total_trades, win_rate, avg_return, sharpe_ratio, max_drawdown,
		       result_json, report
		FROM backtest_runs WHERE id = ?`, id)

	var (
		run        Run
		createdAt  int64
		st         backtest.PerformanceStatistics
		resultJSON string
	)
	err := row.Scan(
		&run.ID, &run.Symbol, &run.Timeframe, &createdAt,
		&run.Params.HoldingPeriod, &run.Params.StopLoss, &run.Params.TakeProfit,
		&st.TotalTrades, &st.WinRate, &st.AvgReturn, &st.SharpeRatio, &st.MaxDrawdown,
		&resultJSON, &run.Report,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()

	if err := json.Unmarshal([]byte(resultJSON), &run.Result); err != nil {
		return nil, fmt.Errorf("decoding result for run %s: %w", id, err)
	}
	if run.Result != nil && run.Result.Overall != nil {
		run.Overall = run.Result.Overall
	} else if st.TotalTrades > 0 {
		run.Overall = &st
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, timeframe, created_at,
		       holding_period, stop_loss, take_profit,
		       total_trades, win_rate, avg_return, sharpe_ratio, max_drawdown
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			createdAt int64
			sum       RunSummary
		)
		if err := rows.Scan(
			&run.ID, &run.Symbol, &run.Timeframe, &createdAt,
			&run.Params.HoldingPeriod, &run.Params.StopLoss, &run.Params.TakeProfit,
			&sum.TotalTrades, &sum.WinRate, &sum.AvgReturn, &sum.SharpeRatio, &sum.MaxDrawdown,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		if sum.TotalTrades > 0 {
			run.Summary = &sum
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
