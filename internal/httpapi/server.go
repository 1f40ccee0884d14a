package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/marketdata"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// maxBodyBytes bounds request bodies; inline bar arrays can be large.
const maxBodyBytes = 32 << 20

// Server serves the pattern lab HTTP API.
type Server struct {
	svc     *service.Service
	version string
	started time.Time
	log     *slog.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(svc *service.Service, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:     svc,
		version: version,
		started: time.Now(),
		log:     log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/patterns", s.handlePatterns)
	mux.HandleFunc("GET /api/timeframes", s.handleTimeframes)
	mux.HandleFunc("POST /api/detect", s.handleDetect)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/backtests", s.handleListBacktests)
	mux.HandleFunc("GET /api/backtests/{id}", s.handleGetBacktest)
	mux.HandleFunc("GET /api/backtests/{id}/report", s.handleBacktestReport)
	mux.HandleFunc("GET /api/backtests/{id}/trades", s.handleBacktestTrades)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// writeServiceError maps service and store errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, marketdata.ErrUnknownTimeframe),
		errors.Is(err, domain.ErrInvalidOccurrence),
		errors.Is(err, domain.ErrInvalidSeries),
		errors.Is(err, backtest.ErrInvalidParams),
		errors.Is(err, store.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, PatternsResponse{Patterns: s.svc.Patterns()})
}

func (s *Server) handleTimeframes(w http.ResponseWriter, _ *http.Request) {
	tfs := marketdata.Timeframes()
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = string(tf)
	}
	writeJSON(w, TimeframesResponse{Timeframes: out, Default: string(marketdata.DefaultTimeframe)})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req service.DetectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.svc.Detect(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req service.BacktestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start := time.Now()
	resp, err := s.svc.Backtest(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.log.Info("backtest complete",
		"run", resp.RunID,
		"symbol", req.Symbol,
		"trades", len(resp.Result.Trades),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	writeJSON(w, resp)
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 500]")
			return
		}
		limit = n
	}
	runs, err := s.svc.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleBacktestReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(run.Report))
}

func (s *Server) handleBacktestTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.svc.RunTrades(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, TradesResponse{Trades: trades})
}
