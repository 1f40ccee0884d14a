// Package patternlab is a Go SDK for the patternlab-server HTTP API.
package patternlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// Request and response types shared with the server.
type (
	Source            = service.Source
	DetectRequest     = service.DetectRequest
	DetectResponse    = service.DetectResponse
	BacktestRequest   = service.BacktestRequest
	BacktestResponse  = service.BacktestResponse
	Run               = store.Run
	TradeRecord       = domain.TradeRecord
	PriceBar          = domain.PriceBar
	PatternOccurrence = domain.PatternOccurrence
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("patternlab: %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the patternlab-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new patternlab API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ListPatterns returns the pattern names the server can detect.
func (c *Client) ListPatterns(ctx context.Context) ([]string, error) {
	var resp struct {
		Patterns []string `json:"patterns"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/patterns", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Patterns, nil
}

// Detect runs pattern detection on the server.
func (c *Client) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	var resp DetectResponse
	if err := c.do(ctx, http.MethodPost, "/api/detect", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunBacktest runs a backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns up to limit stored runs, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/backtests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun returns one stored run including its full result.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetReport returns the text report of a stored run.
func (c *Client) GetReport(ctx context.Context, id string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/backtests/"+url.PathEscape(id)+"/report", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading report: %w", err)
	}
	return string(body), nil
}

// GetTrades returns the exported trades of a stored run.
func (c *Client) GetTrades(ctx context.Context, id string) ([]TradeRecord, error) {
	var resp struct {
		Trades []TradeRecord `json:"trades"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+url.PathEscape(id)+"/trades", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// send issues the request and returns the response for 2xx statuses. Other
// statuses are converted to *APIError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
