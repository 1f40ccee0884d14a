package rpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// Client calls a remote PatternLab gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client targeting addr over an insecure connection. Extra
// options are appended after the transport credentials.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Detect calls PatternLab/Detect.
func (c *Client) Detect(ctx context.Context, req service.DetectRequest) (*service.DetectResponse, error) {
	var resp service.DetectResponse
	if err := c.call(ctx, "Detect", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Backtest calls PatternLab/Backtest.
func (c *Client) Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestResponse, error) {
	var resp service.BacktestResponse
	if err := c.call(ctx, "Backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns calls PatternLab/ListRuns.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	var resp struct {
		Runs []store.Run `json:"runs"`
	}
	if err := c.call(ctx, "ListRuns", map[string]any{"limit": limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun calls PatternLab/GetRun.
func (c *Client) GetRun(ctx context.Context, id string) (*store.Run, error) {
	var run store.Run
	if err := c.call(ctx, "GetRun", map[string]any{"id": id}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RunTrades calls PatternLab/RunTrades.
func (c *Client) RunTrades(ctx context.Context, id string) ([]domain.TradeRecord, error) {
	var resp struct {
		Trades []domain.TradeRecord `json:"trades"`
	}
	if err := c.call(ctx, "RunTrades", map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	return decodeStruct(out, resp)
}
