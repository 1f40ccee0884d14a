// Package rpcapi exposes the pattern lab service over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON documents the HTTP API
// accepts and returns, so no generated stubs are needed.
package rpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/marketdata"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "patternlab.v1.PatternLab"

// PatternLabServer is the server API for the PatternLab service.
type PatternLabServer interface {
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Backtest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunTrades(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PatternLabServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: unary("Detect", PatternLabServer.Detect)},
		{MethodName: "Backtest", Handler: unary("Backtest", PatternLabServer.Backtest)},
		{MethodName: "ListRuns", Handler: unary("ListRuns", PatternLabServer.ListRuns)},
		{MethodName: "GetRun", Handler: unary("GetRun", PatternLabServer.GetRun)},
		{MethodName: "RunTrades", Handler: unary("RunTrades", PatternLabServer.RunTrades)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "patternlab/v1/patternlab.proto",
}

func unary(method string, call func(PatternLabServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PatternLabServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PatternLabServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server implements PatternLabServer on top of the shared service layer.
type Server struct {
	svc    *service.Service
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a gRPC server backed by the given service.
func NewServer(svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:    svc,
		health: health.NewServer(),
		log:    log.With("component", "rpcapi"),
	}
}

// RegisterGRPC registers the PatternLab and health services on gs.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(gs, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Detect runs the rule detector over inline bars or a fetched symbol.
func (s *Server) Detect(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.DetectRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.svc.Detect(ctx, req)
	if err != nil {
		return nil, s.statusError("Detect", err)
	}
	return encodeStruct(resp)
}

// Backtest runs a backtest and returns the result with its report.
func (s *Server) Backtest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.BacktestRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.svc.Backtest(ctx, req)
	if err != nil {
		return nil, s.statusError("Backtest", err)
	}
	s.log.Info("backtest complete", "run", resp.RunID, "symbol", req.Symbol, "trades", len(resp.Result.Trades))
	return encodeStruct(resp)
}

// ListRuns returns stored runs, newest first. Request: {"limit": n}.
func (s *Server) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	runs, err := s.svc.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, s.statusError("ListRuns", err)
	}
	return encodeStruct(map[string]any{"runs": runs})
}

// GetRun returns one stored run. Request: {"id": "..."}.
func (s *Server) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := runID(in)
	if err != nil {
		return nil, err
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		return nil, s.statusError("GetRun", err)
	}
	return encodeStruct(run)
}

// RunTrades returns the exported trades of one run. Request: {"id": "..."}.
func (s *Server) RunTrades(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := runID(in)
	if err != nil {
		return nil, err
	}
	trades, err := s.svc.RunTrades(ctx, id)
	if err != nil {
		return nil, s.statusError("RunTrades", err)
	}
	return encodeStruct(map[string]any{"trades": trades})
}

func runID(in *structpb.Struct) (string, error) {
	id := in.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "id is required")
	}
	return id, nil
}

// statusError maps service and store errors onto gRPC status codes.
func (s *Server) statusError(method string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, marketdata.ErrUnknownTimeframe),
		errors.Is(err, domain.ErrInvalidOccurrence),
		errors.Is(err, domain.ErrInvalidSeries),
		errors.Is(err, backtest.ErrInvalidParams),
		errors.Is(err, store.ErrInvalidKey):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrRunNotFound):
		code = codes.NotFound
	case errors.Is(err, service.ErrUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	if code == codes.Internal {
		s.log.Error("rpc failed", "method", method, "error", err)
	}
	return status.Error(code, err.Error())
}

// ---------------------------------------------------------------------------
// Struct <-> JSON
// ---------------------------------------------------------------------------

func decodeStruct(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encoding request: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}
