// Package rpc exposes the registry over gRPC. Messages are
// google.protobuf.Struct values carrying the JSON form of the registry
// types, so no generated stubs are needed.
package rpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
)

const serviceName = "dynamics.v1.Dynamics"

// Method names served under serviceName.
const (
	MethodRegister          = "Register"
	MethodUpdate            = "Update"
	MethodBind              = "Bind"
	MethodUnbind            = "Unbind"
	MethodRunLoop           = "RunLoop"
	MethodRunAllLoops       = "RunAllLoops"
	MethodSimulate          = "Simulate"
	MethodGlobalState       = "GlobalState"
	MethodAlerts            = "Alerts"
	MethodEntity            = "Entity"
	MethodApplyCascade      = "ApplyCascade"
	MethodReleaseQuarantine = "ReleaseQuarantine"
)

type handlerFunc func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// dispatcher is the handler type checked by grpc.Server.RegisterService.
type dispatcher interface {
	dispatch(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

// Server serves one registry.
type Server struct {
	reg      *registry.Registry
	logger   *slog.Logger
	handlers map[string]handlerFunc
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer wraps reg for gRPC.
func NewServer(reg *registry.Registry, opts ...ServerOption) *Server {
	s := &Server{
		reg:    reg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "rpc")
	s.handlers = map[string]handlerFunc{
		MethodRegister:          method(s.register),
		MethodUpdate:            method(s.update),
		MethodBind:              method(s.bind),
		MethodUnbind:            method(s.unbind),
		MethodRunLoop:           method(s.runLoop),
		MethodRunAllLoops:       method(s.runAllLoops),
		MethodSimulate:          method(s.simulate),
		MethodGlobalState:       method(s.globalState),
		MethodAlerts:            method(s.alerts),
		MethodEntity:            method(s.entity),
		MethodApplyCascade:      method(s.applyCascade),
		MethodReleaseQuarantine: method(s.release),
	}
	return s
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(serviceDesc(), s)
}

// #region dispatch
func (s *Server) dispatch(ctx context.Context, name string, in *structpb.Struct) (*structpb.Struct, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", name)
	}
	return h(ctx, in)
}

// method adapts a typed handler to the Struct wire form.
func method[Req, Resp any](fn func(context.Context, Req) (Resp, error)) handlerFunc {
	return func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req Req
		if err := decode(in, &req); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := encode(resp)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode response: %v", err)
		}
		return out, nil
	}
}

func serviceDesc() *grpc.ServiceDesc {
	names := []string{
		MethodRegister, MethodUpdate, MethodBind, MethodUnbind,
		MethodRunLoop, MethodRunAllLoops, MethodSimulate, MethodGlobalState,
		MethodAlerts, MethodEntity, MethodApplyCascade, MethodReleaseQuarantine,
	}
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*dispatcher)(nil),
		Metadata:    "dynamics/v1/dynamics.proto",
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name),
		})
	}
	return desc
}

func unaryHandler(name string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		d := srv.(dispatcher)
		if interceptor == nil {
			return d.dispatch(ctx, name, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return d.dispatch(ctx, name, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

// LoggingInterceptor logs each unary call with its duration and status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelDebug
		if code != codes.OK {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}

// #endregion dispatch

// #region handlers
func (s *Server) register(_ context.Context, req RegisterRequest) (registry.Handle, error) {
	c, err := catalog.Parse(req.Category)
	if err != nil {
		return registry.Handle{}, err
	}
	return s.reg.Register(req.ID, req.Name, c)
}

func (s *Server) update(_ context.Context, req UpdateRequest) (UpdateResponse, error) {
	v, err := s.reg.Update(req.ID, req.Value, req.Interaction)
	if err != nil {
		return UpdateResponse{}, err
	}
	return UpdateResponse{State: v}, nil
}

func (s *Server) bind(_ context.Context, req BindRequest) (BindResponse, error) {
	rc, err := catalog.ParseRelation(req.Relation)
	if err != nil {
		return BindResponse{}, err
	}
	key, ok, err := s.reg.Bind(req.ID, rc, req.Target, req.Initial)
	if err != nil {
		return BindResponse{}, err
	}
	return BindResponse{Slot: key, Bound: ok}, nil
}

func (s *Server) unbind(_ context.Context, req UnbindRequest) (UnbindResponse, error) {
	ok, err := s.reg.Unbind(req.ID, req.Slot)
	if err != nil {
		return UnbindResponse{}, err
	}
	return UnbindResponse{Unbound: ok}, nil
}

func (s *Server) runLoop(_ context.Context, req RunLoopRequest) (RunLoopResponse, error) {
	execs, err := s.reg.RunLoop(req.ID, req.Delta)
	if err != nil {
		return RunLoopResponse{}, err
	}
	return RunLoopResponse{Executions: execs}, nil
}

func (s *Server) runAllLoops(_ context.Context, _ empty) (registry.SweepResult, error) {
	return s.reg.RunAllLoops(), nil
}

func (s *Server) simulate(_ context.Context, req SimulateRequest) (registry.Forecast, error) {
	if req.Days < 0 {
		return registry.Forecast{}, status.Error(codes.InvalidArgument, "days must be >= 0")
	}
	return s.reg.SimulateFuture(req.Days), nil
}

func (s *Server) globalState(_ context.Context, _ empty) (registry.Summary, error) {
	return s.reg.GlobalState(), nil
}

func (s *Server) alerts(_ context.Context, req AlertsRequest) (AlertsResponse, error) {
	return AlertsResponse{Alerts: s.reg.Alerts(req.Limit)}, nil
}

func (s *Server) entity(_ context.Context, req EntityRequest) (registry.Snapshot, error) {
	return s.reg.Entity(req.ID)
}

func (s *Server) applyCascade(_ context.Context, req ApplyCascadeRequest) (ApplyCascadeResponse, error) {
	applied, err := s.reg.ApplyCascade(req.AlertID)
	if err != nil && len(applied) == 0 {
		return ApplyCascadeResponse{}, err
	}
	if err != nil {
		s.logger.Warn("cascade partially applied", "alert", req.AlertID, "applied", len(applied), "err", err)
	}
	return ApplyCascadeResponse{Applied: applied}, nil
}

func (s *Server) release(_ context.Context, req EntityRequest) (ReleaseResponse, error) {
	was, err := s.reg.ReleaseQuarantine(req.ID)
	if err != nil {
		return ReleaseResponse{}, fmt.Errorf("release %s: %w", req.ID, err)
	}
	return ReleaseResponse{Released: was}, nil
}

// #endregion handlers
