package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c3-joao/windturbine-backend/internal/application/stream"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

// StreamManager is the subset of the stream manager used by the gRPC transport.
type StreamManager interface {
	Subscribe(ctx context.Context, req stream.Request, sink stream.Sink) (*stream.Subscription, error)
	Active() []stream.Info
}

type Options struct {
	DefaultIntervalSeconds int
}

// NewServer constructs a gRPC server exposing the PowerStream transport.
func NewServer(streams StreamManager, logger *infra.Logger, opts Options) *grpc.Server {
	if opts.DefaultIntervalSeconds <= 0 {
		opts.DefaultIntervalSeconds = 5
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger), grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(streamLoggingInterceptor(logger), grpc_prometheus.StreamServerInterceptor),
	)
	RegisterPowerStreamServer(server, &powerStreamServer{streams: streams, logger: logger, opts: opts})
	grpc_prometheus.Register(server)
	return server
}

type powerStreamServer struct {
	streams StreamManager
	logger  *infra.Logger
	opts    Options
}

func (s *powerStreamServer) Subscribe(req *structpb.Struct, ss grpc.ServerStream) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request must not be nil")
	}
	streamReq, err := s.subscribeRequest(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ctx, cancel := context.WithCancelCause(ss.Context())
	defer cancel(nil)

	sink := &streamSink{stream: ss, onError: func(err error) {
		cancel(&domain.TransportError{Op: "grpc send", Err: err})
	}}
	sub, err := s.streams.Subscribe(ctx, streamReq, sink)
	if err != nil {
		return translateError(err)
	}
	<-sub.Done()

	var tErr *domain.TransportError
	if errors.As(context.Cause(ctx), &tErr) {
		return status.Error(codes.Unavailable, tErr.Error())
	}
	return nil
}

func (s *powerStreamServer) ListSubscriptions(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	active := s.streams.Active()
	out, err := toStruct(map[string]any{"count": len(active), "connections": active})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// subscribeRequest reads turbineIds (a list or a comma separated string) and
// intervalSeconds from req.
func (s *powerStreamServer) subscribeRequest(req *structpb.Struct) (stream.Request, error) {
	fields := req.GetFields()
	out := stream.Request{IntervalSeconds: s.opts.DefaultIntervalSeconds}

	switch v := fields["turbineIds"].GetKind().(type) {
	case nil:
	case *structpb.Value_StringValue:
		out.TurbineIDs = stream.ParseTurbineIDs(v.StringValue)
	case *structpb.Value_ListValue:
		for _, item := range v.ListValue.GetValues() {
			id, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return stream.Request{}, domain.NewValidationError("turbineIds", "must contain only strings")
			}
			out.TurbineIDs = append(out.TurbineIDs, id.StringValue)
		}
	default:
		return stream.Request{}, domain.NewValidationError("turbineIds", "must be a list of strings")
	}

	if v, ok := fields["intervalSeconds"]; ok {
		n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) {
			return stream.Request{}, domain.NewValidationError("intervalSeconds", "must be an integer")
		}
		if n.NumberValue < stream.MinIntervalSeconds || n.NumberValue > stream.MaxIntervalSeconds {
			return stream.Request{}, domain.NewValidationError("intervalSeconds", "must be between %d and %d", stream.MinIntervalSeconds, stream.MaxIntervalSeconds)
		}
		out.IntervalSeconds = int(n.NumberValue)
	}
	return stream.NormalizeRequest(out)
}

// streamSink sends events as {event, data} structs.
type streamSink struct {
	mu      sync.Mutex
	stream  grpc.ServerStream
	onError func(error)
}

func (s *streamSink) Send(_ context.Context, event stream.Event) error {
	data, err := toValue(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event": structpb.NewStringValue(event.Name),
		"data":  data,
	}}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.SendMsg(msg); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

// toValue converts a JSON-tagged payload into a protobuf value using its JSON shape.
func toValue(v any) (*structpb.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

func toStruct(v any) (*structpb.Struct, error) {
	value, err := toValue(v)
	if err != nil {
		return nil, err
	}
	out := value.GetStructValue()
	if out == nil {
		return nil, errors.New("payload is not an object")
	}
	return out, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "resource not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func loggingInterceptor(logger *infra.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

func streamLoggingInterceptor(logger *infra.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, info.FullMethod, time.Since(start), err)
		return err
	}
}

func logCall(ctx context.Context, logger *infra.Logger, method string, duration time.Duration, err error) {
	if logger == nil {
		return
	}
	method = strings.TrimPrefix(method, "/")
	if err != nil {
		logger.Printf(ctx, "gRPC %s failed in %s: %v", method, duration, err)
		return
	}
	logger.Printf(ctx, "gRPC %s completed in %s", method, duration)
}
