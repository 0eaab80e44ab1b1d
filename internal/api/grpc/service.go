package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName           = "windfarm.v1.PowerStream"
	subscribeMethod       = "/" + ServiceName + "/Subscribe"
	listSubscriptionsPath = "/" + ServiceName + "/ListSubscriptions"
)

// PowerStreamServer is the server side of windfarm.v1.PowerStream. Messages are
// well-known protobuf types so no generated code is needed.
type PowerStreamServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
	ListSubscriptions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

var powerStreamDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PowerStreamServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSubscriptions", Handler: listSubscriptionsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "windfarm/v1/power_stream.proto",
}

// RegisterPowerStreamServer attaches srv to s.
func RegisterPowerStreamServer(s grpc.ServiceRegistrar, srv PowerStreamServer) {
	s.RegisterService(&powerStreamDesc, srv)
}

func listSubscriptionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PowerStreamServer).ListSubscriptions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listSubscriptionsPath}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PowerStreamServer).ListSubscriptions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PowerStreamServer).Subscribe(in, stream)
}

// Client is a thin client for windfarm.v1.PowerStream.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// SubscribeStream receives {event, data} messages until the server ends the stream.
type SubscribeStream struct {
	grpc.ClientStream
}

func (s *SubscribeStream) Recv() (*structpb.Struct, error) {
	msg := new(structpb.Struct)
	if err := s.ClientStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Client) Subscribe(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*SubscribeStream, error) {
	stream, err := c.cc.NewStream(ctx, &powerStreamDesc.Streams[0], subscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &SubscribeStream{ClientStream: stream}, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listSubscriptionsPath, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
