package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	StatusServiceName       = "messaging.webhooks.v1.StatusService"
	ReconcileStatusFullName = "/" + StatusServiceName + "/ReconcileStatus"
)

// StatusServiceServer ingests message status events from internal callers.
// Requests and responses are google.protobuf.Struct documents.
type StatusServiceServer interface {
	ReconcileStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var StatusServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ReconcileStatus",
			Handler:    reconcileStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "messaging/webhooks/v1/status.proto",
}

// RegisterStatusServiceServer registers srv on a gRPC server.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusServiceDesc, srv)
}

func reconcileStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).ReconcileStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReconcileStatusFullName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).ReconcileStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type StatusServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusServiceClient wraps a client connection.
func NewStatusServiceClient(cc grpc.ClientConnInterface) *StatusServiceClient {
	return &StatusServiceClient{cc: cc}
}

func (c *StatusServiceClient) ReconcileStatus(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ReconcileStatusFullName, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
