package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func grpcUnimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// RaftServiceServer is the server API for the RaftService service, mirroring
// what protoc-gen-go-grpc would generate from docs/kv.proto.
type RaftServiceServer interface {
	Status(context.Context, *StatusRequest) (*StatusReply, error)
	ChangeConfig(context.Context, *ConfChangeRequest) (*ChangeReply, error)
}

// UnimplementedRaftServiceServer embeds into concrete implementations for
// forward compatibility if methods are added later.
type UnimplementedRaftServiceServer struct{}

func (UnimplementedRaftServiceServer) Status(context.Context, *StatusRequest) (*StatusReply, error) {
	return nil, grpcUnimplemented("Status")
}

func (UnimplementedRaftServiceServer) ChangeConfig(context.Context, *ConfChangeRequest) (*ChangeReply, error) {
	return nil, grpcUnimplemented("ChangeConfig")
}

// RegisterRaftServiceServer registers srv with s under the RaftService
// service descriptor.
func RegisterRaftServiceServer(s grpc.ServiceRegistrar, srv RaftServiceServer) {
	s.RegisterService(&raftServiceDesc, srv)
}

func raftServiceStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftkv.RaftService/Status"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func raftServiceChangeConfigHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ConfChangeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).ChangeConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftkv.RaftService/ChangeConfig"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).ChangeConfig(ctx, req.(*ConfChangeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var raftServiceDesc = grpc.ServiceDesc{
	ServiceName: "raftkv.RaftService",
	HandlerType: (*RaftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: raftServiceStatusHandler},
		{MethodName: "ChangeConfig", Handler: raftServiceChangeConfigHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kv.proto",
}

// RaftServiceClient is the client API for the RaftService service.
type RaftServiceClient interface {
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusReply, error)
	ChangeConfig(ctx context.Context, in *ConfChangeRequest, opts ...grpc.CallOption) (*ChangeReply, error)
}

type raftServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRaftServiceClient wraps cc with the RaftService client stub.
func NewRaftServiceClient(cc grpc.ClientConnInterface) RaftServiceClient {
	return &raftServiceClient{cc}
}

func (c *raftServiceClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusReply, error) {
	out := new(StatusReply)
	if err := c.cc.Invoke(ctx, "/raftkv.RaftService/Status", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftServiceClient) ChangeConfig(ctx context.Context, in *ConfChangeRequest, opts ...grpc.CallOption) (*ChangeReply, error) {
	out := new(ChangeReply)
	if err := c.cc.Invoke(ctx, "/raftkv.RaftService/ChangeConfig", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
