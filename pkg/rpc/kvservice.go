package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// KvServiceServer is the server API for the KvService service, mirroring
// what protoc-gen-go-grpc would generate from docs/kv.proto.
type KvServiceServer interface {
	Get(context.Context, *GetRequest) (*GetReply, error)
	Put(context.Context, *PutRequest) (*PutReply, error)
	Delete(context.Context, *DeleteRequest) (*DeleteReply, error)
}

// UnimplementedKvServiceServer embeds into concrete implementations for
// forward compatibility if methods are added later.
type UnimplementedKvServiceServer struct{}

func (UnimplementedKvServiceServer) Get(context.Context, *GetRequest) (*GetReply, error) {
	return nil, grpcUnimplemented("Get")
}

func (UnimplementedKvServiceServer) Put(context.Context, *PutRequest) (*PutReply, error) {
	return nil, grpcUnimplemented("Put")
}

func (UnimplementedKvServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteReply, error) {
	return nil, grpcUnimplemented("Delete")
}

// RegisterKvServiceServer registers srv with s under the KvService service
// descriptor.
func RegisterKvServiceServer(s grpc.ServiceRegistrar, srv KvServiceServer) {
	s.RegisterService(&kvServiceDesc, srv)
}

func kvServiceGetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftkv.KvService/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvServiceServer).Get(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func kvServicePutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftkv.KvService/Put"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvServiceServer).Put(ctx, req.(*PutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func kvServiceDeleteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvServiceServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/raftkv.KvService/Delete"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvServiceServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var kvServiceDesc = grpc.ServiceDesc{
	ServiceName: "raftkv.KvService",
	HandlerType: (*KvServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: kvServiceGetHandler},
		{MethodName: "Put", Handler: kvServicePutHandler},
		{MethodName: "Delete", Handler: kvServiceDeleteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kv.proto",
}

// KvServiceClient is the client API for the KvService service.
type KvServiceClient interface {
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetReply, error)
	Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutReply, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteReply, error)
}

type kvServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewKvServiceClient wraps cc with the KvService client stub.
func NewKvServiceClient(cc grpc.ClientConnInterface) KvServiceClient {
	return &kvServiceClient{cc}
}

func (c *kvServiceClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetReply, error) {
	out := new(GetReply)
	if err := c.cc.Invoke(ctx, "/raftkv.KvService/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvServiceClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutReply, error) {
	out := new(PutReply)
	if err := c.cc.Invoke(ctx, "/raftkv.KvService/Put", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteReply, error) {
	out := new(DeleteReply)
	if err := c.cc.Invoke(ctx, "/raftkv.KvService/Delete", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
