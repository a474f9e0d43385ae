// Package rpc serves topology operations over gRPC. Messages are
// google.protobuf.Struct values so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "topoctl.v1.TopologyOperations"

const (
	invokeMethod    = "/" + ServiceName + "/Invoke"
	getEntityMethod = "/" + ServiceName + "/GetEntity"
)

// TopologyOperationsServer is the server API for the TopologyOperations
// service.
type TopologyOperationsServer interface {
	// Invoke runs {operation, input} and returns the operation output.
	Invoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetEntity returns the entity for {family, key, partition}.
	GetEntity(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the TopologyOperations service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TopologyOperationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
		{MethodName: "GetEntity", Handler: getEntityHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "topoctl/v1/topology.proto",
}

// RegisterTopologyOperationsServer registers srv on s.
func RegisterTopologyOperationsServer(s grpc.ServiceRegistrar, srv TopologyOperationsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TopologyOperationsServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TopologyOperationsServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getEntityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TopologyOperationsServer).GetEntity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getEntityMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TopologyOperationsServer).GetEntity(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the TopologyOperations service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Invoke calls TopologyOperations.Invoke.
func (c *Client) Invoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, invokeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntity calls TopologyOperations.GetEntity.
func (c *Client) GetEntity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getEntityMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
