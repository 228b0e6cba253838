// Package grpcapi implements the internal ProjectionQuery service
// SPEC_FULL.md's domain-stack expansion calls for: a cross-component read
// path over projection rows and the event stream, mirroring the
// teacher's ledger-to-onboarding gRPC call pattern.
//
// The service boundary below is the same boilerplate protoc-gen-go-grpc
// would emit from a .proto file — method/stream descriptors, a codec-level
// handler per RPC, a ServiceRegistrar-based Register function — hand
// written because this exercise never invokes the Go or protobuf
// toolchain. Request/response messages are google.golang.org/protobuf's
// own generated structpb.Struct type rather than a custom generated
// message, which keeps every message on the wire a genuine proto.Message
// without needing protoc to produce one.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProjectionQueryServer is the service interface a ProjectionQuery
// implementation satisfies.
type ProjectionQueryServer interface {
	// GetProjectionRow looks up a single row by primary key. Request
	// fields: projection_type, row_id, legal_entity. Response is the row
	// as a field map, or an empty struct if no row matched.
	GetProjectionRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// StreamEvents streams the event log from after_sequence, limit
	// events per request field, terminating the stream once exhausted.
	StreamEvents(req *structpb.Struct, stream ProjectionQuery_StreamEventsServer) error
}

// ProjectionQuery_StreamEventsServer is the server-side stream handle for
// StreamEvents.
type ProjectionQuery_StreamEventsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type projectionQueryStreamEventsServer struct {
	grpc.ServerStream
}

func (x *projectionQueryStreamEventsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _ProjectionQuery_GetProjectionRow_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ProjectionQueryServer).GetProjectionRow(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/apengine.ProjectionQuery/GetProjectionRow"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProjectionQueryServer).GetProjectionRow(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func _ProjectionQuery_StreamEvents_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}

	return srv.(ProjectionQueryServer).StreamEvents(m, &projectionQueryStreamEventsServer{stream})
}

// ProjectionQuery_ServiceDesc is the grpc service descriptor, equivalent
// to what protoc-gen-go-grpc emits for a "ProjectionQuery" service with
// one unary and one server-streaming RPC.
var ProjectionQuery_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "apengine.ProjectionQuery",
	HandlerType: (*ProjectionQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProjectionRow", Handler: _ProjectionQuery_GetProjectionRow_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: _ProjectionQuery_StreamEvents_Handler, ServerStreams: true},
	},
	Metadata: "internal/grpcapi/projection_query.go",
}

// RegisterProjectionQueryServer registers srv on s, the same call shape
// generated code exposes.
func RegisterProjectionQueryServer(s grpc.ServiceRegistrar, srv ProjectionQueryServer) {
	s.RegisterService(&ProjectionQuery_ServiceDesc, srv)
}

// NewProjectionQueryClient builds a thin client over conn, for the rare
// in-process caller that wants Go method calls instead of raw Invoke.
func NewProjectionQueryClient(conn grpc.ClientConnInterface) ProjectionQueryClient {
	return &projectionQueryClient{conn}
}

// ProjectionQueryClient is the client-side counterpart to
// ProjectionQueryServer.
type ProjectionQueryClient interface {
	GetProjectionRow(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamEvents(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (ProjectionQuery_StreamEventsClient, error)
}

type projectionQueryClient struct {
	cc grpc.ClientConnInterface
}

func (c *projectionQueryClient) GetProjectionRow(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/apengine.ProjectionQuery/GetProjectionRow", req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *projectionQueryClient) StreamEvents(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (ProjectionQuery_StreamEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ProjectionQuery_ServiceDesc.Streams[0], "/apengine.ProjectionQuery/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}

	x := &projectionQueryStreamEventsClient{stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

// ProjectionQuery_StreamEventsClient is the client-side stream handle for
// StreamEvents.
type ProjectionQuery_StreamEventsClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type projectionQueryStreamEventsClient struct {
	grpc.ClientStream
}

func (x *projectionQueryStreamEventsClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}

	return m, nil
}
