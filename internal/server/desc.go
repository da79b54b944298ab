package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "procurement.v1.IntakeService"

const (
	MethodExtractDocument = "/" + ServiceName + "/ExtractDocument"
	MethodClassifyRequest = "/" + ServiceName + "/ClassifyRequest"
)

// IntakeServer is the server API for procurement.v1.IntakeService. The
// service uses well-known types only, so it is registered without codegen.
type IntakeServer interface {
	ExtractDocument(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	ClassifyRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var IntakeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractDocument", Handler: extractDocumentHandler},
		{MethodName: "ClassifyRequest", Handler: classifyRequestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "procurement/v1/intake.proto",
}

func RegisterIntakeServer(s grpc.ServiceRegistrar, srv IntakeServer) {
	s.RegisterService(&IntakeServiceDesc, srv)
}

func extractDocumentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntakeServer).ExtractDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodExtractDocument}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntakeServer).ExtractDocument(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func classifyRequestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntakeServer).ClassifyRequest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodClassifyRequest}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntakeServer).ClassifyRequest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IntakeClient calls procurement.v1.IntakeService.
type IntakeClient struct {
	cc grpc.ClientConnInterface
}

func NewIntakeClient(cc grpc.ClientConnInterface) *IntakeClient {
	return &IntakeClient{cc: cc}
}

func (c *IntakeClient) ExtractDocument(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodExtractDocument, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IntakeClient) ClassifyRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodClassifyRequest, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
