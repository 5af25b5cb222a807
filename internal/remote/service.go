// Package remote exposes a RequestResolver over gRPC so a host process
// that owns the real module resolver can serve resolution to this core.
//
// Messages are google.protobuf.Struct values:
//
//	request:  {"context": string, "request": string}
//	response: {"path": string, "found": bool,
//	           "files": [string], "contexts": [string], "missing": [string]}
//
// Failed resolutions carry the trace as a Struct status detail.
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "federation.resolver.v1.RequestResolver"
	resolveMethod = "/" + ServiceName + "/Resolve"
)

const (
	fieldContext  = "context"
	fieldRequest  = "request"
	fieldPath     = "path"
	fieldFound    = "found"
	fieldFiles    = "files"
	fieldContexts = "contexts"
	fieldMissing  = "missing"
)

// resolverService is the server-side contract of the service.
type resolverService interface {
	Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*resolverService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "federation/resolver/v1/resolver.proto",
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(resolverService).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: resolveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(resolverService).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
