package remote

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/federation/internal/resolver"
)

// Server serves a RequestResolver over gRPC.
type Server struct {
	requests resolver.RequestResolver
}

var _ resolverService = (*Server)(nil)

func NewServer(requests resolver.RequestResolver) *Server {
	return &Server{requests: requests}
}

// Register installs the service on s.
func (srv *Server) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&serviceDesc, srv)
}

func (srv *Server) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	contextPath, request, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logger := log.FromContext(ctx).WithValues("context", contextPath, "request", request)

	res, err := srv.requests.ResolveRequest(ctx, contextPath, request)
	if err != nil {
		logger.V(1).Info("resolve failed", "error", err.Error())
		return nil, errorStatus(err, res.Trace)
	}
	logger.V(1).Info("resolved", "path", res.Path, "found", res.Found)
	return encodeResolution(res), nil
}

func errorStatus(err error, trace resolver.DependencyTrace) error {
	code := codes.Unknown
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	st := status.New(code, err.Error())
	if withTrace, derr := st.WithDetails(traceStruct(trace)); derr == nil {
		st = withTrace
	}
	return st.Err()
}
