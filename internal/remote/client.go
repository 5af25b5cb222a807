package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/anvil-platform/federation/internal/resolver"
)

// Client is a RequestResolver backed by a remote Server.
type Client struct {
	cc grpc.ClientConnInterface
}

var _ resolver.RequestResolver = (*Client)(nil)

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ResolveRequest(ctx context.Context, contextPath, request string) (resolver.Resolution, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, resolveMethod, encodeRequest(contextPath, request), out); err != nil {
		return failedResolution(err)
	}
	return decodeResolution(out), nil
}

func failedResolution(err error) (resolver.Resolution, error) {
	st, ok := status.FromError(err)
	if !ok {
		return resolver.Resolution{}, err
	}

	res := resolver.Resolution{Trace: resolver.NewDependencyTrace()}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			res.Trace.Merge(decodeTrace(s))
		}
	}
	if st.Code() == codes.NotFound {
		return res, fmt.Errorf("%s: %w", st.Message(), resolver.ErrNotFound)
	}
	return res, err
}
