package resolver

import "context"

// Resolver turns a batch of share configurations into matched buckets.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Plan, error)
}

// RequestResolver is the host's module resolution capability.
//
// Implementations report the paths they examined in Resolution.Trace even
// when they return an error. A negative result is Found == false with a
// nil error; the coordinator treats both as a failed resolution.
type RequestResolver interface {
	ResolveRequest(ctx context.Context, contextPath, request string) (Resolution, error)
}

// Resolution is the result of a single RequestResolver call.
type Resolution struct {
	// Path is the canonical absolute path, set when Found is true.
	Path  string
	Found bool
	Trace DependencyTrace
}

// RequestResolverFunc adapts a function to RequestResolver.
type RequestResolverFunc func(ctx context.Context, contextPath, request string) (Resolution, error)

func (f RequestResolverFunc) ResolveRequest(ctx context.Context, contextPath, request string) (Resolution, error) {
	return f(ctx, contextPath, request)
}
