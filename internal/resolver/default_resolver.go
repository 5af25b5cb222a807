package resolver

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Options tunes the coordinator.
type Options struct {
	// MaxConcurrency bounds in-flight RequestResolver calls. Zero means
	// one call per relative request, all at once.
	MaxConcurrency int
}

// DefaultResolver classifies share configs, resolves relative requests
// through a RequestResolver and buckets the results.
type DefaultResolver struct {
	requests RequestResolver
	opts     Options
}

func NewDefault(requests RequestResolver, opts Options) *DefaultResolver {
	return &DefaultResolver{requests: requests, opts: opts}
}

// batch is the single aggregation point for one Resolve call.
type batch struct {
	mu      sync.Mutex
	matched MatchedConfigs
	trace   DependencyTrace
	sink    ErrorSink
}

func (b *batch) addResolved(key string, cfg *ShareConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matched.Resolved[key] = cfg
}

func (b *batch) addPrefixed(prefix string, cfg *ShareConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matched.Prefixed[prefix] = cfg
}

func (b *batch) mergeTrace(t DependencyTrace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trace.Merge(t)
}

// addBare applies the composite key and the dual-insertion rule. Only
// called from the coordinating goroutine, in input order.
func (b *batch) addBare(request string, cfg *ShareConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()

	unresolved := b.matched.Unresolved
	unresolved[CompositeKey(request, *cfg)] = cfg

	_, exists := unresolved[request]
	switch {
	case exists:
	case request == cfg.ShareKey:
		unresolved[request] = cfg
	case request != cfg.Import && cfg.Import != cfg.ShareKey:
		// request, shareKey and import all differ: keep the aliased
		// config reachable under the original request too.
		unresolved[request] = cfg
	}
}

func (r *DefaultResolver) Resolve(ctx context.Context, in Input) (Plan, error) {
	if isNilResolver(r.requests) {
		return Plan{}, ErrNilResolver
	}
	for i, e := range in.Configs {
		if e.Config == nil {
			return Plan{}, fmt.Errorf("entry %d (%q): %w", i, e.Request, ErrNilConfig)
		}
	}

	logger := log.FromContext(ctx).WithValues("context", in.Context, "entries", len(in.Configs))
	logger.V(1).Info("resolving shared configs")

	start := time.Now()
	sharedResolveBatchTotal.Inc()
	defer func() {
		sharedResolveBatchDuration.Observe(time.Since(start).Seconds())
	}()

	b := &batch{
		matched: NewMatchedConfigs(),
		trace:   NewDependencyTrace(),
	}

	// Resolution failures are recorded in the sink, never returned, so the
	// group is only used for the join and the optional fan-out bound.
	var g errgroup.Group
	if r.opts.MaxConcurrency > 0 {
		g.SetLimit(r.opts.MaxConcurrency)
	}

	for _, e := range in.Configs {
		request, cfg := e.Request, e.Config
		shape := Classify(request)
		sharedResolveEntriesTotal.WithLabelValues(shape.String()).Inc()

		switch shape {
		case ShapeRelative:
			g.Go(func() error {
				r.resolveRelative(ctx, b, in.Context, request, cfg)
				return nil
			})
		case ShapeAbsolute:
			b.addResolved(request, cfg)
		case ShapePrefix:
			b.addPrefixed(request, cfg)
		default:
			b.addBare(request, cfg)
		}
	}
	_ = g.Wait()

	plan := Plan{
		Matched: b.matched,
		Trace:   b.trace,
		Errors:  b.sink.Errors(),
	}
	logger.V(1).Info("resolved shared configs",
		"resolved", len(plan.Matched.Resolved),
		"unresolved", len(plan.Matched.Unresolved),
		"prefixed", len(plan.Matched.Prefixed),
		"errors", len(plan.Errors),
	)
	return plan, nil
}

func (r *DefaultResolver) resolveRelative(ctx context.Context, b *batch, contextPath, request string, cfg *ShareConfig) {
	res, err := r.requests.ResolveRequest(ctx, contextPath, request)
	b.mergeTrace(res.Trace)

	if err == nil && (!res.Found || res.Path == "") {
		err = notFoundError(request)
	}
	if err != nil {
		sharedResolveFailuresTotal.Inc()
		log.FromContext(ctx).Info("unable to resolve shared module", "request", request, "error", err.Error())
		b.sink.Add(&ResolutionError{Request: request, Err: err})
		return
	}
	b.addResolved(res.Path, cfg)
}

// isNilResolver also catches typed nils such as RequestResolverFunc(nil).
func isNilResolver(requests RequestResolver) bool {
	if requests == nil {
		return true
	}
	switch v := reflect.ValueOf(requests); v.Kind() {
	case reflect.Func, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
