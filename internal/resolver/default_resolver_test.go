package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

type fakeAnswer struct {
	path  string
	found bool
	err   error
	trace DependencyTrace
	delay time.Duration
}

// fakeRequests answers from a table keyed by request.
type fakeRequests struct {
	mu      sync.Mutex
	answers map[string]fakeAnswer
	calls   []string
}

func (f *fakeRequests) ResolveRequest(ctx context.Context, contextPath, request string) (Resolution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, contextPath+"|"+request)
	a, ok := f.answers[request]
	f.mu.Unlock()

	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if !ok {
		return Resolution{}, nil
	}
	return Resolution{Path: a.path, Found: a.found, Trace: a.trace}, a.err
}

func trace(files, contexts, missing []string) DependencyTrace {
	return DependencyTrace{
		Files:    sets.New(files...),
		Contexts: sets.New(contexts...),
		Missing:  sets.New(missing...),
	}
}

func testContext(t *testing.T) context.Context {
	return log.IntoContext(context.Background(), testr.New(t))
}

func resolveOrFail(t *testing.T, r *DefaultResolver, in Input) Plan {
	t.Helper()
	plan, err := r.Resolve(testContext(t), in)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	return plan
}

func TestDefaultResolver_RelativeResolved(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./foo": {path: "/abs/foo.js", found: true},
	}}
	r := NewDefault(fake, Options{})
	cfg := &ShareConfig{}

	plan := resolveOrFail(t, r, Input{Context: "/abs", Configs: []Entry{{Request: "./foo", Config: cfg}}})

	if diff := cmp.Diff(map[string]*ShareConfig{"/abs/foo.js": {}}, plan.Matched.Resolved); diff != "" {
		t.Fatalf("resolved mismatch (-want +got):\n%s", diff)
	}
	if plan.Matched.Resolved["/abs/foo.js"] != cfg {
		t.Fatalf("expected resolved entry to reference the input config")
	}
	if len(plan.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", plan.Errors)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "/abs|./foo" {
		t.Fatalf("expected one call with context /abs, got %v", fake.calls)
	}
}

func TestDefaultResolver_RelativeFailureRecorded(t *testing.T) {
	boom := errors.New("resolver exploded")
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./missing": {err: boom},
	}}
	r := NewDefault(fake, Options{})

	plan := resolveOrFail(t, r, Input{Context: "/app", Configs: []Entry{{Request: "./missing", Config: &ShareConfig{}}}})

	if len(plan.Matched.Resolved) != 0 {
		t.Fatalf("expected no resolved entries, got %v", plan.Matched.Resolved)
	}
	if len(plan.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(plan.Errors))
	}
	if plan.Errors[0].Request != "./missing" {
		t.Fatalf("expected error for ./missing, got %q", plan.Errors[0].Request)
	}
	if !errors.Is(plan.Errors[0], boom) {
		t.Fatalf("expected error to wrap resolver failure, got %v", plan.Errors[0])
	}
	if plan.Errors[0].Name() != "shared module ./missing" {
		t.Fatalf("unexpected error name %q", plan.Errors[0].Name())
	}
}

func TestDefaultResolver_NegativeResultSynthesizesNotFound(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./gone": {found: false},
	}}
	r := NewDefault(fake, Options{})

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "./gone", Config: &ShareConfig{}}}})

	if len(plan.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(plan.Errors))
	}
	if !errors.Is(plan.Errors[0], ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", plan.Errors[0])
	}
	if got := plan.Errors[0].Err.Error(); got != "can't resolve ./gone: module not found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDefaultResolver_LayeredShareKeyDualInsert(t *testing.T) {
	r := NewDefault(&fakeRequests{}, Options{})
	cfg := &ShareConfig{ShareKey: "react", Layer: "ssr"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "react", Config: cfg}}})

	want := map[string]*ShareConfig{"(ssr)react": cfg, "react": cfg}
	if diff := cmp.Diff(want, plan.Matched.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
	if plan.Matched.Unresolved["(ssr)react"] != plan.Matched.Unresolved["react"] {
		t.Fatalf("expected both keys to reference the same config")
	}
}

func TestDefaultResolver_UnlayeredAliasesKeyOnRequest(t *testing.T) {
	r := NewDefault(&fakeRequests{}, Options{})
	cfg := &ShareConfig{Import: "lodash-es", ShareKey: "lodash-shared"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "lodash", Config: cfg}}})

	want := map[string]*ShareConfig{"lodash": cfg}
	if diff := cmp.Diff(want, plan.Matched.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultResolver_LayeredAliasesDualInsert(t *testing.T) {
	r := NewDefault(&fakeRequests{}, Options{})
	cfg := &ShareConfig{Import: "lodash-es", ShareKey: "lodash-shared", Layer: "client"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "lodash", Config: cfg}}})

	want := map[string]*ShareConfig{"(client)lodash-shared": cfg, "lodash": cfg}
	if diff := cmp.Diff(want, plan.Matched.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultResolver_LayeredImportEqualsShareKeyNoDualInsert(t *testing.T) {
	r := NewDefault(&fakeRequests{}, Options{})
	cfg := &ShareConfig{Import: "preact/compat", ShareKey: "preact/compat", Layer: "client"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "react", Config: cfg}}})

	want := map[string]*ShareConfig{"(client)preact/compat": cfg}
	if diff := cmp.Diff(want, plan.Matched.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultResolver_DualInsertKeepsFirstInInputOrder(t *testing.T) {
	r := NewDefault(&fakeRequests{}, Options{})
	plain := &ShareConfig{Version: "18.2.0"}
	layered := &ShareConfig{ShareKey: "react", Layer: "ssr"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{
		{Request: "react", Config: plain},
		{Request: "react", Config: layered},
	}})

	if plan.Matched.Unresolved["react"] != plain {
		t.Fatalf("expected the first config to keep the raw request key")
	}
	if plan.Matched.Unresolved["(ssr)react"] != layered {
		t.Fatalf("expected the layered config under its composite key")
	}
}

func TestDefaultResolver_PrefixAndAbsolute(t *testing.T) {
	fake := &fakeRequests{}
	r := NewDefault(fake, Options{})
	vendor := &ShareConfig{}
	abs := &ShareConfig{ShareKey: "shared-utils"}

	plan := resolveOrFail(t, r, Input{Configs: []Entry{
		{Request: "vendor/", Config: vendor},
		{Request: "/repo/shared/utils.js", Config: abs},
	}})

	if plan.Matched.Prefixed["vendor/"] != vendor || len(plan.Matched.Prefixed) != 1 {
		t.Fatalf("unexpected prefixed bucket %v", plan.Matched.Prefixed)
	}
	if plan.Matched.Resolved["/repo/shared/utils.js"] != abs || len(plan.Matched.Resolved) != 1 {
		t.Fatalf("unexpected resolved bucket %v", plan.Matched.Resolved)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no resolver calls, got %v", fake.calls)
	}
}

func TestDefaultResolver_FailureDoesNotAffectSiblings(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./ok":     {path: "/app/ok.js", found: true, delay: 10 * time.Millisecond},
		"./broken": {err: errors.New("nope")},
		"./also":   {path: "/app/also.js", found: true},
	}}
	r := NewDefault(fake, Options{})

	plan := resolveOrFail(t, r, Input{Context: "/app", Configs: []Entry{
		{Request: "./ok", Config: &ShareConfig{}},
		{Request: "./broken", Config: &ShareConfig{}},
		{Request: "react", Config: &ShareConfig{}},
		{Request: "/abs.js", Config: &ShareConfig{}},
		{Request: "lib/", Config: &ShareConfig{}},
		{Request: "./also", Config: &ShareConfig{}},
	}})

	if got := sets.KeySet(plan.Matched.Resolved); !got.Equal(sets.New("/app/ok.js", "/app/also.js", "/abs.js")) {
		t.Fatalf("unexpected resolved keys %v", sets.List(got))
	}
	if _, ok := plan.Matched.Unresolved["react"]; !ok {
		t.Fatalf("expected react in unresolved")
	}
	if _, ok := plan.Matched.Prefixed["lib/"]; !ok {
		t.Fatalf("expected lib/ in prefixed")
	}
	if len(plan.Errors) != 1 || plan.Errors[0].Request != "./broken" {
		t.Fatalf("expected a single error for ./broken, got %v", plan.Errors)
	}
}

func TestDefaultResolver_TraceIsUnionOfAllCalls(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./a": {path: "/app/a.js", found: true, trace: trace(
			[]string{"/app/a.js", "/app/package.json"}, []string{"/app"}, []string{"/app/a"})},
		"./b": {err: errors.New("nope"), trace: trace(
			[]string{"/app/package.json"}, []string{"/app", "/app/b"}, []string{"/app/b.js", "/app/a"})},
	}}
	r := NewDefault(fake, Options{})

	plan := resolveOrFail(t, r, Input{Context: "/app", Configs: []Entry{
		{Request: "./a", Config: &ShareConfig{}},
		{Request: "./b", Config: &ShareConfig{}},
	}})

	if !plan.Trace.Files.Equal(sets.New("/app/a.js", "/app/package.json")) {
		t.Errorf("files = %v", sets.List(plan.Trace.Files))
	}
	if !plan.Trace.Contexts.Equal(sets.New("/app", "/app/b")) {
		t.Errorf("contexts = %v", sets.List(plan.Trace.Contexts))
	}
	if !plan.Trace.Missing.Equal(sets.New("/app/a", "/app/b.js")) {
		t.Errorf("missing = %v", sets.List(plan.Trace.Missing))
	}
	if plan.Trace.Len() != 6 {
		t.Errorf("expected 6 traced paths, got %d", plan.Trace.Len())
	}
}

func TestDefaultResolver_IdempotentAcrossRuns(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./a": {path: "/app/a.js", found: true, delay: 5 * time.Millisecond},
		"./b": {path: "/app/b.js", found: true},
	}}
	r := NewDefault(fake, Options{})
	in := Input{Context: "/app", Configs: []Entry{
		{Request: "./a", Config: &ShareConfig{ShareKey: "a"}},
		{Request: "./b", Config: &ShareConfig{ShareKey: "b"}},
		{Request: "react", Config: &ShareConfig{ShareKey: "react", Layer: "ssr"}},
		{Request: "lodash", Config: &ShareConfig{Import: "lodash-es", ShareKey: "lodash-shared", IssuerLayer: "rsc"}},
		{Request: "ui/", Config: &ShareConfig{}},
	}}

	first := resolveOrFail(t, r, in)
	second := resolveOrFail(t, r, in)
	if diff := cmp.Diff(first.Matched, second.Matched); diff != "" {
		t.Fatalf("buckets differ between runs (-first +second):\n%s", diff)
	}
}

func TestDefaultResolver_RelativeCallsAreConcurrent(t *testing.T) {
	const n = 4
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})
	go func() {
		arrived.Wait()
		close(release)
	}()

	resolve := RequestResolverFunc(func(ctx context.Context, contextPath, request string) (Resolution, error) {
		arrived.Done()
		select {
		case <-release:
			return Resolution{Path: "/app/" + request[2:] + ".js", Found: true}, nil
		case <-time.After(5 * time.Second):
			return Resolution{}, errors.New("calls were not issued concurrently")
		}
	})

	configs := make([]Entry, 0, n)
	for _, req := range []string{"./a", "./b", "./c", "./d"} {
		configs = append(configs, Entry{Request: req, Config: &ShareConfig{}})
	}
	plan := resolveOrFail(t, NewDefault(resolve, Options{}), Input{Context: "/app", Configs: configs})

	if len(plan.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", plan.Errors)
	}
	if len(plan.Matched.Resolved) != n {
		t.Fatalf("expected %d resolved, got %d", n, len(plan.Matched.Resolved))
	}
}

func TestDefaultResolver_MaxConcurrencyBoundsFanOut(t *testing.T) {
	var inFlight, peak int32
	resolve := RequestResolverFunc(func(ctx context.Context, contextPath, request string) (Resolution, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return Resolution{Path: "/app/" + request, Found: true}, nil
	})

	configs := make([]Entry, 0, 10)
	for _, req := range []string{"./0", "./1", "./2", "./3", "./4", "./5", "./6", "./7", "./8", "./9"} {
		configs = append(configs, Entry{Request: req, Config: &ShareConfig{}})
	}
	plan := resolveOrFail(t, NewDefault(resolve, Options{MaxConcurrency: 2}), Input{Configs: configs})

	if len(plan.Matched.Resolved) != 10 {
		t.Fatalf("expected 10 resolved, got %d", len(plan.Matched.Resolved))
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", p)
	}
}

func TestDefaultResolver_RejectsNilInputs(t *testing.T) {
	if _, err := NewDefault(nil, Options{}).Resolve(context.Background(), Input{}); !errors.Is(err, ErrNilResolver) {
		t.Fatalf("expected ErrNilResolver, got %v", err)
	}

	_, err := NewDefault(&fakeRequests{}, Options{}).Resolve(context.Background(), Input{
		Configs: []Entry{{Request: "react"}},
	})
	if !errors.Is(err, ErrNilConfig) {
		t.Fatalf("expected ErrNilConfig, got %v", err)
	}
}

func TestDefaultResolver_RejectsTypedNilResolvers(t *testing.T) {
	in := Input{Configs: []Entry{{Request: "./foo", Config: &ShareConfig{}}}}
	for name, requests := range map[string]RequestResolver{
		"func":    RequestResolverFunc(nil),
		"pointer": (*fakeRequests)(nil),
	} {
		if _, err := NewDefault(requests, Options{}).Resolve(context.Background(), in); !errors.Is(err, ErrNilResolver) {
			t.Errorf("%s: expected ErrNilResolver, got %v", name, err)
		}
	}
}

func TestDefaultResolver_FoundWithoutPathIsNotFound(t *testing.T) {
	fake := &fakeRequests{answers: map[string]fakeAnswer{
		"./blank": {found: true},
	}}
	r := NewDefault(fake, Options{})

	plan := resolveOrFail(t, r, Input{Configs: []Entry{{Request: "./blank", Config: &ShareConfig{}}}})

	if _, ok := plan.Matched.Resolved[""]; ok {
		t.Fatalf("expected no entry under an empty path, got %v", plan.Matched.Resolved)
	}
	if len(plan.Errors) != 1 || !errors.Is(plan.Errors[0], ErrNotFound) {
		t.Fatalf("expected one not-found error, got %v", plan.Errors)
	}
}
