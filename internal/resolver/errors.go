package resolver

import (
	"errors"
	"fmt"
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var (
	// ErrNotFound is wrapped by the error synthesized when a resolver
	// reports a negative result without an error of its own.
	ErrNotFound = errors.New("module not found")

	// ErrNilResolver indicates the coordinator was built without a RequestResolver.
	ErrNilResolver = errors.New("request resolver is nil")

	// ErrNilConfig indicates an input entry carried no ShareConfig.
	ErrNilConfig = errors.New("share config is nil")
)

// ResolutionError reports a relative shared-module request that could not
// be resolved. It never aborts the batch.
type ResolutionError struct {
	Request string
	Err     error
}

// Name identifies the failing module the way build diagnostics do.
func (e *ResolutionError) Name() string {
	return "shared module " + e.Request
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func notFoundError(request string) error {
	return fmt.Errorf("can't resolve %s: %w", request, ErrNotFound)
}

// ErrorSink is an ordered, append-only collection of resolution errors.
// Add is safe for concurrent use.
type ErrorSink struct {
	mu   sync.Mutex
	errs []*ResolutionError
}

func (s *ErrorSink) Add(err *ResolutionError) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// Errors returns a copy of the accumulated errors in append order.
func (s *ErrorSink) Errors() []*ResolutionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ResolutionError, len(s.errs))
	copy(out, s.errs)
	return out
}

// Aggregate folds the sink into a single error, or nil when it is empty.
func (s *ErrorSink) Aggregate() error {
	errs := s.Errors()
	if len(errs) == 0 {
		return nil
	}
	list := make([]error, 0, len(errs))
	for _, e := range errs {
		list = append(list, e)
	}
	return utilerrors.NewAggregate(list)
}
