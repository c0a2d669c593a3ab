package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"roadnerd/internal/model"
)

// FailureKind tags why a model call produced no text.
type FailureKind string

const (
	BackendUnreachable FailureKind = "backend_unreachable"
	BackendTimeout     FailureKind = "backend_timeout"
	EmptyResponse      FailureKind = "empty_response"
	BadStatus          FailureKind = "bad_status"
)

// Failure is the only error type Complete returns. It carries the identity
// and sampling that were attempted so callers can record them.
type Failure struct {
	Kind     FailureKind
	Status   int
	Identity model.Backend
	Sampling model.Sampling
	Err      error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (%s, status %d): %v", f.Kind, f.Identity.Kind, f.Status, f.Err)
	}
	return fmt.Sprintf("%s (%s): %v", f.Kind, f.Identity.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind of err, or "" when err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// asFailure tags a transport error. Errors that are already a Failure keep
// their kind.
func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	kind := BackendUnreachable
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = BackendTimeout
	case errors.As(err, &ne) && ne.Timeout():
		kind = BackendTimeout
	}
	return &Failure{Kind: kind, Err: err}
}
