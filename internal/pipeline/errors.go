package pipeline

import (
	"errors"
	"fmt"

	"captioner/internal/services"
)

// Error is a classified per-file failure. It satisfies queue.ErrorClassifier.
type Error struct {
	Kind  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Stage + ": " + e.Kind
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind returns the failure kind.
func (e *Error) ErrorKind() string { return e.Kind }

// classify wraps err for stage. Errors without a recognizable marker take
// fallback as their kind.
func classify(stage, fallback string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	kind := services.FailureKind(err)
	if kind == services.KindUnknown || kind == "" {
		kind = fallback
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
