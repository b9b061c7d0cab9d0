package queue

import (
	"errors"

	"captioner/internal/services"
)

// ErrorClassifier allows errors to declare their failure kind. Pipeline
// errors implement it so the store can record the kind beside the message.
type ErrorClassifier interface {
	// ErrorKind returns the failure taxonomy entry, e.g. "TranscriptionFailed".
	ErrorKind() string
}

// FailureKind returns the kind recorded for err. Errors implementing
// ErrorClassifier win; otherwise the service sentinels are consulted.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := classifier.ErrorKind(); kind != "" {
			return kind
		}
	}
	return services.FailureKind(err)
}

// ErrBatchNotFound is returned when a batch id is unknown to the store.
var ErrBatchNotFound = errors.New("batch not found")
