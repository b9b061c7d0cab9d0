package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAudioExtraction   = errors.New("audio extraction failed")
	ErrTranscription     = errors.New("transcription failed")
	ErrNoSpeech          = errors.New("no speech detected")
	ErrMalformedResponse = errors.New("malformed transcription response")
	ErrOutputWrite       = errors.New("output write failed")
	ErrConfiguration     = errors.New("configuration error")
	ErrCancelled         = errors.New("cancelled")
	ErrTransient         = errors.New("transient failure")
)

// Failure kinds recorded beside errored files.
const (
	KindAudioExtraction   = "AudioExtractionFailed"
	KindTranscription     = "TranscriptionFailed"
	KindNoSpeech          = "NoSpeechDetected"
	KindMalformedResponse = "MalformedResponse"
	KindOutputWrite       = "OutputWriteFailed"
	KindConfiguration     = "ConfigurationError"
	KindCancelled         = "Cancelled"
	KindUnknown           = "Unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error to its failure kind. A malformed response is
// reported as its own kind even though it is a transcription failure.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrAudioExtraction):
		return KindAudioExtraction
	case errors.Is(err, ErrNoSpeech):
		return KindNoSpeech
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrOutputWrite):
		return KindOutputWrite
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
