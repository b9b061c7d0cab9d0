package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"captioner/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrAudioExtraction, "extracting", "ffmpeg", "exit status 1", base)
	if !errors.Is(err, services.ErrAudioExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extracting", "ffmpeg", "exit status 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrAudioExtraction, "extracting", "", "", nil), services.KindAudioExtraction},
		{services.Wrap(services.ErrTranscription, "transcribing", "", "", nil), services.KindTranscription},
		{services.Wrap(services.ErrNoSpeech, "transcribing", "", "", nil), services.KindNoSpeech},
		{fmt.Errorf("%w: %w", services.ErrTranscription, services.ErrMalformedResponse), services.KindMalformedResponse},
		{services.Wrap(services.ErrOutputWrite, "writing", "", "", nil), services.KindOutputWrite},
		{services.Wrap(services.ErrConfiguration, "", "", "", nil), services.KindConfiguration},
		{fmt.Errorf("transcribe: %w", context.Canceled), services.KindCancelled},
		{errors.New("mystery"), services.KindUnknown},
	}
	for _, tt := range tests {
		if got := services.FailureKind(tt.err); got != tt.want {
			t.Errorf("FailureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
