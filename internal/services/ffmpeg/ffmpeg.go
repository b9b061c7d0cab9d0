// Package ffmpeg wraps the ffmpeg and ffprobe executables used to prepare
// audio for transcription and to measure media duration.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"captioner/internal/services"
)

// CommandRunner executes a binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Extractor converts media into mono 16 kHz mp3 audio.
type Extractor struct {
	binary string
	run    CommandRunner
}

// NewExtractor returns an extractor using binary. A nil runner uses os/exec.
func NewExtractor(binary string, run CommandRunner) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Extractor{binary: binary, run: run}
}

// ExtractArgs returns the ffmpeg arguments for converting src into dest.
func ExtractArgs(src, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-acodec", "mp3",
		"-ar", "16000",
		"-ac", "1",
		dest,
	}
}

// Extract writes the audio track of src to dest. Failures are marked with
// services.ErrAudioExtraction.
func (e *Extractor) Extract(ctx context.Context, src, dest string) error {
	output, err := e.run(ctx, e.binary, ExtractArgs(src, dest)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrCancelled, "extracting", "ffmpeg", "audio extraction cancelled", ctxErr)
		}
		return services.Wrap(services.ErrAudioExtraction, "extracting", "ffmpeg", stderrSnippet(output), err)
	}
	return nil
}

// Prober measures media duration with ffprobe.
type Prober struct {
	binary string
	run    CommandRunner
}

// NewProber returns a prober using binary. A nil runner uses os/exec.
func NewProber(binary string, run CommandRunner) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Prober{binary: binary, run: run}
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration of src.
func (p *Prober) Duration(ctx context.Context, src string) (time.Duration, error) {
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("ffprobe duration: empty path")
	}
	output, err := p.run(ctx, p.binary, "-v", "error", "-show_entries", "format=duration", "-of", "json", "--", src)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w: %s", err, stderrSnippet(output))
	}
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	return ParseDuration(result.Format.Duration)
}

// ParseDuration converts an ffprobe seconds string into a duration.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, errors.New("ffprobe duration: not reported")
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("ffprobe duration: invalid value %q", value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func stderrSnippet(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "ffmpeg exited with an error"
	}
	const limit = 200
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}
