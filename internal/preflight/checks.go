package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"captioner/internal/config"
	"captioner/internal/deps"
	"captioner/internal/services/bazarr"
	"captioner/internal/services/llm"
)

// CheckLLM verifies that the keyterm LLM is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.Keyterms) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckBazarr verifies Bazarr connectivity and the API key.
func CheckBazarr(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Bazarr"
	switch {
	case strings.TrimSpace(baseURL) == "":
		return Result{Name: name, Detail: "missing url"}
	case strings.TrimSpace(apiKey) == "":
		return Result{Name: name, Detail: "missing api key"}
	}
	svc := bazarr.NewHTTPService(baseURL, apiKey, 5*time.Second, nil)
	switch err := svc.Status(ctx); {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case errors.Is(err, bazarr.ErrUnauthorized):
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%v)", err)}
	}
}

// CheckDeepgramKey reports whether a Deepgram API key is configured. The key
// itself is only exercised by a real transcription request.
func CheckDeepgramKey(cfg *config.Config) Result {
	const name = "Deepgram API key"
	if strings.TrimSpace(cfg.Deepgram.APIKey) == "" {
		return Result{Name: name, Detail: "missing (set deepgram.api_key or DEEPGRAM_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
// Subtitles are written next to media, so write failures surface per file.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, fmt.Sprintf(format, args...))}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: %v", err)
	case !info.IsDir():
		return fail("is not a directory")
	}
	if err := unix.Access(path, mode); err != nil {
		return fail("insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckSystemDeps evaluates the external binaries captioner shells out to.
// FFprobe is optional: without it durations come from Deepgram metadata.
func CheckSystemDeps(cfg *config.Config) []deps.Check {
	return deps.Lookup(
		deps.Binary{Name: "FFmpeg", Command: deps.ResolveFFmpegPath(cfg.FFmpegBinary())},
		deps.Binary{Name: "FFprobe", Command: deps.ResolveFFprobePath(cfg.FFmpegBinary(), cfg.FFprobeBinary()), Optional: true},
	)
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
