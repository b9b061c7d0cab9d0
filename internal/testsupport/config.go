package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"captioner/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a valid config whose paths all live under a fresh
// t.TempDir. The Deepgram key is "test". Media and temp directories are
// created; log and state directories are left to EnsureDirectories.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	b := &configBuilder{t: t, baseDir: t.TempDir(), cfg: &cfg}
	under := func(name string) string { return filepath.Join(b.baseDir, name) }

	cfg.Deepgram.APIKey = "test"
	cfg.Paths.MediaRoot = under("media")
	cfg.Paths.LogDir = under("logs")
	cfg.Paths.StateDir = under("state")
	cfg.Paths.TempDir = under("tmp")
	cfg.Paths.APIBind = "127.0.0.1:0"
	b.mkdir(cfg.Paths.MediaRoot)
	b.mkdir(cfg.Paths.TempDir)

	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

func (b *configBuilder) mkdir(dir string) {
	b.t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir %s: %v", dir, err)
	}
}

// WithDeepgram points the transcription client at baseURL.
func WithDeepgram(baseURL string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Deepgram.BaseURL = baseURL }
}

// WithBazarr enables the post-batch rescan against baseURL.
func WithBazarr(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bazarr.BaseURL = baseURL
		b.cfg.Bazarr.APIKey = apiKey
	}
}

func WithTranscripts(enabled bool) ConfigOption {
	return func(b *configBuilder) { b.cfg.Transcripts.Enabled = enabled }
}

func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) { b.cfg.Workers.Concurrency = n }
}

// WithAllowedEmails sets the web runner allowlist.
func WithAllowedEmails(emails ...string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Web.AllowedEmails = emails }
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and ffprobe
// by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		b.mkdir(binDir)
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp root NewConfig placed every path under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
