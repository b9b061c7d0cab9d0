package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("MEDIA_ROOT", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "captioner", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Deepgram.APIKey != "dg-key" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.Deepgram.APIKey)
	}
	wantLogs := filepath.Join(tempHome, ".local", "share", "captioner", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.MediaRoot != "/media" {
		t.Fatalf("unexpected media root %q", cfg.Paths.MediaRoot)
	}
	if cfg.Workers.Concurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.Workers.Concurrency)
	}
	if cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.Language != "en" {
		t.Fatalf("unexpected deepgram defaults %q/%q", cfg.Deepgram.Model, cfg.Deepgram.Language)
	}
	if !cfg.Transcripts.Enabled {
		t.Fatal("expected transcripts enabled by default")
	}
	if cfg.BazarrConfigured() {
		t.Fatal("expected bazarr unconfigured by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadMissingDeepgramKeyIsCredentialError(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without deepgram key")
	}
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Fatalf("expected env hint in error, got %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("MEDIA_ROOT", "/from-env")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "captioner.toml")
	body := `
[paths]
media_root = "` + filepath.ToSlash(filepath.Join(dir, "media")) + `"
log_dir = "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `"

[deepgram]
api_key = "file-key"
model = "NOVA-2"
profanity_filter = "Remove"

[deepgram.pricing]
nova-2 = 0.02

[bazarr]
base_url = "http://bazarr:6767/"
api_key = "bz"

[workers]
concurrency = 2
batch_size = 10

[web]
allowed_emails = ["Alice@Example.com", "alice@example.com", " bob@example.com "]
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.MediaRoot != filepath.Join(dir, "media") {
		t.Fatalf("expected file media root to win over env, got %q", cfg.Paths.MediaRoot)
	}
	if cfg.Deepgram.Model != "nova-2" {
		t.Fatalf("expected model lower-cased, got %q", cfg.Deepgram.Model)
	}
	if cfg.Deepgram.ProfanityFilter != config.ProfanityRemove {
		t.Fatalf("unexpected profanity filter %q", cfg.Deepgram.ProfanityFilter)
	}
	if got := cfg.PricePerMinute("nova-2"); got != 0.02 {
		t.Fatalf("expected overridden nova-2 price, got %v", got)
	}
	if got := cfg.PricePerMinute("enhanced"); got != 0.0181 {
		t.Fatalf("expected default enhanced price, got %v", got)
	}
	if cfg.Bazarr.BaseURL != "http://bazarr:6767" || !cfg.BazarrConfigured() {
		t.Fatalf("unexpected bazarr config %+v", cfg.Bazarr)
	}
	if cfg.Workers.Concurrency != 2 || cfg.Workers.BatchSize != 10 {
		t.Fatalf("unexpected workers %+v", cfg.Workers)
	}
	if len(cfg.Web.AllowedEmails) != 2 || cfg.Web.AllowedEmails[0] != "alice@example.com" {
		t.Fatalf("expected deduplicated lower-case allowlist, got %v", cfg.Web.AllowedEmails)
	}
	if !cfg.EmailAllowed("BOB@example.com") || cfg.EmailAllowed("eve@example.com") {
		t.Fatal("allowlist check mismatch")
	}
}

func TestPriceEnvOverrideAndFallback(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "k")
	t.Setenv("PRICE_NOVA_3", "0.01")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.PricePerMinute("nova-3"); got != 0.01 {
		t.Fatalf("expected env override, got %v", got)
	}
	if got := cfg.PricePerMinute("whisper-large"); got != 0.0043 {
		t.Fatalf("expected fallback price, got %v", got)
	}

	t.Setenv("PRICE_NOVA_3", "cheap")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected invalid price env to fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"model", func(c *config.Config) { c.Deepgram.Model = "whisper" }, "deepgram.model"},
		{"profanity", func(c *config.Config) { c.Deepgram.ProfanityFilter = "mask" }, "profanity_filter"},
		{"language", func(c *config.Config) { c.Deepgram.Language = "not a language" }, "deepgram.language"},
		{"bazarr half", func(c *config.Config) { c.Bazarr.BaseURL = "http://x" }, "bazarr"},
		{"concurrency", func(c *config.Config) { c.Workers.Concurrency = 0 }, "workers.concurrency"},
		{"batch size", func(c *config.Config) { c.Workers.BatchSize = -1 }, "workers.batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Deepgram.APIKey = "k"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "k")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Web.ScanLimit != 500 || cfg.Deepgram.Model != "nova-3" {
		t.Fatalf("sample drifted from defaults: scan_limit=%d model=%q", cfg.Web.ScanLimit, cfg.Deepgram.Model)
	}
}
