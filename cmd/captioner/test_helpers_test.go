package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
	"captioner/internal/testsupport"
)

const deepgramBody = `{
  "metadata": {"request_id": "req-1", "duration": 95.0, "channels": 1},
  "results": {
    "channels": [{"alternatives": [{
      "transcript": "Where is the money? In the barrel.",
      "words": [
        {"word": "where", "punctuated_word": "Where", "start": 0.5, "end": 0.7, "confidence": 0.99, "speaker": 0},
        {"word": "money", "punctuated_word": "money?", "start": 0.9, "end": 1.3, "confidence": 0.99, "speaker": 0},
        {"word": "barrel", "punctuated_word": "barrel.", "start": 2.2, "end": 2.6, "confidence": 0.98, "speaker": 1}
      ]
    }]}]
  }
}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	deepgram   *httptest.Server
}

// setupCLITestEnv writes a config pointing at temp directories and a fake
// Deepgram server, and installs ffmpeg/ffprobe stubs on PATH.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	dg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(deepgramBody))
	}))
	t.Cleanup(dg.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithDeepgram(dg.URL))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("MEDIA_ROOT", "")

	binDir := filepath.Join(base, "bin")
	writeScript(t, filepath.Join(binDir, "ffmpeg"), "#!/bin/sh\nfor last; do :; done\nprintf 'audio' > \"$last\"\n")
	writeScript(t, filepath.Join(binDir, "ffprobe"), "#!/bin/sh\necho '{\"format\":{\"duration\":\"600.0\"}}'\n")
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, deepgram: dg}
}

func writeScript(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
media_root = %q
log_dir = %q
state_dir = %q
temp_dir = %q
api_bind = "127.0.0.1:0"

[deepgram]
api_key = %q
base_url = %q

[workers]
concurrency = 2
`,
		cfg.Paths.MediaRoot,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Paths.TempDir,
		cfg.Deepgram.APIKey,
		cfg.Deepgram.BaseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
