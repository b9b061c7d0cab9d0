package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nmedia_root = \"/media\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := run(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for config without a Deepgram key")
	}
	if !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Fatalf("unexpected error: %v", err)
	}
}
