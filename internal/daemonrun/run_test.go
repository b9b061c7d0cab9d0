package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"captioner/internal/testsupport"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "captionerd-1.log")
	second := filepath.Join(dir, "captionerd-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logPointer))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "captionerd-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
	if err := ensureCurrentLogPointer("", second); err != nil {
		t.Fatalf("empty dir should be a no-op: %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), pidFile)
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
}

func TestNewCoordinatorBuildsProductionRunner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	coord, err := NewCoordinator(cfg, store, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if active := coord.Active(); len(active) != 0 {
		t.Fatalf("expected no active batches, got %v", active)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg, Options{LogLevel: "error", Bind: "127.0.0.1:0"})
	}()

	pidPath := filepath.Join(cfg.Paths.StateDir, pidFile)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon did not start: %v", <-errCh)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(cfg.Paths.LogDir, logPrefix+"*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one run log, got %v", matches)
	}
}
