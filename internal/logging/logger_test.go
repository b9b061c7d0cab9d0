package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
)

func tempLog(t *testing.T) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	return path, func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "captioner.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from config") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}

func TestConsoleLoggerFormatsSubjectAndFields(t *testing.T) {
	path, read := tempLog(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithBatchID(context.Background(), "0123456789abcdef")
	ctx = services.WithJobPath(ctx, "/media/TV/Show/Season 01/ep.mkv")
	ctx = services.WithStage(ctx, "transcribing")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline"))
	log.Info("transcription complete", logging.String("subtitle", "/media/ep.eng.srt"), logging.Float64("cost", 0.12))

	out := read()
	for _, fragment := range []string{"INFO [pipeline]", "Batch 01234567", "ep.mkv", "(transcribing)", "transcription complete", "    - subtitle: /media/ep.eng.srt", "    - cost: 0.12"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in console output %q", fragment, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	path, read := tempLog(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")
	if out := read(); !strings.Contains(out, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", out)
	}
}

func TestConsoleLoggerHidesOverflowFields(t *testing.T) {
	path, read := tempLog(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	attrs := make([]logging.Attr, 0, 10)
	for i := range 10 {
		attrs = append(attrs, logging.Int("f"+string(rune('a'+i)), i))
	}
	logger.Info("many", logging.Args(attrs...)...)
	if out := read(); !strings.Contains(out, "+ 2 more fields hidden") {
		t.Fatalf("expected overflow marker, got %q", out)
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	path, read := tempLog(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("disk slow", logging.String("path", "/tmp/x"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "disk slow" || entry["path"] != "/tmp/x" {
		t.Fatalf("unexpected entry %v", entry)
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("expected RFC3339 ts, got %q", ts)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path, read := tempLog(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "rescan failed", "bazarr_rescan_failed", logging.String(logging.FieldImpact, "indexer not refreshed"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "bazarr_rescan_failed" {
		t.Fatalf("expected event_type, got %v", entry)
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error_hint, got %v", entry)
	}
	if entry[logging.FieldImpact] != "indexer not refreshed" {
		t.Fatalf("expected caller impact to win, got %v", entry[logging.FieldImpact])
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	basePath, readBase := tempLog(t)
	base, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{basePath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	teePath := filepath.Join(t.TempDir(), "batch.log")
	handler, closer, err := logging.OpenFileHandler(teePath, "info")
	if err != nil {
		t.Fatalf("OpenFileHandler: %v", err)
	}
	defer closer.Close()

	logger := logging.TeeLogger(base, handler).With(logging.String("batch_id", "b1"))
	logger.Info("batch started")

	if !strings.Contains(readBase(), "batch started") {
		t.Fatal("expected base output")
	}
	data, err := os.ReadFile(teePath)
	if err != nil {
		t.Fatalf("read tee log: %v", err)
	}
	if !strings.Contains(string(data), `"batch_id":"b1"`) {
		t.Fatalf("expected batch attr in tee output, got %q", data)
	}
}
