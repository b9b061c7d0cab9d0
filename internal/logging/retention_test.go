package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"captioner/internal/logging"
)

func TestCleanupOldLogsRemovesOnlyExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "job_1.json")
	fresh := filepath.Join(dir, "job_2.json")
	other := filepath.Join(dir, "notes.txt")
	kept := filepath.Join(dir, "job_3.json")
	for _, path := range []string{old, fresh, other, kept} {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, other, kept} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{Dir: dir, Pattern: "job_*.json", Exclude: []string{kept}})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, path := range []string{fresh, other, kept} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	if removed := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: t.TempDir()}); removed != 0 {
		t.Fatalf("expected no removals, got %d", removed)
	}
}
