package stats_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"captioner/internal/job"
	"captioner/internal/stats"
)

func TestRecorderCountsAndCost(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := stats.NewRecorder("nova-3", "en", 0.0043, start)

	rec.Record(job.Result{Path: "/media/a.mkv", Status: job.StatusSkipped})
	rec.Record(job.Result{Path: "/media/b.mkv", Status: job.StatusError, DurationMinutes: 12})
	rec.Record(job.Result{Path: "/media/c.mkv", Status: job.StatusOK, DurationMinutes: 42.5})

	summary := rec.Finish(start.Add(3 * time.Minute))
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected counters %+v", summary)
	}
	if summary.Total() != 3 {
		t.Fatalf("total = %d", summary.Total())
	}
	if len(summary.FailedFiles) != 1 || summary.FailedFiles[0] != "/media/b.mkv" {
		t.Fatalf("failed files = %v", summary.FailedFiles)
	}
	if summary.TotalMinutes != 42.5 {
		t.Fatalf("failed results must not add minutes, got %v", summary.TotalMinutes)
	}
	if math.Abs(summary.EstimatedCost-0.18275) > 1e-9 {
		t.Fatalf("cost = %v", summary.EstimatedCost)
	}
}

func TestRecorderConcurrentRecords(t *testing.T) {
	rec := stats.NewRecorder("nova-3", "en", 0.01, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(job.Result{Status: job.StatusOK, DurationMinutes: 1})
		}()
	}
	wg.Wait()
	if got := rec.Snapshot(); got.Processed != 50 || got.TotalMinutes != 50 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	rec := stats.NewRecorder("nova-3", "en", 0.01, time.Now())
	rec.Record(job.Result{Path: "x", Status: job.StatusError})
	snap := rec.Snapshot()
	snap.FailedFiles[0] = "mutated"
	if rec.Snapshot().FailedFiles[0] != "x" {
		t.Fatal("snapshot shares backing storage with recorder")
	}
}

func TestSaveWritesTimestampedSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := stats.NewRecorder("nova-2", "es", 0.0125, start)
	rec.Record(job.Result{Path: "/m/ok.mkv", Status: job.StatusOK, DurationMinutes: 10})
	rec.Finish(time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC))

	path, err := rec.Save(dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "deepgram_stats_20260314_093015.json" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"processed", "skipped", "failed", "total_minutes", "failed_files", "start_time", "end_time", "estimated_cost", "model", "language"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("summary missing %q", key)
		}
	}
	if fields["model"] != "nova-2" || fields["language"] != "es" {
		t.Fatalf("unexpected model/language: %v", fields)
	}

	loaded, err := stats.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Processed != 1 || math.Abs(loaded.EstimatedCost-0.125) > 1e-9 {
		t.Fatalf("unexpected loaded summary %+v", loaded)
	}

	listed, err := stats.List(dir)
	if err != nil || len(listed) != 1 || listed[0] != path {
		t.Fatalf("List = %v, %v", listed, err)
	}
}
