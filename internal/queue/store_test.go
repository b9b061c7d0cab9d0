package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/testsupport"
)

type kindError struct{ kind string }

func (e kindError) Error() string     { return "classified failure" }
func (e kindError) ErrorKind() string { return e.kind }

func newBatch(t *testing.T, store *queue.Store, id string, paths ...string) *queue.Batch {
	t.Helper()
	batch, err := store.CreateBatch(context.Background(), queue.NewBatch{
		ID:          id,
		SubmittedBy: "ops@example.com",
		Model:       "nova-3",
		Language:    "en",
		Paths:       paths,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	return batch
}

func TestCreateBatchRecordsFilesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batch := newBatch(t, store, "b1", "/m/c.mkv", "/m/a.mkv", "/m/b.mkv")
	if batch.Status != queue.BatchPending || batch.Total != 3 || batch.SubmittedBy != "ops@example.com" {
		t.Fatalf("unexpected batch %+v", batch)
	}

	snap, err := store.Snapshot(ctx, "b1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := []string{"/m/c.mkv", "/m/a.mkv", "/m/b.mkv"}
	for i, f := range snap.Files {
		if f.Path != want[i] || f.Position != i || f.State != queue.FileQueued {
			t.Fatalf("file %d = %+v", i, f)
		}
	}
	if snap.Counts.Queued != 3 || snap.Counts.Total != 3 {
		t.Fatalf("unexpected counts %+v", snap.Counts)
	}

	if _, err := store.CreateBatch(ctx, queue.NewBatch{ID: "b1"}); err == nil {
		t.Fatal("expected duplicate batch id to fail")
	}
	if _, err := store.GetBatch(ctx, "missing"); !errors.Is(err, queue.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestFileStateMachine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	newBatch(t, store, "b2", "/m/one.mkv", "/m/two.mkv", "/m/three.mkv")

	if err := store.MarkBatchRunning(ctx, "b2"); err != nil {
		t.Fatal(err)
	}
	for _, state := range []queue.FileState{queue.FileExtracting, queue.FileTranscribing, queue.FileWriting} {
		if err := store.SetFileState(ctx, "b2", 0, state); err != nil {
			t.Fatalf("SetFileState(%s): %v", state, err)
		}
	}
	started := time.Now().Add(-time.Minute)
	if err := store.CompleteFile(ctx, "b2", 0, queue.FileResult{
		State:           queue.FileDone,
		OutputsJSON:     `{"srt":"/m/one.eng.srt"}`,
		DurationMinutes: 21.5,
		StartedAt:       started,
		FinishedAt:      time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.FailFile(ctx, "b2", 1, fmt.Errorf("wrap: %w", kindError{kind: "NoSpeechDetected"})); err != nil {
		t.Fatal(err)
	}
	if err := store.SetFileState(ctx, "b2", 2, queue.FileDone); err == nil {
		t.Fatal("terminal state must go through CompleteFile")
	}

	// A late progress update never resurrects a finished file.
	if err := store.SetFileState(ctx, "b2", 0, queue.FileWriting); err != nil {
		t.Fatal(err)
	}

	files, err := store.Files(ctx, "b2")
	if err != nil {
		t.Fatal(err)
	}
	if files[0].State != queue.FileDone || files[0].DurationMinutes != 21.5 || files[0].StartedAt == nil || files[0].FinishedAt == nil {
		t.Fatalf("unexpected done file %+v", files[0])
	}
	if files[1].State != queue.FileError || files[1].ErrorKind != "NoSpeechDetected" || files[1].ErrorMessage != "wrap: classified failure" {
		t.Fatalf("unexpected failed file %+v", files[1])
	}

	batch, err := store.GetBatch(ctx, "b2")
	if err != nil || batch.Status != queue.BatchRunning {
		t.Fatalf("expected running batch, got %+v %v", batch, err)
	}
}

func TestCancelQueuedLeavesStartedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	newBatch(t, store, "b3", "/m/1.mkv", "/m/2.mkv", "/m/3.mkv")

	if err := store.SetFileState(ctx, "b3", 0, queue.FileTranscribing); err != nil {
		t.Fatal(err)
	}
	n, err := store.CancelQueued(ctx, "b3")
	if err != nil || n != 2 {
		t.Fatalf("CancelQueued = %d, %v", n, err)
	}
	files, _ := store.Files(ctx, "b3")
	if files[0].State != queue.FileTranscribing {
		t.Fatalf("running file touched: %+v", files[0])
	}
	for _, f := range files[1:] {
		if f.State != queue.FileError || f.ErrorMessage != queue.CancelledMessage || f.ErrorKind != services.KindCancelled {
			t.Fatalf("unexpected cancelled file %+v", f)
		}
	}
}

func TestFinishListAndPurge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	newBatch(t, store, "old", "/m/a.mkv")
	newBatch(t, store, "new", "/m/b.mkv")

	if err := store.FinishBatch(ctx, "old", queue.BatchDone, `{"processed":1}`, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishBatch(ctx, "new", queue.BatchRunning, "", time.Now()); err == nil {
		t.Fatal("expected non-terminal finish to fail")
	}
	if err := store.FinishBatch(ctx, "ghost", queue.BatchDone, "", time.Now()); !errors.Is(err, queue.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}

	batches, err := store.ListBatches(ctx, 0)
	if err != nil || len(batches) != 2 {
		t.Fatalf("ListBatches = %v, %v", batches, err)
	}
	old, _ := store.GetBatch(ctx, "old")
	if old.SummaryJSON != `{"processed":1}` || old.FinishedAt == nil {
		t.Fatalf("unexpected finished batch %+v", old)
	}

	removed, err := store.PurgeFinished(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("PurgeFinished = %d, %v", removed, err)
	}
	if files, _ := store.Files(ctx, "old"); len(files) != 0 {
		t.Fatalf("purged batch files remain: %v", files)
	}
	if _, err := store.GetBatch(ctx, "new"); err != nil {
		t.Fatalf("unfinished batch purged: %v", err)
	}
}

func TestMarkInterruptedClosesOpenBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	newBatch(t, store, "live", "/m/a.mkv", "/m/b.mkv")
	newBatch(t, store, "closed", "/m/c.mkv")
	_ = store.MarkBatchRunning(ctx, "live")
	_ = store.CompleteFile(ctx, "live", 0, queue.FileResult{State: queue.FileSkipped})
	_ = store.FinishBatch(ctx, "closed", queue.BatchDone, "", time.Now())

	n, err := store.MarkInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MarkInterrupted = %d, %v", n, err)
	}
	snap, err := store.Snapshot(ctx, "live")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Batch.Status != queue.BatchCancelled {
		t.Fatalf("batch status = %s", snap.Batch.Status)
	}
	if snap.Files[0].State != queue.FileSkipped || snap.Files[1].ErrorMessage != queue.InterruptedMessage {
		t.Fatalf("unexpected files %+v", snap.Files)
	}
	closed, _ := store.Snapshot(ctx, "closed")
	if closed.Files[0].State != queue.FileQueued {
		t.Fatal("finished batch files must not change")
	}
}

func TestReopenAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	newBatch(t, store, "persisted", "/m/a.mkv")
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	health, err := reopened.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Batches != 1 || health.Files != 1 {
		t.Fatalf("unexpected counts %+v", health)
	}
}

func TestFailureKindFallsBackToSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{kindError{kind: "OutputWriteFailed"}, "OutputWriteFailed"},
		{services.Wrap(services.ErrAudioExtraction, "extract", "ffmpeg", "exit 1", nil), services.KindAudioExtraction},
		{errors.New("plain"), services.KindUnknown},
	}
	for _, tc := range tests {
		if got := queue.FailureKind(tc.err); got != tc.want {
			t.Errorf("FailureKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
