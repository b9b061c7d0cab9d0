package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/job"
	"captioner/internal/joblog"
	"captioner/internal/keyterms"
	"captioner/internal/media"
	"captioner/internal/paths"
	"captioner/internal/pipeline"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/services/deepgram"
	"captioner/internal/testsupport"
)

const speechBody = `{
  "metadata": {"request_id": "req-1", "duration": 95.0, "channels": 1},
  "results": {
    "channels": [{"alternatives": [{
      "transcript": "Where is the money? In the barrel.",
      "words": [
        {"word": "where", "punctuated_word": "Where", "start": 0.5, "end": 0.7, "confidence": 0.99, "speaker": 0},
        {"word": "is", "punctuated_word": "is", "start": 0.7, "end": 0.8, "confidence": 0.99, "speaker": 0},
        {"word": "the", "punctuated_word": "the", "start": 0.8, "end": 0.9, "confidence": 0.99, "speaker": 0},
        {"word": "money", "punctuated_word": "money?", "start": 0.9, "end": 1.3, "confidence": 0.99, "speaker": 0},
        {"word": "in", "punctuated_word": "In", "start": 2.0, "end": 2.1, "confidence": 0.98, "speaker": 1},
        {"word": "the", "punctuated_word": "the", "start": 2.1, "end": 2.2, "confidence": 0.98, "speaker": 1},
        {"word": "barrel", "punctuated_word": "barrel.", "start": 2.2, "end": 2.6, "confidence": 0.98, "speaker": 1}
      ]
    }]}]
  }
}`

const invertedBody = `{"metadata": {"duration": 30.0}, "results": {"channels": [{"alternatives": [{
  "transcript": "Backwards.",
  "words": [{"word": "backwards", "punctuated_word": "Backwards.", "start": 5.0, "end": 2.0, "confidence": 0.9}]
}]}]}}`

const frenchBody = `{"metadata": {"duration": 12.0}, "results": {"channels": [{"detected_language": "fr", "alternatives": [{
  "transcript": "Bonjour.",
  "words": [{"word": "bonjour", "punctuated_word": "Bonjour.", "start": 0.4, "end": 0.9, "confidence": 0.97}]
}]}]}}`

const silentBody = `{"metadata": {"duration": 30.0}, "results": {"channels": [{"alternatives": [{"transcript": "", "words": []}]}]}}`

type fakeExtractor struct {
	mu    sync.Mutex
	err   error
	dests []string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dests = append(f.dests, dest)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("ID3 fake audio"), 0o644)
}

type fakeTranscriber struct {
	mu       sync.Mutex
	body     string
	err      error
	calls    int
	lastOpts deepgram.Options
	sawAudio bool
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string, opts deepgram.Options) (deepgram.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOpts = opts
	if _, err := os.Stat(audioPath); err == nil {
		f.sawAudio = true
	}
	if f.err != nil {
		return deepgram.Response{}, f.err
	}
	return deepgram.Parse([]byte(f.body))
}

type fakeProber struct{ duration time.Duration }

func (p fakeProber) Duration(context.Context, string) (time.Duration, error) {
	return p.duration, nil
}

type harness struct {
	cfg         *config.Config
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	runner      *pipeline.Runner
}

func newHarness(t *testing.T, body string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:         cfg,
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{body: body},
	}
	h.runner = pipeline.NewRunner(cfg, pipeline.Dependencies{
		Extractor:   h.extractor,
		Prober:      fakeProber{duration: 10 * time.Minute},
		Transcriber: h.transcriber,
		JobLog:      joblog.NewWriter(cfg.Paths.LogDir),
	})
	return h
}

func (h *harness) spec(t *testing.T, path string) job.Spec {
	t.Helper()
	file, err := media.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return job.NewSpec(file, h.cfg)
}

func recordStates() (*[]queue.FileState, pipeline.ProgressFunc) {
	var states []queue.FileState
	return &states, func(s queue.FileState) { states = append(states, s) }
}

func assertTempEmpty(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp audio leaked: %v", entries)
	}
}

func TestRunOneWritesAllOutputs(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Breaking Bad/Season 01/Breaking Bad - S01E01 - Pilot.mkv")
	testsupport.WriteText(t, paths.SyncedMarkerPath(path), "synced")
	speakerMap := filepath.Join(h.cfg.Paths.MediaRoot, "Breaking Bad", "Transcripts", "Speakermap", "speakers.csv")
	testsupport.WriteText(t, speakerMap, "speaker_id,name\n0,Walter\n1,Jesse\n")

	spec := h.spec(t, path)
	spec.SaveRawJSON = true
	spec.Options.Keyterms = []string{"Heisenberg", "Los Pollos Hermanos"}

	states, progress := recordStates()
	ctx := services.WithBatchID(context.Background(), "batch-42")
	result := h.runner.RunOne(ctx, spec, progress)

	if result.Status != job.StatusOK {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	want := []queue.FileState{queue.FileExtracting, queue.FileTranscribing, queue.FileWriting, queue.FileDone}
	if !slices.Equal(*states, want) {
		t.Fatalf("progress = %v, want %v", *states, want)
	}

	srt := testsupport.ReadText(t, paths.SubtitlePath(path))
	if !strings.HasPrefix(srt, "1\n00:00:00,500 --> 00:00:02,600\nWhere is the money? In the barrel.\n") {
		t.Fatalf("unexpected srt:\n%s", srt)
	}
	if _, err := os.Stat(paths.SyncedMarkerPath(path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("sync marker should be deleted")
	}

	transcriptPath := filepath.Join(h.cfg.Paths.MediaRoot, "Breaking Bad", "Transcripts", "Breaking Bad - S01E01 - Pilot.transcript.speakers.txt")
	if result.Outputs.Transcript != transcriptPath {
		t.Fatalf("transcript path = %s", result.Outputs.Transcript)
	}
	if got := testsupport.ReadText(t, transcriptPath); got != "Walter: Where is the money?\n\nJesse: In the barrel.\n" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if !strings.Contains(testsupport.ReadText(t, result.Outputs.RawJSON), `"request_id": "req-1"`) {
		t.Fatal("raw json not written")
	}

	saved, err := keyterms.Load(result.Outputs.Keyterms)
	if err != nil || !slices.Equal(saved, spec.Options.Keyterms) {
		t.Fatalf("keyterms saved = %v, %v", saved, err)
	}
	if !slices.Equal(h.transcriber.lastOpts.Keyterms, spec.Options.Keyterms) || h.transcriber.lastOpts.Model != "nova-3" {
		t.Fatalf("unexpected request options %+v", h.transcriber.lastOpts)
	}
	if !h.transcriber.sawAudio {
		t.Fatal("transcriber should receive the extracted audio")
	}

	if result.DurationMinutes != 10 || result.MediaDuration != 10*time.Minute {
		t.Fatalf("duration = %v", result.DurationMinutes)
	}
	if diff := result.Cost - 0.043; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost = %v", result.Cost)
	}
	assertTempEmpty(t, h.cfg)

	records, _, err := joblog.ReadAll(h.cfg.Paths.LogDir)
	if err != nil || len(records) != 1 {
		t.Fatalf("job log records = %v, %v", records, err)
	}
	if records[0].Status != job.StatusOK || records[0].BatchID != "batch-42" || records[0].Video != path {
		t.Fatalf("unexpected job log %+v", records[0])
	}
}

func TestRunOneIsIdempotentWithoutForce(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Movies/Heat (1995)/Heat (1995).mkv")
	spec := h.spec(t, path)

	if first := h.runner.RunOne(context.Background(), spec, nil); first.Status != job.StatusOK {
		t.Fatalf("first run: %s %s", first.Status, first.Error)
	}
	info, err := os.Stat(paths.SubtitlePath(path))
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(paths.SubtitlePath(path), old, old); err != nil {
		t.Fatal(err)
	}

	states, progress := recordStates()
	second := h.runner.RunOne(context.Background(), spec, progress)
	if second.Status != job.StatusSkipped {
		t.Fatalf("second run status = %s", second.Status)
	}
	if !slices.Equal(*states, []queue.FileState{queue.FileSkipped}) {
		t.Fatalf("progress = %v", *states)
	}
	after, err := os.Stat(paths.SubtitlePath(path))
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(old) || after.Size() != info.Size() {
		t.Fatal("skipped run touched the subtitle")
	}
	if h.transcriber.calls != 1 {
		t.Fatalf("transcriber calls = %d", h.transcriber.calls)
	}
}

func TestRunOneForceRegenerates(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Movies/Heat (1995)/Heat (1995).mkv")
	testsupport.WriteText(t, paths.SubtitlePath(path), "1\n00:00:00,000 --> 00:00:01,000\nstale\n")
	testsupport.WriteText(t, paths.TranscriptPath(path), "Speaker 0: stale\n")

	spec := h.spec(t, path)
	if got := h.runner.RunOne(context.Background(), spec, nil); got.Status != job.StatusSkipped {
		t.Fatalf("expected skip without force, got %s", got.Status)
	}

	spec.Force = true
	if got := h.runner.RunOne(context.Background(), spec, nil); got.Status != job.StatusOK {
		t.Fatalf("forced run: %s %s", got.Status, got.Error)
	}
	if srt := testsupport.ReadText(t, paths.SubtitlePath(path)); strings.Contains(srt, "stale") {
		t.Fatal("forced run kept stale subtitle")
	}
}

func TestRunOneTranscriptionFailureCleansUp(t *testing.T) {
	h := newHarness(t, "")
	h.transcriber.err = services.Wrap(services.ErrTranscription, "transcribing", "deepgram", "status 500", nil)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Show/Season 02/Show - S02E03.mkv")

	states, progress := recordStates()
	result := h.runner.RunOne(context.Background(), h.spec(t, path), progress)
	if result.Status != job.StatusError || result.ErrorKind != services.KindTranscription {
		t.Fatalf("unexpected result %+v", result)
	}
	if (*states)[len(*states)-1] != queue.FileError {
		t.Fatalf("progress = %v", *states)
	}
	if len(h.extractor.dests) != 1 {
		t.Fatalf("extractor calls = %d", len(h.extractor.dests))
	}
	if _, err := os.Stat(h.extractor.dests[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp audio %s not removed", h.extractor.dests[0])
	}
	assertTempEmpty(t, h.cfg)
	if _, err := os.Stat(paths.SubtitlePath(path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("no subtitle should be written on failure")
	}
}

func TestRunOneFailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		extractErr error
		transErr   error
		wantKind   string
	}{
		{name: "no speech", body: silentBody, wantKind: services.KindNoSpeech},
		{name: "malformed", body: `{"metadata": {}}`, wantKind: services.KindMalformedResponse},
		{name: "cue ends before it starts", body: invertedBody, wantKind: services.KindMalformedResponse},
		{name: "extraction", extractErr: services.Wrap(services.ErrAudioExtraction, "extracting", "ffmpeg", "exit 1", nil), wantKind: services.KindAudioExtraction},
		{name: "unclassified transcription", transErr: errors.New("socket closed"), wantKind: services.KindTranscription},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.body)
			h.extractor.err = tc.extractErr
			h.transcriber.err = tc.transErr
			path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Movies/Ran (1985)/Ran (1985).mkv")

			result := h.runner.RunOne(context.Background(), h.spec(t, path), nil)
			if result.Status != job.StatusError || result.ErrorKind != tc.wantKind {
				t.Fatalf("result = %s/%s (%s), want kind %s", result.Status, result.ErrorKind, result.Error, tc.wantKind)
			}
			if _, err := os.Stat(paths.SubtitlePath(path)); err == nil {
				t.Fatal("no subtitle should be written on failure")
			}
			if tc.extractErr != nil && h.transcriber.calls != 0 {
				t.Fatal("transcriber must not run after extraction failure")
			}
			assertTempEmpty(t, h.cfg)
		})
	}
}

func TestRunOneOutputWriteFailure(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Movies/Alien (1979)/Alien (1979).mkv")
	// A directory where the subtitle belongs makes the rename fail.
	if err := os.MkdirAll(filepath.Join(paths.SubtitlePath(path), "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}
	spec := h.spec(t, path)
	spec.Transcript = false

	result := h.runner.RunOne(context.Background(), spec, nil)
	if result.Status != job.StatusError || result.ErrorKind != services.KindOutputWrite {
		t.Fatalf("result = %+v", result)
	}
	assertTempEmpty(t, h.cfg)
}

func TestRunOneAutoLoadsKeyterms(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Twin Peaks/Season 01/Twin Peaks - S01E01.mkv")
	if _, err := keyterms.SaveForMedia(context.Background(), path, []string{"Laura Palmer", "Dale Cooper"}); err != nil {
		t.Fatal(err)
	}

	result := h.runner.RunOne(context.Background(), h.spec(t, path), nil)
	if result.Status != job.StatusOK {
		t.Fatalf("status = %s %s", result.Status, result.Error)
	}
	if !slices.Equal(h.transcriber.lastOpts.Keyterms, []string{"Laura Palmer", "Dale Cooper"}) {
		t.Fatalf("keyterms = %v", h.transcriber.lastOpts.Keyterms)
	}
	if result.Outputs.Keyterms != "" {
		t.Fatal("auto-loaded keyterms should not be rewritten")
	}
}

func TestRunOneCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, speechBody)
	path := testsupport.MediaFile(t, h.cfg.Paths.MediaRoot, "Movies/Up (2009)/Up (2009).mkv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.runner.RunOne(ctx, h.spec(t, path), nil)
	if result.Status != job.StatusError || result.ErrorKind != services.KindCancelled {
		t.Fatalf("result = %+v", result)
	}
	if len(h.extractor.dests) != 0 {
		t.Fatal("cancelled unit must not start extraction")
	}
}

func TestErrorClassifiesForStore(t *testing.T) {
	var _ queue.ErrorClassifier = (*pipeline.Error)(nil)

	err := fmt.Errorf("batch b1: %w", &pipeline.Error{
		Kind:  services.KindNoSpeech,
		Stage: pipeline.StageTranscribe,
		Err:   services.ErrNoSpeech,
	})
	if got := queue.FailureKind(err); got != services.KindNoSpeech {
		t.Fatalf("FailureKind = %q", got)
	}
	if !errors.Is(err, services.ErrNoSpeech) {
		t.Fatal("pipeline errors must unwrap to their cause")
	}
	if !strings.HasPrefix(err.Error(), "batch b1: transcribing: no speech detected") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRunOneLogsDetectedLanguage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Deepgram.DetectLanguage = true
	var logs bytes.Buffer
	runner := pipeline.NewRunner(cfg, pipeline.Dependencies{
		Extractor:   &fakeExtractor{},
		Prober:      fakeProber{duration: time.Minute},
		Transcriber: &fakeTranscriber{body: frenchBody},
		Logger:      slog.New(slog.NewTextHandler(&logs, nil)),
	})
	path := testsupport.MediaFile(t, cfg.Paths.MediaRoot, "Movies/Amélie (2001)/Amélie (2001).mkv")
	file, err := media.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}

	result := runner.RunOne(context.Background(), job.NewSpec(file, cfg), nil)
	if result.Status != job.StatusOK {
		t.Fatalf("result = %+v", result)
	}
	out := logs.String()
	if !strings.Contains(out, "event_type=language_detected") || !strings.Contains(out, "language=fr") {
		t.Fatalf("detected language not logged:\n%s", out)
	}
}
