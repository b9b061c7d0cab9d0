// Package joblog writes the durable per-job audit trail: one JSON document per
// unit of work, named job_<unix millis>.json, in the log directory. Records
// are never rewritten.
package joblog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"captioner/internal/job"
)

const (
	filePrefix = "job_"
	// Pattern matches job log filenames for globbing and retention.
	Pattern = filePrefix + "*.json"
)

// Record is the persisted shape of one job result.
type Record struct {
	Status          job.Status `json:"status"`
	Video           string     `json:"video"`
	Subtitle        string     `json:"srt"`
	Transcript      string     `json:"transcript,omitempty"`
	RawJSON         string     `json:"raw_json,omitempty"`
	Keyterms        string     `json:"keyterms,omitempty"`
	Error           string     `json:"error,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	BatchID         string     `json:"batch_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
	ProcessingTime  float64    `json:"processing_time_seconds"`
	VideoDuration   float64    `json:"video_duration_seconds,omitempty"`
	TimeMultiplier  float64    `json:"time_multiplier,omitempty"`
	DurationMinutes float64    `json:"duration_minutes,omitempty"`
	EstimatedCost   float64    `json:"estimated_cost,omitempty"`
}

// FromResult converts a job result into its log record.
func FromResult(batchID string, result job.Result) Record {
	rec := Record{
		Status:          result.Status,
		Video:           result.Path,
		Subtitle:        result.Outputs.Subtitle,
		Transcript:      result.Outputs.Transcript,
		RawJSON:         result.Outputs.RawJSON,
		Keyterms:        result.Outputs.Keyterms,
		Error:           result.Error,
		ErrorKind:       result.ErrorKind,
		BatchID:         batchID,
		StartedAt:       result.Started.UTC(),
		FinishedAt:      result.Finished.UTC(),
		ProcessingTime:  result.Elapsed().Seconds(),
		VideoDuration:   result.MediaDuration.Seconds(),
		TimeMultiplier:  result.ProcessingRatio,
		DurationMinutes: result.DurationMinutes,
		EstimatedCost:   result.Cost,
	}
	return rec
}

// Writer creates job log files in a directory. Filenames are unique per
// writer even when several jobs finish within the same millisecond.
type Writer struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write persists rec and returns the file path.
func (w *Writer) Write(rec Record) (string, error) {
	if w == nil || w.dir == "" {
		return "", errors.New("job log directory not configured")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create job log dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode job log: %w", err)
	}
	data = append(data, '\n')

	for attempt := 0; attempt < 100; attempt++ {
		path := filepath.Join(w.dir, fmt.Sprintf("%s%d.json", filePrefix, w.nextStamp()))
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create job log: %w", err)
		}
		if _, err := file.Write(data); err != nil {
			_ = file.Close()
			return "", fmt.Errorf("write job log: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("close job log: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("create job log: no free filename in %s", w.dir)
}

// WriteResult is shorthand for Write(FromResult(batchID, result)).
func (w *Writer) WriteResult(batchID string, result job.Result) (string, error) {
	return w.Write(FromResult(batchID, result))
}

func (w *Writer) nextStamp() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	stamp := w.now().UnixMilli()
	if stamp <= w.last {
		stamp = w.last + 1
	}
	w.last = stamp
	return stamp
}

// ReadAll loads every job record in dir. Unreadable files are returned in
// the skipped list rather than failing the whole read.
func ReadAll(dir string) ([]Record, []string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, nil, err
	}
	records := make([]Record, 0, len(matches))
	var skipped []string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, path)
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			skipped = append(skipped, path)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}
