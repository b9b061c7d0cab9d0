// Package stats accumulates per-batch counters and persists the run summary
// written to the log directory when a batch finalizes.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"captioner/internal/fileutil"
	"captioner/internal/job"
)

// FilePrefix and timeLayout name summary files deepgram_stats_YYYYMMDD_HHMMSS.json.
const (
	FilePrefix = "deepgram_stats_"
	timeLayout = "20060102_150405"
)

// Summary is the persisted run summary.
type Summary struct {
	Processed     int       `json:"processed"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	TotalMinutes  float64   `json:"total_minutes"`
	FailedFiles   []string  `json:"failed_files"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time,omitzero"`
	EstimatedCost float64   `json:"estimated_cost"`
	Model         string    `json:"model"`
	Language      string    `json:"language"`
}

// Total returns the number of recorded results.
func (s Summary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// Recorder accumulates job results for one batch. It is safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	summary       Summary
	ratePerMinute float64
}

// NewRecorder starts a recorder at start. ratePerMinute is the USD price of
// one transcribed minute for model.
func NewRecorder(model, language string, ratePerMinute float64, start time.Time) *Recorder {
	return &Recorder{
		summary: Summary{
			FailedFiles: []string{},
			StartTime:   start,
			Model:       model,
			Language:    language,
		},
		ratePerMinute: ratePerMinute,
	}
}

// Record folds one result into the counters. Only successful results add
// transcribed minutes.
func (r *Recorder) Record(result job.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch result.Status {
	case job.StatusOK:
		r.summary.Processed++
		r.summary.TotalMinutes += result.DurationMinutes
	case job.StatusSkipped:
		r.summary.Skipped++
	default:
		r.summary.Failed++
		r.summary.FailedFiles = append(r.summary.FailedFiles, result.Path)
	}
	r.summary.EstimatedCost = r.summary.TotalMinutes * r.ratePerMinute
}

// Snapshot returns a copy of the running totals.
func (r *Recorder) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

// Finish stamps the end time and returns the final summary.
func (r *Recorder) Finish(now time.Time) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.EndTime = now
	r.summary.EstimatedCost = r.summary.TotalMinutes * r.ratePerMinute
	return r.copyLocked()
}

func (r *Recorder) copyLocked() Summary {
	out := r.summary
	out.FailedFiles = slices.Clone(r.summary.FailedFiles)
	if out.FailedFiles == nil {
		out.FailedFiles = []string{}
	}
	return out
}

// Save writes the finished summary into dir and returns the file path. The
// filename carries the end time (or now when unfinished) at second
// resolution; same-second collisions overwrite.
func (r *Recorder) Save(dir string) (string, error) {
	summary := r.Snapshot()
	stamp := summary.EndTime
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return Write(dir, summary, stamp)
}

// Write persists summary into dir using stamp for the filename.
func Write(dir string, summary Summary, stamp time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create stats dir: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}
	path := filepath.Join(dir, FilePrefix+stamp.Format(timeLayout)+".json")
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write stats: %w", err)
	}
	return path, nil
}

// Load reads a saved summary.
func Load(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read stats: %w", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("decode stats %s: %w", filepath.Base(path), err)
	}
	return summary, nil
}

// List returns saved summary paths in dir, newest first.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, FilePrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	slices.Reverse(matches)
	return matches, nil
}
