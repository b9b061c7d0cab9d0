package queue

import (
	"strings"
	"time"
)

// BatchStatus is the aggregate lifecycle of a batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchDone      BatchStatus = "done"
	BatchCancelled BatchStatus = "cancelled"
)

// Terminal reports whether the batch has finished.
func (s BatchStatus) Terminal() bool {
	return s == BatchDone || s == BatchCancelled
}

// FileState is the per-file progress state.
type FileState string

const (
	FileQueued       FileState = "queued"
	FileExtracting   FileState = "extracting"
	FileTranscribing FileState = "transcribing"
	FileWriting      FileState = "writing"
	FileDone         FileState = "done"
	FileSkipped      FileState = "skipped"
	FileError        FileState = "error"
)

var allFileStates = []FileState{
	FileQueued,
	FileExtracting,
	FileTranscribing,
	FileWriting,
	FileDone,
	FileSkipped,
	FileError,
}

// Terminal reports whether no further transitions are expected.
func (s FileState) Terminal() bool {
	return s == FileDone || s == FileSkipped || s == FileError
}

// Active reports whether a worker is currently handling the file.
func (s FileState) Active() bool {
	return s == FileExtracting || s == FileTranscribing || s == FileWriting
}

// ParseFileState converts a string into a known FileState.
func ParseFileState(value string) (FileState, bool) {
	normalized := FileState(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allFileStates {
		if state == normalized {
			return state, true
		}
	}
	return "", false
}

// CancelledMessage is the terminal error recorded for files that never
// started because their batch was cancelled.
const CancelledMessage = "cancelled"

// InterruptedMessage is recorded for files left mid-flight when the process
// that owned their batch exited.
const InterruptedMessage = "interrupted"

// Batch is one submitted batch row.
type Batch struct {
	ID           string
	Status       BatchStatus
	SubmittedBy  string
	Model        string
	Language     string
	Total        int
	SummaryJSON  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// File is the progress row for one file of a batch.
type File struct {
	ID              int64
	BatchID         string
	Position        int
	Path            string
	State           FileState
	ErrorMessage    string
	ErrorKind       string
	OutputsJSON     string
	DurationMinutes float64
	StartedAt       *time.Time
	FinishedAt      *time.Time
	UpdatedAt       time.Time
}

// FileResult is the terminal record for one file.
type FileResult struct {
	State           FileState
	OutputsJSON     string
	ErrorMessage    string
	ErrorKind       string
	DurationMinutes float64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Counts tallies files per state.
type Counts struct {
	Total   int `json:"total"`
	Queued  int `json:"queued"`
	Active  int `json:"active"`
	Done    int `json:"done"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Finished returns how many files reached a terminal state.
func (c Counts) Finished() int {
	return c.Done + c.Skipped + c.Failed
}

// Snapshot is a batch with its files, as served to progress readers.
type Snapshot struct {
	Batch  Batch
	Files  []File
	Counts Counts
}

// CountFiles tallies files by state.
func CountFiles(files []File) Counts {
	counts := Counts{Total: len(files)}
	for _, f := range files {
		switch f.State {
		case FileQueued:
			counts.Queued++
		case FileDone:
			counts.Done++
		case FileSkipped:
			counts.Skipped++
		case FileError:
			counts.Failed++
		default:
			counts.Active++
		}
	}
	return counts
}

// DatabaseHealth captures diagnostic information about the progress database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	Batches          int
	Files            int
	Error            string
}
