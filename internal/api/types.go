package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileView is one file's progress row.
type FileView struct {
	Position        int             `json:"position"`
	Path            string          `json:"path"`
	State           string          `json:"state"`
	ErrorMessage    string          `json:"error,omitempty"`
	ErrorKind       string          `json:"error_kind,omitempty"`
	Outputs         json.RawMessage `json:"outputs,omitempty"`
	DurationMinutes float64         `json:"duration_minutes,omitempty"`
	StartedAt       string          `json:"started_at,omitempty"`
	FinishedAt      string          `json:"finished_at,omitempty"`
}

// Counts tallies a batch's files by state.
type Counts struct {
	Total    int `json:"total"`
	Queued   int `json:"queued"`
	Active   int `json:"active"`
	Done     int `json:"done"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Finished int `json:"finished"`
}

// BatchView describes a batch in a transport-friendly format.
type BatchView struct {
	ID           string          `json:"batch_id"`
	Status       string          `json:"status"`
	SubmittedBy  string          `json:"submitted_by,omitempty"`
	Model        string          `json:"model,omitempty"`
	Language     string          `json:"language,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	Counts       Counts          `json:"counts"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
	FinishedAt   string          `json:"finished_at,omitempty"`
	Files        []FileView      `json:"files,omitempty"`
}

// JobResponse is returned by GET /api/job/{id}.
type JobResponse struct {
	State string     `json:"state"`
	Data  *BatchView `json:"data"`
}

// BatchListResponse wraps a collection of batches.
type BatchListResponse struct {
	Batches []BatchView `json:"batches"`
}

// ConfigResponse is returned by GET /api/config.
type ConfigResponse struct {
	DefaultModel    string   `json:"default_model"`
	DefaultLanguage string   `json:"default_language"`
	Models          []string `json:"models"`
	MediaRoot       string   `json:"media_root"`
}

// ScanResponse is returned by GET /api/scan.
type ScanResponse struct {
	Count     int      `json:"count"`
	Files     []string `json:"files"`
	Truncated bool     `json:"truncated,omitempty"`
}

// SubmitRequest is the body of POST /api/submit.
type SubmitRequest struct {
	Model    string   `json:"model"`
	Language string   `json:"language"`
	Files    []string `json:"files"`
	Force    bool     `json:"force"`
	Keyterms []string `json:"keyterms,omitempty"`
}

// RejectedFile names a submitted path that was not enqueued.
type RejectedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SubmitResponse is returned by POST /api/submit.
type SubmitResponse struct {
	BatchID  string         `json:"batch_id"`
	Enqueued int            `json:"enqueued"`
	By       string         `json:"by"`
	Rejected []RejectedFile `json:"rejected,omitempty"`
}

// CancelResponse is returned by DELETE /api/job/{id}.
type CancelResponse struct {
	BatchID string `json:"batch_id"`
	State   string `json:"state"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
