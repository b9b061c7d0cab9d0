package api

import (
	"encoding/json"
	"strings"
	"time"

	"captioner/internal/queue"
)

// FromBatch converts a batch row without its files.
func FromBatch(batch *queue.Batch) BatchView {
	if batch == nil {
		return BatchView{}
	}
	view := BatchView{
		ID:           batch.ID,
		Status:       string(batch.Status),
		SubmittedBy:  batch.SubmittedBy,
		Model:        batch.Model,
		Language:     batch.Language,
		ErrorMessage: batch.ErrorMessage,
		Counts:       Counts{Total: batch.Total},
		CreatedAt:    formatTime(batch.CreatedAt),
		UpdatedAt:    formatTime(batch.UpdatedAt),
		FinishedAt:   formatTimePtr(batch.FinishedAt),
	}
	if raw := strings.TrimSpace(batch.SummaryJSON); raw != "" && json.Valid([]byte(raw)) {
		view.Summary = json.RawMessage(raw)
	}
	return view
}

// FromSnapshot converts a batch with its per-file progress.
func FromSnapshot(snap *queue.Snapshot) BatchView {
	if snap == nil {
		return BatchView{}
	}
	view := FromBatch(&snap.Batch)
	view.Counts = FromCounts(snap.Counts)
	view.Files = make([]FileView, 0, len(snap.Files))
	for _, f := range snap.Files {
		view.Files = append(view.Files, FromFile(f))
	}
	return view
}

// FromFile converts one file row.
func FromFile(f queue.File) FileView {
	view := FileView{
		Position:        f.Position,
		Path:            f.Path,
		State:           string(f.State),
		ErrorMessage:    f.ErrorMessage,
		ErrorKind:       f.ErrorKind,
		DurationMinutes: f.DurationMinutes,
		StartedAt:       formatTimePtr(f.StartedAt),
		FinishedAt:      formatTimePtr(f.FinishedAt),
	}
	if raw := strings.TrimSpace(f.OutputsJSON); raw != "" && json.Valid([]byte(raw)) {
		view.Outputs = json.RawMessage(raw)
	}
	return view
}

// FromCounts converts store counts.
func FromCounts(c queue.Counts) Counts {
	return Counts{
		Total:    c.Total,
		Queued:   c.Queued,
		Active:   c.Active,
		Done:     c.Done,
		Skipped:  c.Skipped,
		Failed:   c.Failed,
		Finished: c.Finished(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
