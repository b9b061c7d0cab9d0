package queue

import (
	"database/sql"
	"errors"
	"time"
)

const batchColumns = "id, status, submitted_by, model, language, total, summary_json, error_message, created_at, updated_at, finished_at"

const fileColumns = "id, batch_id, position, path, state, error_message, error_kind, outputs_json, duration_minutes, started_at, finished_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanBatch(scanner rowScanner) (*Batch, error) {
	var (
		b           Batch
		status      string
		submittedBy sql.NullString
		model       sql.NullString
		language    sql.NullString
		summary     sql.NullString
		errMsg      sql.NullString
		createdRaw  string
		updatedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&b.ID,
		&status,
		&submittedBy,
		&model,
		&language,
		&b.Total,
		&summary,
		&errMsg,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	b.Status = BatchStatus(status)
	b.SubmittedBy = submittedBy.String
	b.Model = model.String
	b.Language = language.String
	b.SummaryJSON = summary.String
	b.ErrorMessage = errMsg.String
	if created, err := parseTimeString(createdRaw); err == nil {
		b.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		b.UpdatedAt = updated
	}
	b.FinishedAt = parseNullableTime(finishedRaw)
	return &b, nil
}

func scanFile(scanner rowScanner) (*File, error) {
	var (
		f           File
		state       string
		errMsg      sql.NullString
		errKind     sql.NullString
		outputs     sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&f.ID,
		&f.BatchID,
		&f.Position,
		&f.Path,
		&state,
		&errMsg,
		&errKind,
		&outputs,
		&f.DurationMinutes,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	f.State = FileState(state)
	f.ErrorMessage = errMsg.String
	f.ErrorKind = errKind.String
	f.OutputsJSON = outputs.String
	f.StartedAt = parseNullableTime(startedRaw)
	f.FinishedAt = parseNullableTime(finishedRaw)
	if updated, err := parseTimeString(updatedRaw); err == nil {
		f.UpdatedAt = updated
	}
	return &f, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
