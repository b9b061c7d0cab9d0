package queue

import (
	"context"
	"fmt"

	"captioner/internal/services"
)

// Files returns the file rows of a batch in submission order.
func (s *Store) Files(ctx context.Context, batchID string) ([]File, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+fileColumns+` FROM batch_files WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// SetFileState records a non-terminal progress transition. The first
// transition out of queued stamps started_at. Files already in a terminal
// state are not moved.
func (s *Store) SetFileState(ctx context.Context, batchID string, position int, state FileState) error {
	if state.Terminal() {
		return fmt.Errorf("set file state: use CompleteFile for terminal state %q", state)
	}
	now := nowString()
	_, err := s.execWithRetry(ctx,
		`UPDATE batch_files
         SET state = ?, updated_at = ?,
             started_at = CASE WHEN started_at IS NULL AND ? != ? THEN ? ELSE started_at END
         WHERE batch_id = ? AND position = ? AND state NOT IN (?, ?, ?)`,
		state, now,
		state, FileQueued, now,
		batchID, position,
		FileDone, FileSkipped, FileError,
	)
	if err != nil {
		return fmt.Errorf("set file state: %w", err)
	}
	return nil
}

// CompleteFile records the terminal outcome of one file.
func (s *Store) CompleteFile(ctx context.Context, batchID string, position int, result FileResult) error {
	if !result.State.Terminal() {
		return fmt.Errorf("complete file: %q is not a terminal state", result.State)
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE batch_files
         SET state = ?, error_message = ?, error_kind = ?, outputs_json = ?, duration_minutes = ?,
             started_at = COALESCE(?, started_at), finished_at = ?, updated_at = ?
         WHERE batch_id = ? AND position = ?`,
		result.State,
		nullableString(result.ErrorMessage),
		nullableString(result.ErrorKind),
		nullableString(result.OutputsJSON),
		result.DurationMinutes,
		nullableTime(result.StartedAt),
		nullableTime(result.FinishedAt),
		nowString(),
		batchID, position,
	)
	if err != nil {
		return fmt.Errorf("complete file: %w", err)
	}
	return nil
}

// FailFile records err as the terminal error of one file, classifying it
// through FailureKind.
func (s *Store) FailFile(ctx context.Context, batchID string, position int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return s.CompleteFile(ctx, batchID, position, FileResult{
		State:        FileError,
		ErrorMessage: message,
		ErrorKind:    FailureKind(err),
	})
}

// CancelQueued marks every still-queued file of a batch as a cancelled error
// and returns how many were changed. Files already started are untouched.
func (s *Store) CancelQueued(ctx context.Context, batchID string) (int64, error) {
	now := nowString()
	res, err := s.execWithRetry(ctx,
		`UPDATE batch_files
         SET state = ?, error_message = ?, error_kind = ?, finished_at = ?, updated_at = ?
         WHERE batch_id = ? AND state = ?`,
		FileError, CancelledMessage, services.KindCancelled, now, now,
		batchID, FileQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel queued files: %w", err)
	}
	return res.RowsAffected()
}
