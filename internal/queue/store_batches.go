package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewBatch describes a batch to record.
type NewBatch struct {
	ID          string
	SubmittedBy string
	Model       string
	Language    string
	Paths       []string
}

// CreateBatch inserts the batch row and one queued file row per path, in
// order, inside one transaction.
func (s *Store) CreateBatch(ctx context.Context, nb NewBatch) (*Batch, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(nb.ID) == "" {
		return nil, errors.New("batch id is required")
	}
	now := nowString()

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batches (id, status, submitted_by, model, language, total, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nb.ID, BatchPending, nullableString(nb.SubmittedBy), nullableString(nb.Model),
			nullableString(nb.Language), len(nb.Paths), now, now,
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO batch_files (batch_id, position, path, state, updated_at) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare file insert: %w", err)
		}
		defer stmt.Close()
		for i, path := range nb.Paths {
			if _, err := stmt.ExecContext(ctx, nb.ID, i, path, FileQueued, now); err != nil {
				return fmt.Errorf("insert batch file %q: %w", path, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, nb.ID)
}

// GetBatch fetches a batch by id. It returns ErrBatchNotFound for unknown ids.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns the most recent batches, newest first. A limit of zero
// or less returns every batch.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// MarkBatchRunning moves a pending batch to running. Batches in any other
// status are left untouched.
func (s *Store) MarkBatchRunning(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE batches SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		BatchRunning, nowString(), id, BatchPending,
	)
	if err != nil {
		return fmt.Errorf("mark batch running: %w", err)
	}
	return nil
}

// FinishBatch records the terminal status and summary of a batch.
func (s *Store) FinishBatch(ctx context.Context, id string, status BatchStatus, summaryJSON string, finished time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("finish batch: %q is not a terminal status", status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE batches SET status = ?, summary_json = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(summaryJSON), formatTime(finished), nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish batch: %w: %s", ErrBatchNotFound, id)
	}
	return nil
}

// SetBatchError stores a batch-level error message such as a failed
// finalize step. The batch status is unchanged.
func (s *Store) SetBatchError(ctx context.Context, id, message string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE batches SET error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(message), nowString(), id,
	); err != nil {
		return fmt.Errorf("set batch error: %w", err)
	}
	return nil
}

// Snapshot returns a batch with its files ordered by submission position.
func (s *Store) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.Files(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Batch: *batch, Files: files, Counts: CountFiles(files)}, nil
}
