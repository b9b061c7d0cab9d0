package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"captioner/internal/services"
)

// MarkInterrupted closes out batches a previous process left unfinished.
// Non-terminal files become errors with InterruptedMessage and their batches
// are marked cancelled. It returns how many batches were closed.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := nowString()
	if _, err := s.execWithRetry(ctx,
		`UPDATE batch_files
         SET state = ?, error_message = ?, error_kind = ?, finished_at = ?, updated_at = ?
         WHERE state NOT IN (?, ?, ?)
           AND batch_id IN (SELECT id FROM batches WHERE status IN (?, ?))`,
		FileError, InterruptedMessage, services.KindCancelled, now, now,
		FileDone, FileSkipped, FileError,
		BatchPending, BatchRunning,
	); err != nil {
		return 0, fmt.Errorf("mark interrupted files: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE batches SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		BatchCancelled, InterruptedMessage, now, now,
		BatchPending, BatchRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted batches: %w", err)
	}
	return res.RowsAffected()
}

// PurgeFinished deletes terminal batches (and their files) that finished
// before cutoff and returns how many batches were removed.
func (s *Store) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM batches WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		BatchDone, BatchCancelled, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge finished batches: %w", err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the progress database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("progress database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat progress database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("progress database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping progress database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "PRAGMA user_version").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM batches").Scan(&health.Batches); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count batches: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM batch_files").Scan(&health.Files); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count batch files: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
