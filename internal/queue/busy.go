package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SQLite reports lock contention as SQLITE_BUSY (5) in the low byte of the
// extended result code.
const sqliteBusy = 5

// busyBackoff is the retry schedule for writes that hit a locked database.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
	160 * time.Millisecond,
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == sqliteBusy
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs op until it succeeds, fails with a non-busy error, or the
// backoff schedule is exhausted.
func retryOnBusy(ctx context.Context, op func() error) error {
	err := op()
	for _, wait := range busyBackoff {
		if !isBusy(err) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = op()
	}
	return err
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}
