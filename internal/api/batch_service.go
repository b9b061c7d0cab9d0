package api

import (
	"context"

	"captioner/internal/queue"
)

// BatchReader abstracts the progress-store queries the API needs.
type BatchReader interface {
	ListBatches(ctx context.Context, limit int) ([]*queue.Batch, error)
	Snapshot(ctx context.Context, id string) (*queue.Snapshot, error)
}

// BatchService exposes read-only batch operations returning API DTOs.
type BatchService struct {
	store BatchReader
}

// NewBatchService constructs a BatchService around the provided reader.
func NewBatchService(store BatchReader) *BatchService {
	if store == nil {
		return nil
	}
	return &BatchService{store: store}
}

// List returns the most recent batches, newest first, without file rows.
func (s *BatchService) List(ctx context.Context, limit int) ([]BatchView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	batches, err := s.store.ListBatches(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		out = append(out, FromBatch(b))
	}
	return out, nil
}

// Describe fetches one batch with its files. Unknown ids return
// queue.ErrBatchNotFound.
func (s *BatchService) Describe(ctx context.Context, id string) (*BatchView, error) {
	if s == nil || s.store == nil {
		return nil, queue.ErrBatchNotFound
	}
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	view := FromSnapshot(snap)
	return &view, nil
}
