package testsupport

import (
	"testing"

	"captioner/internal/config"
	"captioner/internal/queue"
)

// MustOpenStore opens the progress store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
