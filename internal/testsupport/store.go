package testsupport

import (
	"context"
	"testing"

	"tunevault/internal/config"
	"tunevault/internal/queue"
)

// MustOpenStore opens the job database named by cfg and closes it when t ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store at %s: %v", cfg.DatabasePath(), err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustEnqueue queues url with no source tag or title and fails t if the
// store reports an error. A URL that is already pending or processing
// yields the existing job.
func MustEnqueue(t testing.TB, store *queue.Store, url string) *queue.Job {
	t.Helper()
	job, _, err := store.Enqueue(context.Background(), url, "", "")
	if err != nil {
		t.Fatalf("enqueue %s: %v", url, err)
	}
	if job == nil {
		t.Fatalf("enqueue %s returned no job", url)
	}
	return job
}
