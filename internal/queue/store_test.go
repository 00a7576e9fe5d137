package queue_test

import (
	"context"
	"testing"
	"time"

	"tunevault/internal/queue"
	"tunevault/internal/testsupport"
)

func TestEnqueueDeduplicatesActiveURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, created, err := store.Enqueue(ctx, "https://youtu.be/abc", "youtube", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !created {
		t.Fatal("expected first enqueue to create a row")
	}
	if first.Status != queue.StatusPending || first.Progress != 0 {
		t.Fatalf("unexpected new job state: %+v", first)
	}

	again, created, err := store.Enqueue(ctx, "https://youtu.be/abc", "", "")
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing job %d, got %d (created=%v)", first.ID, again.ID, created)
	}

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v %v", claimed, err)
	}
	whileProcessing, created, err := store.Enqueue(ctx, "https://youtu.be/abc", "", "")
	if err != nil {
		t.Fatalf("Enqueue during processing failed: %v", err)
	}
	if created || whileProcessing.ID != first.ID {
		t.Fatal("expected processing job to suppress a new row")
	}

	if err := store.MarkFailed(ctx, first.ID, "collaborator unavailable"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	retry, created, err := store.Enqueue(ctx, "https://youtu.be/abc", "", "")
	if err != nil {
		t.Fatalf("Enqueue after failure failed: %v", err)
	}
	if !created || retry.ID == first.ID {
		t.Fatal("expected a fresh row once the previous job failed")
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(jobs))
	}
}

func TestEnqueueRejectsBlankURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, _, err := store.Enqueue(context.Background(), "   ", "", ""); err != queue.ErrEmptyURL {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestListOrdersOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	for _, url := range urls {
		testsupport.MustEnqueue(t, store, url)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for i, job := range jobs {
		if job.URL != urls[i] {
			t.Fatalf("position %d: got %q want %q", i, job.URL, urls[i])
		}
	}

	pending, err := store.List(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List with filter failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no completed jobs, got %d", len(pending))
	}
}

func TestRemovePendingOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	processing := testsupport.MustEnqueue(t, store, "https://a.example/processing")
	pending := testsupport.MustEnqueue(t, store, "https://a.example/pending")
	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed.ID != processing.ID {
		t.Fatalf("expected oldest job %d to be claimed, got %d", processing.ID, claimed.ID)
	}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "processing is protected", url: processing.URL, want: false},
		{name: "unknown url", url: "https://a.example/missing", want: false},
		{name: "pending is removed", url: pending.URL, want: true},
		{name: "second removal is a no-op", url: pending.URL, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed, err := store.RemovePendingByURL(ctx, tt.url)
			if err != nil {
				t.Fatalf("RemovePendingByURL failed: %v", err)
			}
			if removed != tt.want {
				t.Fatalf("removed = %v, want %v", removed, tt.want)
			}
		})
	}

	size, err := store.CountByStatus(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected empty pending queue, got %d", size)
	}
}

func TestClearAllRemovesEveryStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.MustEnqueue(t, store, "https://a.example/a")
	b := testsupport.MustEnqueue(t, store, "https://a.example/b")
	testsupport.MustEnqueue(t, store, "https://a.example/c")

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.AttachRun(ctx, a.ID, "run-a", "waiting"); err != nil {
		t.Fatalf("AttachRun failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, a.ID, "done", "Song", 7); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.AttachRun(ctx, b.ID, "run-b", "waiting"); err != nil {
		t.Fatalf("AttachRun failed: %v", err)
	}

	runIDs, removed, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 rows removed, got %d", removed)
	}
	if len(runIDs) != 2 {
		t.Fatalf("expected 2 run ids, got %v", runIDs)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for status, count := range stats {
		if count != 0 {
			t.Fatalf("expected no %s jobs after clear, got %d", status, count)
		}
	}
}

func TestMarkFailedKeepsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustEnqueue(t, store, "https://a.example/x")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, 50, "converting"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "collaborator X unavailable"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error != "collaborator X unavailable" {
		t.Fatalf("unexpected error text: %q", got.Error)
	}
	if got.Progress != 50 {
		t.Fatalf("expected progress to stay at 50, got %d", got.Progress)
	}
}

func TestUpdateClampsProgressAndForcesFailedOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustEnqueue(t, store, "https://a.example/clamp")
	job.Progress = 250
	job.Error = "boom"
	job.Status = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Progress != 100 || got.Status != queue.StatusFailed {
		t.Fatalf("unexpected persisted job: progress=%d status=%s", got.Progress, got.Status)
	}
}

func TestFailStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustEnqueue(t, store, "https://a.example/stale")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	reclaimed, err := store.FailStaleProcessing(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected fresh heartbeat to survive, reclaimed %d", reclaimed)
	}

	reclaimed, err = store.FailStaleProcessing(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 stale job, got %d", reclaimed)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != queue.StatusFailed || got.Error != queue.HeartbeatLostReason {
		t.Fatalf("unexpected stale job state: %s %q", got.Status, got.Error)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustEnqueue(t, store, "https://a.example/health")

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck || health.TotalJobs != 1 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health details: %+v", health)
	}
}

func TestParseStatus(t *testing.T) {
	if status, err := queue.ParseStatus(" PENDING "); err != nil || status != queue.StatusPending {
		t.Fatalf("ParseStatus returned %q, %v", status, err)
	}
	if _, err := queue.ParseStatus("ripping"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestFailIfProcessingLeavesSettledRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := testsupport.MustEnqueue(t, store, "https://youtu.be/pending")
	if changed, err := store.FailIfProcessing(ctx, pending.ID, "boom"); err != nil || changed {
		t.Fatalf("pending job should be untouched: changed=%v err=%v", changed, err)
	}

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v %v", claimed, err)
	}
	changed, err := store.FailIfProcessing(ctx, claimed.ID, "boom")
	if err != nil || !changed {
		t.Fatalf("expected processing job to fail: changed=%v err=%v", changed, err)
	}
	if changed, _ := store.FailIfProcessing(ctx, claimed.ID, "again"); changed {
		t.Fatal("expected second call to be a no-op")
	}
	stored, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusFailed || stored.Error != "boom" {
		t.Fatalf("unexpected row: %+v", stored)
	}
}
