package api_test

import (
	"context"
	"errors"
	"testing"

	"tunevault/internal/api"
	"tunevault/internal/library"
	"tunevault/internal/queue"
	"tunevault/internal/services"
	"tunevault/internal/tasks"
	"tunevault/internal/testsupport"
)

type staticReporter bool

func (r staticReporter) Running() bool { return bool(r) }

type serviceFixture struct {
	store   *queue.Store
	catalog *library.Catalog
	tracker *tasks.Tracker
	svc     *api.QueueService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := library.Open(context.Background(), store.DB())
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	tracker := tasks.NewTracker()
	return &serviceFixture{
		store:   store,
		catalog: catalog,
		tracker: tracker,
		svc:     api.NewQueueService(store, catalog, tracker, staticReporter(true)),
	}
}

func (f *serviceFixture) catalogue(t *testing.T, url, title string) *library.Track {
	t.Helper()
	track, err := f.catalog.Upsert(context.Background(), library.Track{
		Artist:    "Band",
		Title:     title,
		FilePath:  "/music/Band/Unknown Album/" + title + ".flac",
		SourceURL: url,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return track
}

func TestEnqueueCreatesAndDeduplicates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	url := "https://www.youtube.com/watch?v=abc"

	first, err := f.svc.Enqueue(ctx, url, "", "Song")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !first.Created || first.ID == 0 || first.Status != string(queue.StatusPending) || first.Title != "Song" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	second, err := f.svc.Enqueue(ctx, url, "", "")
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}
	if second.Created || second.ID != first.ID {
		t.Fatalf("expected existing job %d, got %+v", first.ID, second)
	}
}

func TestEnqueueShortCircuitsCataloguedURL(t *testing.T) {
	f := newServiceFixture(t)
	url := "https://soundcloud.com/band/song"
	track := f.catalogue(t, url, "Song")

	result, err := f.svc.Enqueue(context.Background(), url, "", "")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !result.InLibrary || result.ID != 0 || result.Status != string(queue.StatusCompleted) {
		t.Fatalf("expected synthetic completed result, got %+v", result)
	}
	if result.Title != "Song" || result.TrackID != track.ID {
		t.Fatalf("expected catalogued title and track, got %+v", result)
	}
	if jobs, _ := f.store.List(context.Background()); len(jobs) != 0 {
		t.Fatalf("expected no stored row, got %d", len(jobs))
	}
}

func TestEnqueueValidation(t *testing.T) {
	f := newServiceFixture(t)
	tests := []struct {
		name string
		url  string
		tag  string
	}{
		{name: "blank url", url: "  "},
		{name: "unknown host", url: "https://example.com/track"},
		{name: "unknown tag", url: "https://youtu.be/x", tag: "bandcamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Enqueue(context.Background(), tt.url, tt.tag, "")
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEnqueueManyMatchesTitlesByIndex(t *testing.T) {
	f := newServiceFixture(t)
	results, err := f.svc.EnqueueMany(context.Background(),
		[]string{"https://youtu.be/a", "https://youtu.be/b", "https://youtu.be/a"},
		"youtube",
		[]string{"A"},
	)
	if err != nil {
		t.Fatalf("EnqueueMany failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Title != "A" || results[1].Title != "" || results[0].Source != "youtube" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[2].Created || results[2].ID != results[0].ID {
		t.Fatalf("expected duplicate to collapse, got %+v", results[2])
	}
}

func TestListBackfillsCompletedTitles(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	url := "https://youtu.be/backfill"
	job := testsupport.MustEnqueue(t, f.store, url)
	if err := f.store.MarkCompleted(ctx, job.ID, "Download complete", "", 0); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	f.catalogue(t, url, "Recovered")

	items, err := f.svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Recovered" {
		t.Fatalf("expected back-filled title, got %+v", items)
	}
	stored, _ := f.store.GetByID(ctx, job.ID)
	if stored.Title != "Recovered" {
		t.Fatalf("expected title to be persisted, got %q", stored.Title)
	}
}

func TestRemoveOnlyPending(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	claimed := testsupport.MustEnqueue(t, f.store, "https://youtu.be/first")
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/second")
	job, err := f.store.ClaimNext(ctx)
	if err != nil || job == nil || job.ID != claimed.ID {
		t.Fatalf("ClaimNext = %v, %v", job, err)
	}

	result, err := api.RemoveURLs(ctx, f.svc, []string{"https://youtu.be/first", "https://youtu.be/second", "https://youtu.be/none"})
	if err != nil {
		t.Fatalf("RemoveURLs failed: %v", err)
	}
	want := []api.RemoveOutcome{api.RemoveOutcomeKept, api.RemoveOutcomeRemoved, api.RemoveOutcomeKept}
	if result.RemovedCount != 1 || len(result.Items) != len(want) {
		t.Fatalf("unexpected remove result: %+v", result)
	}
	for i, outcome := range want {
		if result.Items[i].Outcome != outcome {
			t.Fatalf("item %d outcome = %s, want %s", i, result.Items[i].Outcome, outcome)
		}
	}
	stored, _ := f.store.GetByID(ctx, claimed.ID)
	if stored == nil || stored.Status != queue.StatusProcessing {
		t.Fatalf("processing job should survive removal, got %+v", stored)
	}
}

func TestClearAllDropsTasks(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/one")
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/two")
	job, err := f.store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext = %v, %v", job, err)
	}
	runID := f.tracker.Create(job.URL)
	if err := f.store.AttachRun(ctx, job.ID, runID, "waiting"); err != nil {
		t.Fatalf("AttachRun failed: %v", err)
	}

	removed, err := f.svc.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := f.svc.Task(runID); ok {
		t.Fatal("expected task to be deleted with its job")
	}
}

func TestSizeAndStatusSummary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/1")
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/2")
	failed := testsupport.MustEnqueue(t, f.store, "https://youtu.be/3")
	if err := f.store.MarkFailed(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if _, err := f.store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	size, err := f.svc.Size(ctx)
	if err != nil || size != 1 {
		t.Fatalf("Size = %d, %v", size, err)
	}
	summary, err := f.svc.StatusSummary(ctx)
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}
	want := api.QueueStatus{IsProcessing: true, Pending: 1, Processing: 1, Failed: 1, Total: 3}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
}
