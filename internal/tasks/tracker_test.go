package tasks_test

import (
	"sync"
	"testing"
	"time"

	"tunevault/internal/tasks"
)

func TestCreateStartsPending(t *testing.T) {
	tracker := tasks.NewTracker()
	runID := tracker.Create(" https://youtu.be/x ")

	task, ok := tracker.Get(runID)
	if !ok {
		t.Fatal("expected task to exist")
	}
	if task.Status != tasks.StatusPending || task.Progress != 0 || task.URL != "https://youtu.be/x" {
		t.Fatalf("unexpected new task: %+v", task)
	}
	if runID == tracker.Create("https://youtu.be/x") {
		t.Fatal("expected unique run ids")
	}
}

func TestUpdateClampsAndForcesFailed(t *testing.T) {
	tests := []struct {
		name       string
		update     tasks.Update
		wantStatus tasks.Status
		wantPct    int
	}{
		{name: "clamps high", update: tasks.Progress(tasks.StatusDownloading, 150, "downloading"), wantStatus: tasks.StatusDownloading, wantPct: 100},
		{name: "clamps low", update: tasks.Progress(tasks.StatusProcessing, -5, "organizing"), wantStatus: tasks.StatusProcessing, wantPct: 0},
		{name: "error forces failed", update: tasks.Failed("boom"), wantStatus: tasks.StatusFailed, wantPct: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := tasks.NewTracker()
			runID := tracker.Create("u")
			if !tracker.Update(runID, tt.update) {
				t.Fatal("Update reported missing task")
			}
			task, _ := tracker.Get(runID)
			if task.Status != tt.wantStatus || task.Progress != tt.wantPct {
				t.Fatalf("got status=%s progress=%d", task.Status, task.Progress)
			}
		})
	}
}

func TestErrorAndStatusAreExclusive(t *testing.T) {
	tracker := tasks.NewTracker()
	runID := tracker.Create("u")
	status := tasks.StatusCompleted
	msg := "collaborator unavailable"
	tracker.Update(runID, tasks.Update{Status: &status, Error: &msg})

	task, _ := tracker.Get(runID)
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}

	// Later non-error updates cannot resurrect a failed task.
	tracker.Update(runID, tasks.Progress(tasks.StatusProcessing, 60, "organizing"))
	task, _ = tracker.Get(runID)
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected failed to stick, got %s", task.Status)
	}
}

func TestUpdateUnknownRun(t *testing.T) {
	tracker := tasks.NewTracker()
	if tracker.Update("missing", tasks.Failed("x")) {
		t.Fatal("expected false for unknown run id")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	tracker := tasks.NewTracker()
	runID := tracker.Create("u")
	task, _ := tracker.Get(runID)
	task.Progress = 99

	again, _ := tracker.Get(runID)
	if again.Progress != 0 {
		t.Fatal("mutating a snapshot changed the tracker")
	}
}

func TestCompletedCarriesResult(t *testing.T) {
	tracker := tasks.NewTracker()
	runID := tracker.Create("u")
	tracker.Update(runID, tasks.Completed("Download complete: Song", 42))

	task, _ := tracker.Get(runID)
	if task.Status != tasks.StatusCompleted || task.Progress != 100 || task.ResultRef != 42 {
		t.Fatalf("unexpected completed task: %+v", task)
	}
}

func TestDeleteMany(t *testing.T) {
	tracker := tasks.NewTracker()
	a := tracker.Create("a")
	b := tracker.Create("b")
	keep := tracker.Create("c")

	if removed := tracker.DeleteMany([]string{a, b, "ghost"}); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := tracker.Get(keep); !ok || tracker.Len() != 1 {
		t.Fatal("expected only the unlisted task to remain")
	}
	tracker.Delete(keep)
	if tracker.Len() != 0 {
		t.Fatal("expected Delete to remove the task")
	}
}

func TestCleanupOlderThanKeepsActiveTasks(t *testing.T) {
	tracker := tasks.NewTracker()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return base })

	done := tracker.Create("done")
	tracker.Update(done, tasks.Completed("ok", 1))
	failed := tracker.Create("failed")
	tracker.Update(failed, tasks.Failed("nope"))
	running := tracker.Create("running")
	tracker.Update(running, tasks.Progress(tasks.StatusDownloading, 15, "downloading"))

	tracker.SetClock(func() time.Time { return base.Add(25 * time.Hour) })
	recent := tracker.Create("recent")
	tracker.Update(recent, tasks.Completed("ok", 2))

	if removed := tracker.CleanupOlderThan(24 * time.Hour); removed != 2 {
		t.Fatalf("expected 2 tasks pruned, got %d", removed)
	}
	if _, ok := tracker.Get(running); !ok {
		t.Fatal("active task must survive cleanup")
	}
	if _, ok := tracker.Get(recent); !ok {
		t.Fatal("recently finished task must survive cleanup")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tracker := tasks.NewTracker()
	runID := tracker.Create("u")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(pct int) {
			defer wg.Done()
			tracker.Update(runID, tasks.Progress(tasks.StatusDownloading, pct, "downloading"))
			_ = tracker.List()
		}(i)
	}
	wg.Wait()

	task, _ := tracker.Get(runID)
	if task.Progress < 0 || task.Progress > 49 {
		t.Fatalf("unexpected progress %d", task.Progress)
	}
}
