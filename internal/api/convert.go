package api

import (
	"sort"
	"time"

	"tunevault/internal/library"
	"tunevault/internal/queue"
	"tunevault/internal/tasks"
	"tunevault/internal/workflow"
)

// FromJob converts a job row to its API representation.
func FromJob(job *queue.Job) QueueItem {
	if job == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:        job.ID,
		URL:       job.URL,
		Source:    job.SourceTag,
		TaskID:    job.RunID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
		Title:     job.Title,
		TrackID:   job.TrackID,
		CreatedAt: formatTime(job.CreatedAt),
		UpdatedAt: formatTime(job.UpdatedAt),
	}
}

// FromJobs converts job rows into API DTOs, keeping their order.
func FromJobs(jobs []*queue.Job) []QueueItem {
	out := make([]QueueItem, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromTask converts a task snapshot.
func FromTask(task tasks.Task) TaskView {
	return TaskView{
		TaskID:    task.RunID,
		URL:       task.URL,
		Status:    string(task.Status),
		Progress:  task.Progress,
		Message:   task.Message,
		Error:     task.Error,
		TrackID:   task.ResultRef,
		CreatedAt: formatTime(task.CreatedAt),
		UpdatedAt: formatTime(task.UpdatedAt),
	}
}

// FromTrack converts a catalogued track.
func FromTrack(track *library.Track) TrackItem {
	if track == nil {
		return TrackItem{}
	}
	return TrackItem{
		ID:           track.ID,
		Artist:       track.Artist,
		Album:        track.Album,
		Title:        track.Title,
		Year:         track.Year,
		Genre:        track.Genre,
		Duration:     track.Duration,
		FilePath:     track.FilePath,
		FileSize:     track.FileSize,
		Source:       track.Source,
		SourceURL:    track.SourceURL,
		DownloadedAt: formatTime(track.DownloadedAt),
	}
}

// FromTracks converts catalogued tracks, keeping their order.
func FromTracks(tracks []*library.Track) []TrackItem {
	out := make([]TrackItem, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, FromTrack(track))
	}
	return out
}

// FromStatusSummary converts scheduler diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Slots:       summary.Slots,
		SlotsInUse:  summary.SlotsInUse,
		InFlight:    summary.InFlight,
		TrackedRuns: summary.TrackedRuns,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
	}
	if summary.LastJob != nil {
		item := FromJob(summary.LastJob)
		status.LastItem = &item
	}
	return status
}

// MergeQueueStats keys counts by status string with every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// SortedStatusKeys returns the keys of a merged stats map in lifecycle order.
func SortedStatusKeys(stats map[string]int) []string {
	order := make(map[string]int, len(queue.AllStatuses()))
	for i, status := range queue.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
