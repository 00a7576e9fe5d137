package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tunevault/internal/downloader"
	"tunevault/internal/library"
	"tunevault/internal/queue"
	"tunevault/internal/services"
	"tunevault/internal/tasks"
)

// JobStore abstracts the durable queue operations the service needs.
type JobStore interface {
	Enqueue(ctx context.Context, url, sourceTag, title string) (*queue.Job, bool, error)
	FindActiveByURL(ctx context.Context, url string) (*queue.Job, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	SetTitle(ctx context.Context, id int64, title string) error
	RemovePendingByURL(ctx context.Context, url string) (bool, error)
	ClearAll(ctx context.Context) ([]string, int64, error)
	CountByStatus(ctx context.Context, status queue.Status) (int, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// TrackLookup finds catalogued tracks by the URL they were downloaded from.
type TrackLookup interface {
	FindBySourceURL(ctx context.Context, url string) (*library.Track, error)
}

// TaskRegistry is the in-memory task tracker.
type TaskRegistry interface {
	Get(runID string) (tasks.Task, bool)
	DeleteMany(runIDs []string) int
}

// ProcessingReporter reports whether this process is claiming jobs.
type ProcessingReporter interface {
	Running() bool
}

// QueueService implements the queue surface over the job store, the library
// catalog and the task tracker.
type QueueService struct {
	store    JobStore
	tracks   TrackLookup
	tasks    TaskRegistry
	reporter ProcessingReporter

	playlists PlaylistExpander
}

// NewQueueService constructs a QueueService. tracks, registry and reporter may be nil.
func NewQueueService(store JobStore, tracks TrackLookup, registry TaskRegistry, reporter ProcessingReporter) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store, tracks: tracks, tasks: registry, reporter: reporter}
}

// Enqueue adds url to the queue. An active job for the URL is returned as is;
// a URL that is already catalogued short-circuits to a synthetic COMPLETED
// result without a stored row.
func (s *QueueService) Enqueue(ctx context.Context, url, sourceTag, title string) (EnqueueResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return EnqueueResult{}, services.Wrap(services.ErrValidation, "queue", "enqueue", "url must not be empty", queue.ErrEmptyURL)
	}
	source, err := validateSource(url, sourceTag)
	if err != nil {
		return EnqueueResult{}, err
	}
	title = strings.TrimSpace(title)

	active, err := s.store.FindActiveByURL(ctx, url)
	if err != nil {
		return EnqueueResult{}, err
	}
	if active != nil {
		return EnqueueResult{QueueItem: FromJob(active)}, nil
	}

	if s.tracks != nil {
		track, err := s.tracks.FindBySourceURL(ctx, url)
		if err != nil {
			return EnqueueResult{}, fmt.Errorf("library lookup: %w", err)
		}
		if track != nil {
			if title == "" {
				title = track.Title
			}
			return EnqueueResult{
				QueueItem: QueueItem{
					URL:     url,
					Source:  sourceTag,
					Status:  string(queue.StatusCompleted),
					Title:   title,
					TrackID: track.ID,
				},
				InLibrary: true,
			}, nil
		}
	}

	job, created, err := s.store.Enqueue(ctx, url, storedSourceTag(sourceTag, source), title)
	if err != nil {
		return EnqueueResult{}, err
	}
	return EnqueueResult{QueueItem: FromJob(job), Created: created}, nil
}

// EnqueueMany enqueues each URL in order. titles are matched by index and may
// be shorter than urls. Validation failures stop the batch.
func (s *QueueService) EnqueueMany(ctx context.Context, urls []string, sourceTag string, titles []string) ([]EnqueueResult, error) {
	results := make([]EnqueueResult, 0, len(urls))
	for i, url := range urls {
		var title string
		if i < len(titles) {
			title = titles[i]
		}
		result, err := s.Enqueue(ctx, url, sourceTag, title)
		if err != nil {
			return results, fmt.Errorf("enqueue %q: %w", url, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// List returns every job oldest first. COMPLETED jobs without a title take
// it from the catalogued track, and the title is stored for later listings.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Status != queue.StatusCompleted || strings.TrimSpace(job.Title) != "" || s.tracks == nil {
			continue
		}
		track, err := s.tracks.FindBySourceURL(ctx, job.URL)
		if err != nil || track == nil {
			continue
		}
		job.Title = track.Title
		// The listing stays correct if the write fails; the next listing retries it.
		_ = s.store.SetTitle(ctx, job.ID, track.Title)
	}
	return FromJobs(jobs), nil
}

// Describe fetches a single job, or nil when it does not exist.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	item := FromJob(job)
	return &item, nil
}

// Remove deletes the PENDING job for url. Jobs in any other status are kept
// and false is returned.
func (s *QueueService) Remove(ctx context.Context, url string) (bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return false, services.Wrap(services.ErrValidation, "queue", "remove", "url must not be empty", nil)
	}
	return s.store.RemovePendingByURL(ctx, url)
}

// ClearAll deletes every job and the tasks attached to them.
func (s *QueueService) ClearAll(ctx context.Context) (int64, error) {
	runIDs, removed, err := s.store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	if s.tasks != nil && len(runIDs) > 0 {
		s.tasks.DeleteMany(runIDs)
	}
	return removed, nil
}

// Size counts PENDING jobs only.
func (s *QueueService) Size(ctx context.Context) (int, error) {
	return s.store.CountByStatus(ctx, queue.StatusPending)
}

// StatusSummary returns counts per status and whether jobs are being claimed.
func (s *QueueService) StatusSummary(ctx context.Context) (QueueStatus, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	summary := QueueStatus{
		Pending:    stats[queue.StatusPending],
		Processing: stats[queue.StatusProcessing],
		Completed:  stats[queue.StatusCompleted],
		Failed:     stats[queue.StatusFailed],
	}
	summary.Total = summary.Pending + summary.Processing + summary.Completed + summary.Failed
	if s.reporter != nil {
		summary.IsProcessing = s.reporter.Running()
	}
	return summary, nil
}

// Task returns the in-memory view of a run.
func (s *QueueService) Task(runID string) (TaskView, bool) {
	if s.tasks == nil {
		return TaskView{}, false
	}
	task, ok := s.tasks.Get(strings.TrimSpace(runID))
	if !ok {
		return TaskView{}, false
	}
	return FromTask(task), true
}

// ErrUnsupportedSource is returned for URLs no download strategy handles.
var ErrUnsupportedSource = errors.New("unsupported source")

func validateSource(url, sourceTag string) (downloader.Source, error) {
	if tag := strings.TrimSpace(sourceTag); tag != "" {
		source, ok := downloader.ParseSource(tag)
		if !ok || source == downloader.SourceUnknown {
			return "", services.Wrap(services.ErrValidation, "queue", "enqueue",
				fmt.Sprintf("unknown source %q", tag), ErrUnsupportedSource)
		}
		return source, nil
	}
	source := downloader.Detect(url)
	if source == downloader.SourceUnknown {
		return "", services.Wrap(services.ErrValidation, "queue", "enqueue",
			fmt.Sprintf("cannot detect source for %s", url), ErrUnsupportedSource)
	}
	return source, nil
}

func storedSourceTag(sourceTag string, detected downloader.Source) string {
	if strings.TrimSpace(sourceTag) != "" {
		return string(detected)
	}
	return ""
}
