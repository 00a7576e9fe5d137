package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"tunevault/internal/conversion"
	"tunevault/internal/downloader"
	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/metadata"
	"tunevault/internal/mirror"
	"tunevault/internal/notifications"
	"tunevault/internal/queue"
	"tunevault/internal/services"
	"tunevault/internal/services/plex"
	"tunevault/internal/tasks"
)

// Downloader fetches the raw artifact for a URL.
type Downloader interface {
	Download(ctx context.Context, url, tag string) (downloader.Result, error)
}

// Converter turns a raw download into its canonical FLAC.
type Converter interface {
	EnsureCanonicalForm(ctx context.Context, rawPath, artworkHint string) (string, error)
}

// TagReader reads embedded tags from an audio file.
type TagReader interface {
	Extract(ctx context.Context, path string) (metadata.Tags, error)
}

// Filer moves a track into the library layout.
type Filer interface {
	File(ctx context.Context, src string, tags metadata.Tags) (string, error)
}

// Catalog records filed tracks.
type Catalog interface {
	Upsert(ctx context.Context, track library.Track) (*library.Track, error)
}

// JobStore is the slice of the durable queue the executor writes milestones to.
type JobStore interface {
	UpdateProgress(ctx context.Context, id int64, percent int, message string) error
	SetTitle(ctx context.Context, id int64, title string) error
	MarkCompleted(ctx context.Context, id int64, message, title string, trackID int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// Deps bundles the collaborators of an Executor. Mirror, Plex and Notifier
// are optional.
type Deps struct {
	Jobs       JobStore
	Tasks      *tasks.Tracker
	Downloader Downloader
	Converter  Converter
	Tags       TagReader
	Filer      Filer
	Catalog    Catalog
	Mirror     mirror.Mirror
	Plex       plex.Service
	Notifier   notifications.Service
	MusicDir   string
}

// Executor runs claimed jobs end to end.
type Executor struct {
	deps   Deps
	logger *slog.Logger
}

// New returns an Executor. Missing optional collaborators become no-ops.
func New(deps Deps, logger *slog.Logger) *Executor {
	if deps.Tasks == nil {
		deps.Tasks = tasks.NewTracker()
	}
	if deps.Mirror == nil {
		deps.Mirror = noopMirror{}
	}
	if deps.Plex == nil {
		deps.Plex = noopPlex{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{deps: deps, logger: logging.NewComponentLogger(logger, "pipeline")}
}

// Execute processes job under the task runID. Every failure is recorded as
// FAILED on both the task and the job before being returned.
func (e *Executor) Execute(ctx context.Context, job *queue.Job, runID string) (err error) {
	if job == nil {
		return errors.New("execute: nil job")
	}
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, e.logger).With(logging.String("url", job.URL))
	start := time.Now()

	run := &runState{executor: e, job: job, runID: runID, logger: logger}
	track, err := run.process(ctx)
	if err != nil {
		e.fail(ctx, logger, job, runID, err)
		return err
	}

	message := fmt.Sprintf("Download complete: %s", track.Title)
	e.deps.Tasks.Update(runID, tasks.Completed(message, track.ID))
	if markErr := e.deps.Jobs.MarkCompleted(ctx, job.ID, message, track.Title, track.ID); markErr != nil {
		logging.ErrorWithContext(logger, "failed to persist job completion", "job_complete_persist_failed",
			logging.Error(markErr),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "job row may still show processing until heartbeat reclaim"),
		)
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int64("track_id", track.ID),
		logging.String("file_path", track.FilePath),
		logging.Duration("duration", time.Since(start)),
	)
	if notifyErr := e.deps.Notifier.NotifyTrackFiled(ctx, track.Title, track.Artist, track.FilePath); notifyErr != nil {
		logger.Debug("track notification failed", logging.Error(notifyErr))
	}
	return nil
}

func (e *Executor) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, runID string, cause error) {
	message := failureMessage(cause)
	e.deps.Tasks.Update(runID, tasks.Failed(message))

	details := services.Details(cause)
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldStage, details.Stage),
		logging.String("error_message", message),
		logging.Error(cause),
	)

	// The row must reach FAILED even when the job context is already cancelled.
	persistCtx := context.WithoutCancel(ctx)
	if err := e.deps.Jobs.MarkFailed(persistCtx, job.ID, message); err != nil {
		logging.ErrorWithContext(logger, "failed to persist job failure", "job_failure_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	if notifyErr := e.deps.Notifier.NotifyJobFailed(persistCtx, job.URL, cause); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "failed without error detail"
	}
	if errors.Is(err, context.Canceled) {
		return "job cancelled: " + strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(err.Error())
}

type runState struct {
	executor *Executor
	job      *queue.Job
	runID    string
	logger   *slog.Logger
}

func (r *runState) milestone(ctx context.Context, status tasks.Status, percent int, message string) {
	r.executor.deps.Tasks.Update(r.runID, tasks.Progress(status, percent, message))
	if err := r.executor.deps.Jobs.UpdateProgress(ctx, r.job.ID, percent, message); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist progress", "progress_persist_failed",
			logging.Int("progress", percent),
			logging.Error(err),
			logging.String(logging.FieldImpact, "queue listing shows an older milestone"),
		)
	}
}

func (r *runState) process(ctx context.Context) (*library.Track, error) {
	deps := r.executor.deps

	r.milestone(ctx, tasks.StatusDownloading, 5, "preparing")
	r.milestone(ctx, tasks.StatusDownloading, 15, "downloading")
	result, err := deps.Downloader.Download(services.WithStage(ctx, "download"), r.job.URL, r.job.SourceTag)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Path) == "" {
		return nil, services.Wrap(services.ErrExternalTool, "download", "locate output", "download completed but file not found", nil)
	}
	if title := strings.TrimSpace(result.Hints.Title); title != "" && strings.TrimSpace(r.job.Title) == "" {
		if err := deps.Jobs.SetTitle(ctx, r.job.ID, title); err != nil {
			r.logger.Debug("failed to record job title", logging.Error(err))
		}
	}

	r.milestone(ctx, tasks.StatusDownloading, 50, "download finished, converting to FLAC")
	flacPath, err := deps.Converter.EnsureCanonicalForm(services.WithStage(ctx, "conversion"), result.Path, result.Artwork)
	if err != nil {
		return nil, err
	}

	fileTags, err := deps.Tags.Extract(services.WithStage(ctx, "metadata"), flacPath)
	if err != nil {
		return nil, err
	}
	tags := metadata.Merge(fileTags, result.Hints, conversion.BaseName(filepath.Base(flacPath)))
	r.logger.Info("metadata resolved",
		logging.String("artist", tags.Artist),
		logging.String("album", tags.Album),
		logging.String("title", tags.Title),
		logging.Int("year", tags.Year),
	)

	r.milestone(ctx, tasks.StatusProcessing, 60, "organizing")
	filed, err := r.file(ctx, flacPath, tags)
	if err != nil {
		return nil, err
	}

	r.milestone(ctx, tasks.StatusProcessing, 80, "saving to database")
	track, err := deps.Catalog.Upsert(services.WithStage(ctx, "library"), library.Track{
		Artist:    tags.Artist,
		Album:     tags.Album,
		Title:     tags.Title,
		Year:      tags.Year,
		Genre:     tags.Genre,
		Duration:  tags.Duration,
		FilePath:  filed,
		FileSize:  tags.FileSize,
		Source:    string(result.Source),
		SourceURL: r.job.URL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "library", "upsert track", filed, err)
	}

	r.afterCatalog(ctx, track)
	return track, nil
}

// file moves the FLAC into the library unless it is already filed there.
func (r *runState) file(ctx context.Context, flacPath string, tags metadata.Tags) (string, error) {
	deps := r.executor.deps
	if deps.MusicDir != "" && withinDir(deps.MusicDir, flacPath) {
		r.logger.Info("track already in library, skipping filing", logging.String("file_path", flacPath))
		return flacPath, nil
	}
	return deps.Filer.File(services.WithStage(ctx, "organizing"), flacPath, tags)
}

func (r *runState) afterCatalog(ctx context.Context, track *library.Track) {
	deps := r.executor.deps
	if deps.Mirror.Enabled() {
		if key, err := deps.Mirror.Upload(services.WithStage(ctx, "mirror"), track.FilePath); err != nil {
			logging.WarnWithContext(r.logger, "track mirror failed", "track_mirror_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check storage endpoint and credentials"),
				logging.String(logging.FieldImpact, "object storage copy is missing this track"),
			)
		} else {
			r.logger.Debug("track mirrored", logging.String("object", key))
		}
	}
	if deps.Plex.Enabled() {
		if err := deps.Plex.Refresh(services.WithStage(ctx, "plex")); err != nil {
			logging.WarnWithContext(r.logger, "plex refresh failed", "plex_refresh_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check plex url, token and library section"),
				logging.String(logging.FieldImpact, "track appears in plex after the next scheduled scan"),
			)
		}
	}
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type noopMirror struct{}

func (noopMirror) Enabled() bool                                  { return false }
func (noopMirror) Upload(context.Context, string) (string, error) { return "", nil }

type noopPlex struct{}

func (noopPlex) Enabled() bool                                    { return false }
func (noopPlex) Refresh(context.Context) error                    { return nil }
func (noopPlex) Sections(context.Context) ([]plex.Section, error) { return nil, nil }
