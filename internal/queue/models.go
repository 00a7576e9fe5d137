package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// HeartbeatLostReason is recorded on jobs whose worker stopped heartbeating.
const HeartbeatLostReason = "worker heartbeat lost"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// IsTerminal reports whether the status ends a processing attempt.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// Job is a durable unit of requested work.
type Job struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	SourceTag     string     `json:"source_tag,omitempty"`
	RunID         string     `json:"run_id,omitempty"`
	Status        Status     `json:"status"`
	Progress      int        `json:"progress"`
	Message       string     `json:"message,omitempty"`
	Error         string     `json:"error,omitempty"`
	Title         string     `json:"title,omitempty"`
	TrackID       int64      `json:"track_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// Clone returns a detached copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	copy := *j
	if j.LastHeartbeat != nil {
		hb := *j.LastHeartbeat
		copy.LastHeartbeat = &hb
	}
	return &copy
}

// IsActive reports whether the job still blocks a re-enqueue of its URL.
func (j *Job) IsActive() bool {
	return j != nil && (j.Status == StatusPending || j.Status == StatusProcessing)
}

// SetProgress records a milestone. Progress is clamped into [0,100].
func (j *Job) SetProgress(percent int, message string) {
	j.Progress = ClampProgress(percent)
	j.Message = strings.TrimSpace(message)
}

// SetFailed marks the job failed while keeping the last recorded progress.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.Error = strings.TrimSpace(message)
	if j.Error == "" {
		j.Error = "failed without error detail"
	}
}

// SetCompleted marks the job completed at 100%.
func (j *Job) SetCompleted(message string) {
	j.Status = StatusCompleted
	j.Progress = 100
	j.Message = strings.TrimSpace(message)
	j.Error = ""
}

// ClampProgress bounds a percentage into [0,100].
func ClampProgress(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
