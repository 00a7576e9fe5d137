package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, url, source_tag, run_id, status, progress, message, error, title, track_id, created_at, updated_at, last_heartbeat"

// timeLayout is fixed width so lexical ordering of created_at matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func now() string {
	return formatTime(time.Now())
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		url          string
		sourceTag    sql.NullString
		runID        sql.NullString
		statusStr    string
		progress     int
		message      sql.NullString
		errorMessage sql.NullString
		title        sql.NullString
		trackID      sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		heartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&sourceTag,
		&runID,
		&statusStr,
		&progress,
		&message,
		&errorMessage,
		&title,
		&trackID,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		URL:       url,
		SourceTag: sourceTag.String,
		RunID:     runID.String,
		Status:    Status(statusStr),
		Progress:  progress,
		Message:   message.String,
		Error:     errorMessage.String,
		Title:     title.String,
		TrackID:   trackID.Int64,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
