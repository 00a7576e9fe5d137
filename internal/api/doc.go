// Package api defines the queue surface shared by the HTTP server and the
// CLI, plus the wire-format types it returns.
//
// # Key Types
//
// QueueService: enqueue with two idempotency checks (an active job for the
// URL, then a catalogued track for the URL), listing with title back-fill,
// PENDING-only removal, bulk clear including in-memory tasks, and status
// summaries.
//
// QueueItem, TaskView, TrackItem: transport representations of jobs, task
// runs and library tracks.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Timestamps are RFC3339 with milliseconds in
// UTC. A URL that is already catalogued yields a synthetic COMPLETED result
// with id 0 and no stored row.
package api
