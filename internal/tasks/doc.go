// Package tasks tracks live progress for jobs executing in this process.
//
// A Task is created when the scheduler claims a job and is keyed by a run id
// that is also stored on the job row. Updates are cheap map writes so the
// pipeline can report fine-grained progress without touching SQLite on every
// tick. Tasks are not persisted; a restart loses them and the durable job row
// remains authoritative.
package tasks
