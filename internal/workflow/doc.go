// Package workflow schedules claimed jobs onto a bounded pool of execution
// slots.
//
// The Manager runs one claim loop per process. Each iteration takes a slot,
// claims the oldest pending job from the shared queue and hands it to the
// Executor on its own goroutine, which returns the slot when the job ends.
// When nothing is pending the loop sleeps, by default while still holding
// its slot. Panics inside an execution are recovered at the dispatch boundary
// and recorded as job failures.
//
// Alongside the claim loop the Manager heartbeats in-flight jobs, fails
// PROCESSING rows whose worker stopped heartbeating, prunes finished tasks
// from the in-memory tracker and emits a notification when the queue drains.
package workflow
