// Package filelock coordinates workers that would otherwise perform the same
// expensive transformation on one input.
//
// A lock token is a sibling file of the input (`<stem>.lock`) guarded by an
// advisory flock. The first caller to TryAcquire does the work; everyone else
// gets ErrBusy and calls WaitForReleaseOrRetry, which returns as soon as the
// finished artifact shows up or the holder goes away. Because flock is bound
// to the open file, a crashed holder releases its lock automatically.
package filelock
