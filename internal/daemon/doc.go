// Package daemon coordinates the long-running tunevault process.
//
// It wires configuration, the job store, the library catalog and the
// workflow manager into a single lifecycle with flock-based locking to
// prevent multiple instances, and serves the HTTP API (echo) used by the
// CLI and other clients to enqueue URLs and follow task progress.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
