// Package preflight provides readiness checks for external services,
// binaries and filesystem paths that tunevault depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and refuses to start when a required
//     check fails, so a misconfigured host never claims jobs.
//   - The CLI "tunevault status" command uses the individual check functions
//     to display service health.
//
// Each service check is gated by its config toggle; disabled features are skipped.
package preflight
