// Package daemonctl controls a tunevaultd process from the CLI: launching it
// detached, stopping it through its pid file, and querying its HTTP API.
package daemonctl
