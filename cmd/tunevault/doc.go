// Command tunevault is the command-line front end for the tunevault music
// archiver.
//
// Queue commands read and write the SQLite job store directly, so they work
// whether or not the daemon is running. Task progress and live status are
// fetched from the daemon HTTP API when it is reachable.
package main
