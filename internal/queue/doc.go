// Package queue persists download jobs in SQLite and implements the claim
// protocol every worker process uses to take work.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking and status transitions. ClaimNext serializes
// claims with two layers: an outer ClaimLocker shared by every process using
// the same database (an flock file by default, Redis optionally) and an
// inner BEGIN IMMEDIATE transaction on a dedicated connection. Swapping the
// outer layer for another lock service only requires a new ClaimLocker.
//
// Treat this package as the single source of truth for job semantics; when you
// add columns, update schema.sql and bump schemaVersion.
package queue
