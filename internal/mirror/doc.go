// Package mirror copies filed library tracks into an S3-compatible bucket.
//
// The mirror is optional. When storage is disabled the package hands back a
// no-op implementation so the pipeline can call Upload unconditionally.
package mirror
