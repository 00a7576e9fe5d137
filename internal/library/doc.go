// Package library records filed tracks in the catalog table that lives in
// the queue database. The catalog answers "was this URL already filed?" for
// enqueue short-circuiting and backs the titles shown for completed jobs.
package library
