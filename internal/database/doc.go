// Package database provides the SQLite persistence layer for the
// index. It owns the schema, batched write transactions, and the
// query surface used by the scanner: archive upserts, idempotent
// image inserts, scan history, and directory purges.
//
// All records are keyed by a hash of the normalized file path, so the
// same file always maps to the same row and re-scans never create
// duplicates.
package database
