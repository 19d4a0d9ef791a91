// Package store keeps the SQLite catalog of converted archives.
//
// The catalog has two tables:
//   - uploads: one row per convert or fetch invocation
//   - entries: one row per written archive, keyed by its mainfile path
//
// Entries carry the archive's content hash and section counts so that
// listings never need to reopen the archive files. Writing the same mainfile
// twice keeps the first entry.
package store
