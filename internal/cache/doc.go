// Package cache persists per-playlist export snapshots and computes what changed since the last run.
//
// # Storage
//
// A [Store] is a byte-level key/value backend keyed by container id. The [Cache] layers JSON
// encoding and validation on top: a record that is missing, unreadable or fails validation is
// reported as "no cached data" and never as an error. Writes replace the whole record.
//
// Implementations live here ([MemoryStore]) and in package repositories (sqlite, badger, redis).
//
// # Diffing
//
// [Diff] partitions the current track ids into new, existing and removed against a snapshot.
// [IsUpToDate] compares version markers only. [BuildSnapshot] turns a run's results into the
// next snapshot, carrying over untouched entries from the previous one.
package cache
