// Package repositories implements persistence for the export cache and reconciliation history.
//
// Key Implementations:
//   - [SnapshotRepository] : SQLite snapshot store, one row per container in export_snapshots
//   - [BadgerStore] : embedded Badger snapshot store, keys under "snapshot:"
//   - [RedisStore] : Redis snapshot store with optional TTL
//   - [RunRepository] : reconciliation run history with status tracking
//
// All snapshot stores satisfy cache.Store: payloads are opaque bytes, writes replace the whole
// record, and a missing key is reported as [shared.ErrNotFound].
//
// Sequence numbers give runs a stable, human-readable order independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
