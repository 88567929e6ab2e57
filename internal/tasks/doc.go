// Package tasks runs track matching over whole playlists with real-time progress reporting.
//
// # Batch Matching
//
// [BatchMatcher] drives a [Matcher] over a track list in chunks of bounded size:
//
//  1. [BatchMatcher.MatchTracks] : match every track
//     - Tracks inside a chunk run in parallel, chunks run in sequence
//     - Results keep input order regardless of chunking
//     - Cancellation is checked between chunks and returns the completed results
//
//  2. [BatchMatcher.MatchTracksDifferential] : match only tracks missing from a cache
//     - Cached entries are rebuilt without touching the catalog
//     - Progress is reported once, after the merge
//
// # Reconciliation
//
// [PlaylistEngine] implements [Reconciler]. [PlaylistEngine.Reconcile] loads the cached snapshot,
// diffs it against the playlist, matches new tracks, and saves the rebuilt snapshot.
// [PlaylistEngine.BulkReconcile] does the same for several playlists with a worker pool and
// writes one report per playlist plus a manifest.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
