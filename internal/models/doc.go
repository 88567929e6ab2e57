// Package models defines the data model for the track matching engine.
//
// The package contains two categories of types:
//
// 1. Matching values: immutable inputs and outputs of a single match
//   - [SourceTrack] : a track from the source playlist, with optional ISRC
//   - [CandidateTrack] : a destination catalog entry returned by a search
//   - [ScoredCandidate] : a candidate with its composite score and match details
//   - [MatchResult] : the outcome of matching one source track
//   - [Statistics] and [Progress] : aggregate counters over a batch
//
// 2. Persisted cache records: the export snapshot written after a run
//   - [Snapshot] : one cached container (playlist) with its version marker
//   - [CachedEntry] : the cached outcome for one source track
//   - [DiffResult] : the partition of current tracks against a snapshot
//
// Snapshots are plain JSON documents; they are validated on decode with the
// struct tags declared here.
package models
