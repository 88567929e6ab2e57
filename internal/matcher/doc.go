// Package matcher resolves one source track against the destination catalog.
//
// # Cascade
//
// The [Orchestrator] runs its [Strategy] stages in order and stops at the first that accepts:
//
//  1. [IdentifierStrategy] : accepts a candidate whose ISRC list contains the source ISRC (score 1.0)
//  2. [StrictStrategy] : accepts an exact normalized artist and title match in the top results (score 1.0)
//  3. [FuzzyStrategy] : ranks a broader result set by composite similarity (see package ranker)
//
// Stages are toggled through [Options]. Any stage can be replaced by a custom [Strategy].
//
// # Catalog Access
//
// Stages query the catalog through a per-track [Lookup] that issues each distinct query
// once and treats failures as an empty result. The identifier and strict stages share
// the "artist title" query, and the fuzzy stage ranks everything the lookup has seen.
package matcher
