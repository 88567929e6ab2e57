// package models defines the data model for the track matching engine
package models

import (
	"slices"
	"strings"
)

// Strategy names the cascade stage that produced a result.
type Strategy string

const (
	StrategyIdentifier Strategy = "identifier"
	StrategyStrict     Strategy = "strict"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyManual     Strategy = "manual"
	StrategyNone       Strategy = "none"
)

// Strategies lists every strategy in reporting order.
var Strategies = []Strategy{StrategyIdentifier, StrategyStrict, StrategyFuzzy, StrategyManual, StrategyNone}

// Status is the outcome class of a match.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusAmbiguous Status = "ambiguous"
	StatusUnmatched Status = "unmatched"
)

// SourceTrack is a track from the source playlist.
type SourceTrack struct {
	ID         string   `json:"id" validate:"required"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"durationMs"`
	ISRC       string   `json:"isrc,omitempty"`
}

// PrimaryArtist returns the first credited artist, or "" when none are present.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// ArtistLine joins all credited artists with a space.
func (t SourceTrack) ArtistLine() string {
	return strings.Join(t.Artists, " ")
}

// CandidateTrack is an entry in the destination catalog. Duration is in seconds.
type CandidateTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	DurationSec int      `json:"duration"`
	ISRCs       []string `json:"isrc,omitempty"`
	Compilation bool     `json:"compilation,omitempty"`
}

// HasISRC reports whether code is one of the candidate's recording identifiers, ignoring case.
func (c CandidateTrack) HasISRC(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return slices.ContainsFunc(c.ISRCs, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), code)
	})
}

// ScoredCandidate is a candidate with its composite score and the details behind it.
type ScoredCandidate struct {
	Candidate       CandidateTrack `json:"candidate"`
	Score           float64        `json:"score"`
	DurationDiffMS  int            `json:"durationDiffMs"`
	AlbumSimilarity float64        `json:"albumSimilarity"`
}

// MatchResult is the outcome of matching one source track.
//
// Unmatched results always carry a zero score, no matched candidate and [StrategyNone].
type MatchResult struct {
	Source     SourceTrack       `json:"source"`
	Matched    *CandidateTrack   `json:"matched,omitempty"`
	Score      float64           `json:"score"`
	Strategy   Strategy          `json:"strategy"`
	Status     Status            `json:"status"`
	Candidates []ScoredCandidate `json:"candidates,omitempty"`
}

// Unmatched builds the canonical no-match result for track.
func Unmatched(track SourceTrack) MatchResult {
	return MatchResult{Source: track, Strategy: StrategyNone, Status: StatusUnmatched}
}

// Found reports whether the result carries a candidate, whether matched or ambiguous.
func (r MatchResult) Found() bool {
	return r.Status == StatusMatched || r.Status == StatusAmbiguous
}

// SourcePlaylist is an ordered source container with its version marker.
type SourcePlaylist struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name"`
	VersionMarker string        `json:"versionMarker"`
	DestinationID string        `json:"destinationId,omitempty"`
	Tracks        []SourceTrack `json:"tracks" validate:"dive"`
}

// TrackIDs returns the track ids in playlist order.
func (p SourcePlaylist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}
