package models

import "time"

// CachedCandidate is the denormalized candidate metadata kept for redisplay.
type CachedCandidate struct {
	ID          string  `json:"id" validate:"required"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	DurationSec int     `json:"duration"`
	Score       float64 `json:"score" validate:"gte=0,lte=1"`
}

// Track rebuilds a [CandidateTrack] from cached metadata.
func (c CachedCandidate) Track() CandidateTrack {
	return CandidateTrack{ID: c.ID, Title: c.Title, Artist: c.Artist, Album: c.Album, DurationSec: c.DurationSec}
}

// CachedEntry is the persisted outcome for one source track.
type CachedEntry struct {
	TrackID     string            `json:"trackId" validate:"required"`
	CandidateID string            `json:"candidateId,omitempty" validate:"required_unless=Status unmatched"`
	Status      Status            `json:"status" validate:"oneof=matched ambiguous unmatched"`
	Strategy    Strategy          `json:"strategy" validate:"oneof=identifier strict fuzzy manual none"`
	Score       float64           `json:"score" validate:"gte=0,lte=1"`
	MatchedAt   time.Time         `json:"matchedAt"`
	Matched     *CachedCandidate  `json:"matched,omitempty"`
	Candidates  []CachedCandidate `json:"candidates,omitempty" validate:"dive"`

	// Source display fields for tracks that never matched.
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMS int    `json:"durationMs"`
}

// Snapshot is the cached export record for one source container.
type Snapshot struct {
	ContainerID   string                 `json:"containerId" validate:"required"`
	VersionMarker string                 `json:"versionMarker"`
	Name          string                 `json:"name"`
	DestinationID string                 `json:"destinationId,omitempty"`
	RunID         string                 `json:"runId,omitempty"`
	ExportedAt    time.Time              `json:"exportedAt"`
	TrackCount    int                    `json:"trackCount" validate:"gte=0"`
	Tracks        map[string]CachedEntry `json:"tracks" validate:"dive"`
	Statistics    Statistics             `json:"statistics"`
}

// DiffResult partitions the current track ids against a snapshot.
//
// New and Existing preserve the order of the current list; Removed is sorted.
type DiffResult struct {
	New      []string `json:"new"`
	Removed  []string `json:"removed"`
	Existing []string `json:"existing"`
}

// Changed reports whether any track was added or removed.
func (d DiffResult) Changed() bool {
	return len(d.New) > 0 || len(d.Removed) > 0
}

// Result rebuilds a [MatchResult] for track from the cached entry without consulting the catalog.
//
// Unmatched entries come back in canonical unmatched form.
func (e CachedEntry) Result(track SourceTrack) MatchResult {
	if e.Status != StatusMatched && e.Status != StatusAmbiguous {
		return Unmatched(track)
	}

	var matched CandidateTrack
	switch {
	case e.Matched != nil:
		matched = e.Matched.Track()
	default:
		matched = CandidateTrack{
			ID:          e.CandidateID,
			Title:       track.Title,
			Artist:      track.PrimaryArtist(),
			Album:       track.Album,
			DurationSec: track.DurationMS / 1000,
		}
	}

	candidates := make([]ScoredCandidate, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		candidates = append(candidates, ScoredCandidate{Candidate: c.Track(), Score: c.Score})
	}

	return MatchResult{
		Source:     track,
		Matched:    &matched,
		Score:      e.Score,
		Strategy:   e.Strategy,
		Status:     e.Status,
		Candidates: candidates,
	}
}

// NewCachedEntry captures a result for persistence at the given time.
func NewCachedEntry(r MatchResult, at time.Time) CachedEntry {
	entry := CachedEntry{
		TrackID:    r.Source.ID,
		Status:     r.Status,
		Strategy:   r.Strategy,
		Score:      r.Score,
		MatchedAt:  at,
		Title:      r.Source.Title,
		Artist:     r.Source.ArtistLine(),
		Album:      r.Source.Album,
		DurationMS: r.Source.DurationMS,
	}

	if r.Matched != nil && r.Found() {
		m := cachedCandidate(*r.Matched, r.Score)
		entry.CandidateID = m.ID
		entry.Matched = &m
	}
	for _, sc := range r.Candidates {
		entry.Candidates = append(entry.Candidates, cachedCandidate(sc.Candidate, sc.Score))
	}
	return entry
}

func cachedCandidate(c CandidateTrack, score float64) CachedCandidate {
	return CachedCandidate{
		ID:          c.ID,
		Title:       c.Title,
		Artist:      c.Artist,
		Album:       c.Album,
		DurationSec: c.DurationSec,
		Score:       score,
	}
}
