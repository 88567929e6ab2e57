// Package ranker orders scored candidates and decides whether the best one is a clear winner.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/similarity"
)

const (
	// DefaultThreshold is the minimum composite score a fuzzy candidate needs.
	DefaultThreshold = 0.8

	// Scores within this distance are re-ordered by album preference.
	tieWindow = 0.08
	// Preference must differ by more than this to override score order inside the tie window.
	preferenceMargin = 0.1

	// A winner is ambiguous when both gaps to the runner-up are below these.
	ambiguousScoreGap      = 0.05
	ambiguousPreferenceGap = 0.15
)

var compilationMarkers = []string{"various artists", "various", "v/a", "v.a.", "compilation", "sampler"}

// Ranking is the outcome of ranking one source track's candidates.
type Ranking struct {
	// Best is nil when no candidate reached the threshold.
	Best       *models.ScoredCandidate
	Candidates []models.ScoredCandidate
	Ambiguous  bool
}

// Score scores every candidate against track, preserving input order.
func Score(track models.SourceTrack, candidates []models.CandidateTrack) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		b := similarity.Score(track, c)
		scored = append(scored, models.ScoredCandidate{
			Candidate:       c,
			Score:           b.Composite(),
			DurationDiffMS:  similarity.DurationDiffMS(track.DurationMS, c.DurationSec),
			AlbumSimilarity: b.Album,
		})
	}
	return scored
}

// Rank scores candidates, keeps those at or above threshold and orders them best first.
//
// Candidates within 0.08 of each other are re-ordered by [AlbumPreference] so the
// original studio album beats compilations. The winner is ambiguous when the runner-up
// is within 0.05 on score and 0.15 on preference.
func Rank(track models.SourceTrack, candidates []models.CandidateTrack, threshold float64) Ranking {
	var kept []models.ScoredCandidate
	for _, sc := range Score(track, candidates) {
		if sc.Score >= threshold {
			kept = append(kept, sc)
		}
	}
	if len(kept) == 0 {
		return Ranking{}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	r := Ranking{Candidates: kept, Best: &kept[0]}
	if len(kept) == 1 {
		return r
	}

	prefs := make([]float64, len(kept))
	for i, sc := range kept {
		prefs[i] = AlbumPreference(track, sc.Candidate, sc.AlbumSimilarity)
	}
	sort.Stable(tieBreak{candidates: kept, preferences: prefs})

	scoreGap := kept[0].Score - kept[1].Score
	prefGap := math.Abs(prefs[0] - prefs[1])
	r.Ambiguous = scoreGap < ambiguousScoreGap && prefGap < ambiguousPreferenceGap
	return r
}

// AlbumPreference favors the candidate's original release over compilations.
//
// It starts from the album similarity, adds 0.3 for a strong album match and 0.2 when
// the album name carries the source's primary artist, and subtracts 0.5 for catalog
// compilations and 0.3 for compilation-like album names.
func AlbumPreference(track models.SourceTrack, candidate models.CandidateTrack, albumSimilarity float64) float64 {
	score := albumSimilarity
	if albumSimilarity > 0.8 {
		score += 0.3
	}
	if candidate.Compilation {
		score -= 0.5
	}

	album := strings.ToLower(candidate.Album)
	for _, marker := range compilationMarkers {
		if strings.Contains(album, marker) {
			score -= 0.3
			break
		}
	}

	if artist := strings.ToLower(track.PrimaryArtist()); len(artist) > 2 && strings.Contains(album, artist) {
		score += 0.2
	}
	return score
}

// tieBreak orders candidates by score, except that candidates within the tie window
// are ordered by preference when their preferences differ enough.
type tieBreak struct {
	candidates  []models.ScoredCandidate
	preferences []float64
}

func (t tieBreak) Len() int { return len(t.candidates) }

func (t tieBreak) Swap(i, j int) {
	t.candidates[i], t.candidates[j] = t.candidates[j], t.candidates[i]
	t.preferences[i], t.preferences[j] = t.preferences[j], t.preferences[i]
}

func (t tieBreak) Less(i, j int) bool {
	scoreDiff := t.candidates[i].Score - t.candidates[j].Score
	if math.Abs(scoreDiff) > tieWindow {
		return scoreDiff > 0
	}
	prefDiff := t.preferences[i] - t.preferences[j]
	if math.Abs(prefDiff) > preferenceMargin {
		return prefDiff > 0
	}
	return scoreDiff > 0
}
