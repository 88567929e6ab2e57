package matcher

import (
	"context"
	"strings"

	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/normalize"
	"github.com/desertthunder/trackmatch/internal/ranker"
	"github.com/desertthunder/trackmatch/internal/similarity"
)

// Strategy is one stage of the cascade.
//
// Attempt returns the stage's result and whether the stage accepted it. A stage that
// declines must not have side effects beyond catalog lookups.
type Strategy interface {
	Name() models.Strategy
	Attempt(ctx context.Context, track models.SourceTrack, lookup *Lookup) (models.MatchResult, bool)
}

// searchQuery is the normalized "artist title" query shared by the exact stages.
func searchQuery(track models.SourceTrack) string {
	return strings.TrimSpace(normalize.String(track.PrimaryArtist()) + " " + normalize.String(track.Title))
}

func exactResult(track models.SourceTrack, c models.CandidateTrack, strategy models.Strategy) models.MatchResult {
	scored := models.ScoredCandidate{
		Candidate:       c,
		Score:           1,
		DurationDiffMS:  similarity.DurationDiffMS(track.DurationMS, c.DurationSec),
		AlbumSimilarity: similarity.Album(track.Album, c.Album),
	}
	return models.MatchResult{
		Source:     track,
		Matched:    &c,
		Score:      1,
		Strategy:   strategy,
		Status:     models.StatusMatched,
		Candidates: []models.ScoredCandidate{scored},
	}
}

// IdentifierStrategy matches on the recording identifier (ISRC).
type IdentifierStrategy struct {
	Limit int
}

func (s IdentifierStrategy) Name() models.Strategy { return models.StrategyIdentifier }

func (s IdentifierStrategy) Attempt(ctx context.Context, track models.SourceTrack, lookup *Lookup) (models.MatchResult, bool) {
	code := strings.TrimSpace(track.ISRC)
	if code == "" {
		return models.MatchResult{}, false
	}

	query := searchQuery(track)
	if query == "" {
		query = code
	}

	for _, c := range lookup.Search(ctx, s.Name(), query, s.Limit) {
		if c.HasISRC(code) {
			return exactResult(track, c, s.Name()), true
		}
	}
	return models.MatchResult{}, false
}

// StrictStrategy accepts only an exact normalized artist and title match.
type StrictStrategy struct {
	Limit int
}

func (s StrictStrategy) Name() models.Strategy { return models.StrategyStrict }

func (s StrictStrategy) Attempt(ctx context.Context, track models.SourceTrack, lookup *Lookup) (models.MatchResult, bool) {
	title := normalize.String(track.Title)
	primary := normalize.String(track.PrimaryArtist())
	line := normalize.String(track.ArtistLine())
	if title == "" || primary == "" {
		return models.MatchResult{}, false
	}

	for _, c := range lookup.Search(ctx, s.Name(), searchQuery(track), s.Limit) {
		if normalize.String(c.Title) != title {
			continue
		}
		if artist := normalize.String(c.Artist); artist == primary || artist == line {
			return exactResult(track, c, s.Name()), true
		}
	}
	return models.MatchResult{}, false
}

// FuzzyStrategy ranks candidates by composite similarity.
//
// It queries by normalized title alone and ranks the union of everything the lookup has seen.
type FuzzyStrategy struct {
	Limit     int
	Threshold float64
}

func (s FuzzyStrategy) Name() models.Strategy { return models.StrategyFuzzy }

func (s FuzzyStrategy) Attempt(ctx context.Context, track models.SourceTrack, lookup *Lookup) (models.MatchResult, bool) {
	query := normalize.Title(track.Title)
	if query == "" {
		return models.MatchResult{}, false
	}
	lookup.Search(ctx, s.Name(), query, s.Limit)

	ranking := ranker.Rank(track, lookup.Seen(), s.Threshold)
	if ranking.Best == nil {
		return models.MatchResult{}, false
	}

	best := ranking.Best.Candidate
	status := models.StatusMatched
	if ranking.Ambiguous {
		status = models.StatusAmbiguous
	}
	return models.MatchResult{
		Source:     track,
		Matched:    &best,
		Score:      ranking.Best.Score,
		Strategy:   s.Name(),
		Status:     status,
		Candidates: ranking.Candidates,
	}, true
}
