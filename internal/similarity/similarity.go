// Package similarity scores how closely a catalog candidate resembles a source track.
//
// Field similarities are edit-distance ratios over normalized strings, except album
// similarity which is a discounted token overlap. All scores fall in [0, 1].
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/normalize"
)

const (
	// DurationToleranceMS is the difference under which durations count as the same recording.
	DurationToleranceMS = 3000
	// DurationHorizonMS is the difference at which duration similarity reaches zero.
	DurationHorizonMS = 60000

	durationFloor   = 0.9
	albumTokenScale = 0.8

	boostCap  = 0.1
	scoreCeil = 0.95
)

// Breakdown holds the per-field similarities for one source/candidate pair.
type Breakdown struct {
	Artist   float64
	Title    float64
	Duration float64
	Album    float64
}

// String is the edit similarity of two strings after plain normalization.
func String(a, b string) float64 {
	return ratio(normalize.String(a), normalize.String(b))
}

// Title is the edit similarity of two titles after title normalization.
func Title(a, b string) float64 {
	return ratio(normalize.Title(a), normalize.Title(b))
}

// Artist is the edit similarity of two artist credits after artist normalization.
func Artist(a, b string) float64 {
	return ratio(normalize.Artist(a), normalize.Artist(b))
}

// ratio returns 1 - distance/maxLen, with equal strings (including two empty ones) scoring 1.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return clamp(1 - float64(dist)/float64(maxLen))
}

// Album compares album names by token overlap.
//
// Identical normalized names score 1. Otherwise each source token counts when some
// candidate token contains it or is contained by it, and the count over the longer
// token list is scaled by 0.8. An empty side scores 0.
func Album(source, candidate string) float64 {
	a, b := normalize.Album(source), normalize.Album(candidate)
	if a == b {
		return 1
	}

	aTokens, bTokens := strings.Fields(a), strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	matching := 0
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if strings.Contains(bt, at) || strings.Contains(at, bt) {
				matching++
				break
			}
		}
	}
	return clamp(float64(matching) / float64(max(len(aTokens), len(bTokens))) * albumTokenScale)
}

// DurationDiffMS is the absolute difference between a millisecond and a second duration.
func DurationDiffMS(sourceMS, candidateSec int) int {
	diff := sourceMS - candidateSec*1000
	if diff < 0 {
		return -diff
	}
	return diff
}

// Duration maps a duration difference to a similarity.
//
// Differences under [DurationToleranceMS] score 1 - diff/3000 floored at 0.9;
// larger ones decay linearly to 0 at [DurationHorizonMS].
func Duration(sourceMS, candidateSec int) float64 {
	diff := float64(DurationDiffMS(sourceMS, candidateSec))
	if diff < DurationToleranceMS {
		return max(1-diff/DurationToleranceMS, durationFloor)
	}
	return clamp(1 - math.Min(diff/DurationHorizonMS, 1))
}

// Score computes the per-field breakdown for a source track and a candidate.
//
// The artist side takes the better of the primary artist and the joined artist line.
func Score(track models.SourceTrack, candidate models.CandidateTrack) Breakdown {
	return Breakdown{
		Artist:   max(Artist(track.PrimaryArtist(), candidate.Artist), Artist(track.ArtistLine(), candidate.Artist)),
		Title:    Title(track.Title, candidate.Title),
		Duration: Duration(track.DurationMS, candidate.DurationSec),
		Album:    Album(track.Album, candidate.Album),
	}
}

// Composite combines the breakdown into one score.
//
// An exact title match returns a title-heavy weighting with a floor of 0.85 (0.75 when
// the artist barely resembles). Otherwise a weighted sum is lifted by at most 0.1 for a
// close duration and a matching album, never past 0.95.
func (b Breakdown) Composite() float64 {
	if b.Title == 1 {
		if b.Artist >= 0.3 {
			return clamp(max(b.Artist*0.2+b.Title*0.4+b.Duration*0.3+b.Album*0.1, 0.85))
		}
		return clamp(max(b.Artist*0.15+b.Title*0.45+b.Duration*0.3+b.Album*0.1, 0.75))
	}

	base := b.Artist*0.25 + b.Title*0.35 + b.Duration*0.25 + b.Album*0.15

	boost := 0.0
	if b.Duration >= 0.9 {
		boost += 0.1
	}
	if b.Album >= 0.8 && (b.Title >= 0.6 || b.Artist >= 0.4) {
		boost += 0.05
	}
	boost = min(boost, boostCap)

	if boost > 0 && base < scoreCeil {
		base = min(base+boost, scoreCeil)
	}
	return clamp(base)
}

// Composite scores a candidate against a source track.
func Composite(track models.SourceTrack, candidate models.CandidateTrack) float64 {
	return Score(track, candidate).Composite()
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
