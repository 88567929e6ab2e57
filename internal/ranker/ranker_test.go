package ranker

import (
	"math"
	"testing"

	"github.com/desertthunder/trackmatch/internal/models"
)

func TestRank(t *testing.T) {
	t.Run("clear winner over tribute band", func(t *testing.T) {
		track := models.SourceTrack{ID: "s1", Title: "Yesterday", Artists: []string{"The Beatles"}, DurationMS: 125000}
		candidates := []models.CandidateTrack{
			{ID: "a", Title: "Yesterday (Remastered 2009)", Artist: "The Beatles", DurationSec: 125},
			{ID: "b", Title: "Yesterday", Artist: "Beatles Tribute Band", DurationSec: 123},
		}

		r := Rank(track, candidates, DefaultThreshold)
		if r.Best == nil {
			t.Fatal("expected a best candidate")
		}
		if r.Best.Candidate.ID != "a" {
			t.Errorf("expected candidate a, got %s", r.Best.Candidate.ID)
		}
		if r.Best.Score != 1 {
			t.Errorf("expected score 1, got %v", r.Best.Score)
		}
		if r.Ambiguous {
			t.Error("expected an unambiguous result")
		}
		if len(r.Candidates) != 2 {
			t.Errorf("expected both candidates above threshold, got %d", len(r.Candidates))
		}
	})

	t.Run("same song on two albums is ambiguous", func(t *testing.T) {
		track := models.SourceTrack{ID: "s2", Title: "Song", Artists: []string{"Artist"}, Album: "Unrelated", DurationMS: 200000}
		candidates := []models.CandidateTrack{
			{ID: "c1", Title: "Song", Artist: "Artist", Album: "First Album", DurationSec: 200},
			{ID: "c2", Title: "Song", Artist: "Artist", Album: "Second Album", DurationSec: 201},
		}

		r := Rank(track, candidates, DefaultThreshold)
		if r.Best == nil || r.Best.Candidate.ID != "c1" {
			t.Fatalf("expected c1 first, got %+v", r.Best)
		}
		if !r.Ambiguous {
			t.Error("expected ambiguity between near-identical candidates")
		}
		if len(r.Candidates) != 2 {
			t.Errorf("expected both candidates returned, got %d", len(r.Candidates))
		}
	})

	t.Run("studio album beats compilation inside tie window", func(t *testing.T) {
		track := models.SourceTrack{ID: "s3", Title: "Song", Artists: []string{"Artist"}, DurationMS: 200000}
		candidates := []models.CandidateTrack{
			{ID: "comp", Title: "Song", Artist: "Artist", Album: "Summer Hits", DurationSec: 200, Compilation: true},
			{ID: "studio", Title: "Song", Artist: "Artist", Album: "Studio Record", DurationSec: 201},
		}

		r := Rank(track, candidates, DefaultThreshold)
		if r.Best == nil || r.Best.Candidate.ID != "studio" {
			t.Fatalf("expected studio release first, got %+v", r.Best)
		}
		if r.Ambiguous {
			t.Error("a clear preference gap should not be ambiguous")
		}
	})

	t.Run("nothing above threshold", func(t *testing.T) {
		track := models.SourceTrack{ID: "s4", Title: "Yesterday", Artists: []string{"The Beatles"}, DurationMS: 125000}
		candidates := []models.CandidateTrack{
			{ID: "x", Title: "Completely Different", Artist: "Somebody Else", DurationSec: 400},
		}

		r := Rank(track, candidates, DefaultThreshold)
		if r.Best != nil || len(r.Candidates) != 0 || r.Ambiguous {
			t.Errorf("expected empty ranking, got %+v", r)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if r := Rank(models.SourceTrack{ID: "s5"}, nil, DefaultThreshold); r.Best != nil {
			t.Errorf("expected nil best, got %+v", r.Best)
		}
	})

	t.Run("scores are descending outside the tie window", func(t *testing.T) {
		track := models.SourceTrack{ID: "s6", Title: "Yesterday", Artists: []string{"The Beatles"}, DurationMS: 125000}
		candidates := []models.CandidateTrack{
			{ID: "weak", Title: "Yesterday", Artist: "Beatles Tribute Band", DurationSec: 123},
			{ID: "strong", Title: "Yesterday", Artist: "The Beatles", DurationSec: 125},
		}

		r := Rank(track, candidates, 0)
		if r.Candidates[0].Candidate.ID != "strong" {
			t.Errorf("expected strong first, got %s", r.Candidates[0].Candidate.ID)
		}
		for i := 1; i < len(r.Candidates); i++ {
			if r.Candidates[i].Score > r.Candidates[i-1].Score+tieWindow {
				t.Errorf("candidate %d out of order", i)
			}
		}
	})
}

func TestScore(t *testing.T) {
	track := models.SourceTrack{Title: "Song", Artists: []string{"Artist"}, Album: "Album", DurationMS: 180000}
	scored := Score(track, []models.CandidateTrack{
		{ID: "1", Title: "Song", Artist: "Artist", Album: "Album", DurationSec: 182},
	})

	if len(scored) != 1 {
		t.Fatalf("expected one scored candidate, got %d", len(scored))
	}
	if scored[0].DurationDiffMS != 2000 {
		t.Errorf("expected 2000ms difference, got %d", scored[0].DurationDiffMS)
	}
	if scored[0].AlbumSimilarity != 1 {
		t.Errorf("expected album similarity 1, got %v", scored[0].AlbumSimilarity)
	}
}

func TestAlbumPreference(t *testing.T) {
	tests := []struct {
		name       string
		artist     string
		candidate  models.CandidateTrack
		albumScore float64
		want       float64
	}{
		{
			name:       "strong album match with artist in title",
			artist:     "Queen",
			candidate:  models.CandidateTrack{Album: "Queen II"},
			albumScore: 0.9,
			want:       1.4,
		},
		{
			name:       "flagged compilation with compilation name",
			artist:     "Queen",
			candidate:  models.CandidateTrack{Album: "Various Artists: Rock Anthems", Compilation: true},
			albumScore: 0,
			want:       -0.8,
		},
		{
			name:       "short artist names earn no bonus",
			artist:     "U2",
			candidate:  models.CandidateTrack{Album: "U2 Live"},
			albumScore: 0.5,
			want:       0.5,
		},
		{
			name:       "sampler name",
			artist:     "Artist",
			candidate:  models.CandidateTrack{Album: "Label Sampler 2004"},
			albumScore: 0.2,
			want:       -0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := models.SourceTrack{Artists: []string{tt.artist}}
			got := AlbumPreference(track, tt.candidate, tt.albumScore)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AlbumPreference() = %v, want %v", got, tt.want)
			}
		})
	}
}
