package matcher

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/models"
)

// Searcher queries the destination catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)
}

// Lookup memoizes catalog queries for a single track.
//
// A Lookup belongs to one Orchestrator call and must not be shared across tracks.
type Lookup struct {
	searcher Searcher
	logger   *log.Logger
	results  map[string][]models.CandidateTrack
	seen     []models.CandidateTrack
	seenIDs  map[string]struct{}
	queries  int
}

// NewLookup wraps searcher for one track.
func NewLookup(searcher Searcher, logger *log.Logger) *Lookup {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Lookup{
		searcher: searcher,
		logger:   logger,
		results:  make(map[string][]models.CandidateTrack),
		seenIDs:  make(map[string]struct{}),
	}
}

// Search runs query once per (query, limit) pair.
//
// Catalog failures are logged and yield no candidates.
func (l *Lookup) Search(ctx context.Context, stage models.Strategy, query string, limit int) []models.CandidateTrack {
	if query == "" || l.searcher == nil {
		return nil
	}

	key := fmt.Sprintf("%d|%s", limit, query)
	if cached, ok := l.results[key]; ok {
		return cached
	}

	l.queries++
	candidates, err := l.searcher.Search(ctx, query, limit)
	if err != nil {
		l.logger.Warn("catalog search failed", "stage", stage, "query", query, "error", err)
		candidates = nil
	}

	l.results[key] = candidates
	for _, c := range candidates {
		if _, dup := l.seenIDs[c.ID]; dup {
			continue
		}
		l.seenIDs[c.ID] = struct{}{}
		l.seen = append(l.seen, c)
	}
	return candidates
}

// Seen returns every distinct candidate returned so far, in first-seen order.
func (l *Lookup) Seen() []models.CandidateTrack {
	return l.seen
}

// Queries is the number of catalog calls actually issued.
func (l *Lookup) Queries() int {
	return l.queries
}
