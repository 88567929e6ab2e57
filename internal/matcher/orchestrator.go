package matcher

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/normalize"
	"github.com/desertthunder/trackmatch/internal/ranker"
)

// Options toggles and tunes the cascade stages.
type Options struct {
	EnableIdentifier bool
	EnableStrict     bool
	EnableFuzzy      bool
	FuzzyThreshold   float64
	StrictResults    int
	FuzzyResults     int
}

// DefaultOptions enables every stage with a 0.8 fuzzy threshold.
func DefaultOptions() Options {
	return Options{
		EnableIdentifier: true,
		EnableStrict:     true,
		EnableFuzzy:      true,
		FuzzyThreshold:   ranker.DefaultThreshold,
		StrictResults:    20,
		FuzzyResults:     50,
	}
}

// Strategies builds the enabled stages in cascade order.
func (o Options) Strategies() []Strategy {
	var stages []Strategy
	if o.EnableIdentifier {
		stages = append(stages, IdentifierStrategy{Limit: o.StrictResults})
	}
	if o.EnableStrict {
		stages = append(stages, StrictStrategy{Limit: o.StrictResults})
	}
	if o.EnableFuzzy {
		stages = append(stages, FuzzyStrategy{Limit: o.FuzzyResults, Threshold: o.FuzzyThreshold})
	}
	return stages
}

// Orchestrator runs the strategy cascade for one track at a time.
//
// It holds no per-track state, so one Orchestrator may serve concurrent calls when its
// [Searcher] allows that.
type Orchestrator struct {
	searcher   Searcher
	strategies []Strategy
	logger     *log.Logger
}

// NewOrchestrator creates an orchestrator running the stages enabled in opts.
func NewOrchestrator(searcher Searcher, opts Options, logger *log.Logger) *Orchestrator {
	return NewOrchestratorWithStrategies(searcher, logger, opts.Strategies()...)
}

// NewOrchestratorWithStrategies creates an orchestrator with an explicit stage list.
func NewOrchestratorWithStrategies(searcher Searcher, logger *log.Logger, strategies ...Strategy) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{searcher: searcher, strategies: strategies, logger: logger}
}

// Match resolves track, returning an unmatched result when no stage accepts.
//
// A track whose title or primary artist normalizes to empty is unmatched without any
// catalog query.
func (o *Orchestrator) Match(ctx context.Context, track models.SourceTrack) models.MatchResult {
	if normalize.Title(track.Title) == "" || normalize.Artist(track.PrimaryArtist()) == "" {
		o.logger.Debug("skipping track with empty title or artist", "track", track.ID)
		return models.Unmatched(track)
	}

	lookup := NewLookup(o.searcher, o.logger)
	for _, stage := range o.strategies {
		result, ok := stage.Attempt(ctx, track, lookup)
		if !ok {
			continue
		}
		o.logger.Debug("track matched",
			"track", track.ID, "strategy", result.Strategy, "status", result.Status,
			"score", result.Score, "queries", lookup.Queries())
		return result
	}

	o.logger.Debug("track unmatched", "track", track.ID, "queries", lookup.Queries())
	return models.Unmatched(track)
}
