package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// Matcher resolves a single track. [matcher.Orchestrator] is the production implementation.
type Matcher interface {
	Match(ctx context.Context, track models.SourceTrack) models.MatchResult
}

// ProgressFunc receives a progress report after each completed chunk.
type ProgressFunc func(models.Progress)

// BatchResult holds one result per input track, in input order.
type BatchResult struct {
	Matches    []models.MatchResult
	Statistics models.Statistics
	Duration   time.Duration
}

// DifferentialResult is a [BatchResult] split by where each result came from.
type DifferentialResult struct {
	BatchResult
	NewTracks     []models.SourceTrack // Tracks sent to the matcher
	CachedMatches []models.MatchResult // Results rebuilt from cache
}

// BatchMatcher matches track lists in chunks of Concurrency tracks.
//
// Tracks within a chunk run in parallel; chunks run one after another. Cancellation is
// checked between chunks, and a chunk that has started always completes.
type BatchMatcher struct {
	matcher     Matcher
	concurrency int
	logger      *log.Logger
}

// NewBatchMatcher creates a batch matcher. Concurrency below 1 means sequential.
func NewBatchMatcher(m Matcher, concurrency int, logger *log.Logger) *BatchMatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &BatchMatcher{matcher: m, concurrency: max(concurrency, 1), logger: logger}
}

// MatchTracks matches every track, reporting progress after each chunk.
//
// On cancellation it returns the results completed so far, in input order, together with
// an error wrapping [shared.ErrCanceled].
func (b *BatchMatcher) MatchTracks(ctx context.Context, tracks []models.SourceTrack, onProgress ProgressFunc) (*BatchResult, error) {
	start := time.Now()
	matches, err := b.run(ctx, tracks, onProgress)
	return &BatchResult{
		Matches:    matches,
		Statistics: models.Tally(matches),
		Duration:   time.Since(start),
	}, err
}

// MatchTracksDifferential matches only tracks missing from cached and rebuilds the rest.
//
// Progress is reported once, after the merge. A cache covering every track issues no
// catalog queries.
func (b *BatchMatcher) MatchTracksDifferential(
	ctx context.Context,
	tracks []models.SourceTrack,
	cached map[string]models.CachedEntry,
	onProgress ProgressFunc,
) (*DifferentialResult, error) {
	start := time.Now()
	result := &DifferentialResult{}

	merged := make([]models.MatchResult, len(tracks))
	filled := make([]bool, len(tracks))
	var pending []int

	for i, track := range tracks {
		if entry, ok := cached[track.ID]; ok {
			merged[i] = entry.Result(track)
			filled[i] = true
			result.CachedMatches = append(result.CachedMatches, merged[i])
			continue
		}
		pending = append(pending, i)
		result.NewTracks = append(result.NewTracks, track)
	}

	b.logger.Debug("differential match", "cached", len(result.CachedMatches), "new", len(result.NewTracks))

	fresh, err := b.run(ctx, result.NewTracks, nil)
	for j, r := range fresh {
		merged[pending[j]] = r
		filled[pending[j]] = true
	}

	if err != nil {
		result.Matches = compact(merged, filled)
	} else {
		result.Matches = merged
	}
	result.Statistics = models.Tally(result.Matches)
	result.Duration = time.Since(start)

	if err != nil {
		return result, err
	}
	if onProgress != nil {
		onProgress(models.NewProgress(result.Statistics, len(tracks)))
	}
	return result, nil
}

// run matches tracks chunk by chunk. Tracks sharing an id are matched once.
//
// The returned slice is in input order; after cancellation it holds only completed tracks,
// still in input order, and is always a prefix when no ids repeat.
func (b *BatchMatcher) run(ctx context.Context, tracks []models.SourceTrack, onProgress ProgressFunc) ([]models.MatchResult, error) {
	results := make([]models.MatchResult, len(tracks))
	filled := make([]bool, len(tracks))
	unique, positions := dedupe(tracks)
	stats := models.NewStatistics()

	for lo := 0; lo < len(unique); lo += b.concurrency {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("batch canceled", "completed", stats.Total, "total", len(tracks))
			return compact(results, filled), fmt.Errorf("%w: %w", shared.ErrCanceled, err)
		}

		hi := min(lo+b.concurrency, len(unique))
		chunk := b.matchChunk(context.WithoutCancel(ctx), unique[lo:hi])

		for k, r := range chunk {
			for _, pos := range positions[lo+k] {
				res := r
				res.Source = tracks[pos]
				results[pos] = res
				filled[pos] = true
				stats = stats.Add(res)
			}
		}

		if onProgress != nil {
			onProgress(models.NewProgress(stats, len(tracks)))
		}
	}
	return results, nil
}

// matchChunk matches each track of chunk in its own goroutine.
func (b *BatchMatcher) matchChunk(ctx context.Context, chunk []models.SourceTrack) []models.MatchResult {
	out := make([]models.MatchResult, len(chunk))
	if len(chunk) == 1 {
		out[0] = b.matchOne(ctx, chunk[0])
		return out
	}

	var wg sync.WaitGroup
	for i, track := range chunk {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = b.matchOne(ctx, track)
		}()
	}
	wg.Wait()
	return out
}

// matchOne isolates a single track so a panicking matcher only costs that track.
func (b *BatchMatcher) matchOne(ctx context.Context, track models.SourceTrack) (result models.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("matcher panicked", "track", track.ID, "panic", r)
			result = models.Unmatched(track)
		}
	}()
	return b.matcher.Match(ctx, track)
}

// dedupe returns tracks with repeated ids removed and, per kept track, every input position it covers.
// Tracks without an id are never merged.
func dedupe(tracks []models.SourceTrack) ([]models.SourceTrack, [][]int) {
	unique := make([]models.SourceTrack, 0, len(tracks))
	positions := make([][]int, 0, len(tracks))
	index := make(map[string]int, len(tracks))

	for i, t := range tracks {
		if t.ID != "" {
			if k, ok := index[t.ID]; ok {
				positions[k] = append(positions[k], i)
				continue
			}
			index[t.ID] = len(unique)
		}
		unique = append(unique, t)
		positions = append(positions, []int{i})
	}
	return unique, positions
}

func compact(results []models.MatchResult, filled []bool) []models.MatchResult {
	out := make([]models.MatchResult, 0, len(results))
	for i, r := range results {
		if filled[i] {
			out = append(out, r)
		}
	}
	return out
}
