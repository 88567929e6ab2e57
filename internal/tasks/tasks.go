package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/cache"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// SnapshotCache is the persistence the engine needs. [cache.Cache] implements it.
type SnapshotCache interface {
	Load(ctx context.Context, containerID string) (*models.Snapshot, bool)
	Save(ctx context.Context, snapshot models.Snapshot) error
}

// RunRecorder keeps reconciliation history. [repositories.RunRepository] implements it.
type RunRecorder interface {
	Create(ctx context.Context, run *models.RunRecord) error
	Update(ctx context.Context, run *models.RunRecord) error
}

// ReconcileOptions tune a single reconciliation pass.
type ReconcileOptions struct {
	Force  bool // Ignore the cached snapshot and rematch every track
	DryRun bool // Match but do not write the snapshot back
}

// ReconcileResult contains everything produced by one reconciliation pass.
type ReconcileResult struct {
	RunID        string
	Playlist     models.SourcePlaylist
	Matches      []models.MatchResult // One per playlist track, in playlist order
	Statistics   models.Statistics
	Diff         models.DiffResult
	UpToDate     bool // Version marker equal to the cached snapshot's
	QueriedCount int  // Tracks sent to the matcher
	Saved        bool
	Snapshot     *models.Snapshot
	Duration     time.Duration
}

// Consulted reports whether the pass sent any track to the catalog.
func (r *ReconcileResult) Consulted() bool {
	return r.QueriedCount > 0
}

// Reconciler runs reconciliation passes over source playlists.
type Reconciler interface {
	// Reconcile loads the cached snapshot, matches only what changed and saves the new snapshot.
	Reconcile(ctx context.Context, progress chan<- ProgressUpdate, playlist models.SourcePlaylist, opts ReconcileOptions) (*ReconcileResult, error)

	// BulkReconcile reconciles several playlists with a bounded worker pool and writes one report per playlist.
	BulkReconcile(ctx context.Context, progress chan<- ProgressUpdate, playlists []models.SourcePlaylist, opts BulkReconcileOpts) (*BulkReconcileResult, error)
}

// PlaylistEngine implements [Reconciler] on top of a [BatchMatcher] and a [SnapshotCache].
type PlaylistEngine struct {
	batch  *BatchMatcher
	cache  SnapshotCache
	runs   RunRecorder
	logger *log.Logger
	now    func() time.Time
}

// NewPlaylistEngine creates a new PlaylistEngine. A nil cache disables snapshot reuse and persistence.
func NewPlaylistEngine(batch *BatchMatcher, snapshots SnapshotCache, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PlaylistEngine{batch: batch, cache: snapshots, logger: logger, now: time.Now}
}

// WithRunRecorder records every pass through runs. History failures are logged, never returned.
func (e *PlaylistEngine) WithRunRecorder(runs RunRecorder) *PlaylistEngine {
	e.runs = runs
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Reconcile performs one reconciliation pass for playlist.
//
// Cached entries for tracks still in the playlist are reused verbatim, new tracks are matched,
// and entries for removed tracks are dropped from the saved snapshot. An up to date playlist
// with no new or removed tracks is not written back.
func (e *PlaylistEngine) Reconcile(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	playlist models.SourcePlaylist,
	opts ReconcileOptions,
) (*ReconcileResult, error) {
	if e.batch == nil {
		return nil, fmt.Errorf("%w: matcher not initialized", shared.ErrCatalogUnavailable)
	}
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run_id", runID, "playlist", playlist.ID)

	var record *models.RunRecord
	if e.runs != nil {
		record = models.NewRunRecord(runID, playlist.ID, e.now())
		if err := e.runs.Create(ctx, record); err != nil {
			logger.Warn("failed to record run", "error", err)
			record = nil
		}
	}

	result, err := e.reconcile(ctx, progress, playlist, opts, runID, logger)

	if record != nil {
		record.Complete(result.Statistics, result.QueriedCount, err, errors.Is(err, shared.ErrCanceled), e.now())
		if uerr := e.runs.Update(context.WithoutCancel(ctx), record); uerr != nil {
			logger.Warn("failed to update run", "error", uerr)
		}
	}
	return result, err
}

func (e *PlaylistEngine) reconcile(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	playlist models.SourcePlaylist,
	opts ReconcileOptions,
	runID string,
	logger *log.Logger,
) (*ReconcileResult, error) {
	start := e.now()
	result := &ReconcileResult{RunID: runID, Playlist: playlist}

	e.sendProgress(progress, loadCacheUpdate(displayName(playlist)))

	var previous *models.Snapshot
	if e.cache != nil && !opts.Force {
		if snap, ok := e.cache.Load(ctx, playlist.ID); ok {
			previous = snap
		}
	}

	result.UpToDate = cache.IsUpToDate(previous, playlist.VersionMarker)
	result.Diff = cache.Diff(playlist.TrackIDs(), previous)
	e.sendProgress(progress, diffUpdate(result.Diff))

	var cached map[string]models.CachedEntry
	if previous != nil {
		cached = previous.Tracks
	}

	logger.Info("reconciling", "tracks", len(playlist.Tracks), "new", len(result.Diff.New),
		"existing", len(result.Diff.Existing), "removed", len(result.Diff.Removed), "up_to_date", result.UpToDate)

	onProgress := func(p models.Progress) { e.sendProgress(progress, matchProgressUpdate(p)) }
	batch, err := e.batch.MatchTracksDifferential(ctx, playlist.Tracks, cached, onProgress)
	if batch != nil {
		result.Matches = batch.Matches
		result.Statistics = batch.Statistics
		result.QueriedCount = len(batch.NewTracks)
	}
	if err != nil {
		result.Duration = e.now().Sub(start)
		logger.Warn("reconcile interrupted", "completed", len(result.Matches), "error", err)
		return result, err
	}

	if result.UpToDate && !result.Diff.Changed() && !opts.Force {
		e.sendProgress(progress, upToDateUpdate(displayName(playlist), len(result.Diff.Existing)))
		result.Snapshot = previous
		result.Duration = e.now().Sub(start)
		logger.Info("playlist up to date", "matched", result.Statistics.Matched)
		return result, nil
	}

	snapshot := cache.BuildSnapshot(playlist, result.Matches, previous, runID, e.now())
	result.Snapshot = &snapshot

	if e.cache != nil && !opts.DryRun {
		e.sendProgress(progress, saveCacheUpdate(displayName(playlist)))
		if err := e.cache.Save(ctx, snapshot); err != nil {
			result.Duration = e.now().Sub(start)
			return result, fmt.Errorf("failed to save snapshot for %s: %w", playlist.ID, err)
		}
		result.Saved = true
	}

	result.Duration = e.now().Sub(start)
	logger.Info("reconciled", "matched", result.Statistics.Matched, "ambiguous", result.Statistics.Ambiguous,
		"unmatched", result.Statistics.Unmatched, "queried", result.QueriedCount, "duration", result.Duration)
	return result, nil
}

func displayName(p models.SourcePlaylist) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
