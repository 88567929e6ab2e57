package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/trackmatch/internal/formatter"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
)

// BulkReconcileOpts contains configuration for bulk reconciliation.
type BulkReconcileOpts struct {
	Format     string           // Report format: json, csv, markdown, txt
	OutputDir  string           // Report directory (default: trackmatch_reports_{epoch})
	NumWorkers int              // Concurrent playlists (default: 2, max: 8)
	Reconcile  ReconcileOptions // Applied to every playlist
}

// PlaylistReconcileResult is the outcome for one playlist of a bulk run.
type PlaylistReconcileResult struct {
	PlaylistID   string
	PlaylistName string
	Success      bool
	Error        error
	ReportFile   string
	Result       *ReconcileResult
}

// BulkReconcileResult summarizes a bulk run.
type BulkReconcileResult struct {
	TotalPlaylists  int
	Succeeded       int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []PlaylistReconcileResult // Completion order
}

type reconcileJob struct {
	step     int
	total    int
	playlist models.SourcePlaylist
}

// BulkReconcile reconciles several playlists with a worker pool and writes a report per playlist
// plus a manifest summarizing the run.
//
// Each playlist owns its snapshot, so a playlist id appearing twice is rejected rather than
// raced. Failures are recorded per playlist and never stop the others.
func (e *PlaylistEngine) BulkReconcile(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	playlists []models.SourcePlaylist,
	opts BulkReconcileOpts,
) (*BulkReconcileResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("trackmatch_reports_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkReconcileResult{
		TotalPlaylists:  len(playlists),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistReconcileResult, 0, len(playlists)),
	}

	jobs := make(chan reconcileJob, len(playlists))
	results := make(chan PlaylistReconcileResult, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.reconcileWorker(ctx, &wg, progress, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		seen := make(map[string]bool, len(playlists))
		for i, pl := range playlists {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if seen[pl.ID] {
				results <- PlaylistReconcileResult{
					PlaylistID:   pl.ID,
					PlaylistName: displayName(pl),
					Error:        fmt.Errorf("%w: duplicate playlist id %q", shared.ErrInvalidInput, pl.ID),
				}
				continue
			}
			seen[pl.ID] = true
			jobs <- reconcileJob{step: i + 1, total: len(playlists), playlist: pl}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Succeeded++
			e.sendProgress(progress, reconcileCompletedUpdate(completed, len(playlists), res.PlaylistName, res.Result.Statistics))
		} else {
			result.Failed++
			e.sendProgress(progress, reconcileFailedUpdate(completed, len(playlists), res.PlaylistName, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "reconcile_manifest.json")
	if err := formatter.WriteManifest(ManifestFor(result, e.now()), manifestPath); err != nil {
		return result, fmt.Errorf("reconcile completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", shared.ErrCanceled, err)
	}
	return result, nil
}

// reconcileWorker reconciles playlists from the jobs channel until it closes.
func (e *PlaylistEngine) reconcileWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	progress chan<- ProgressUpdate,
	jobs <-chan reconcileJob,
	results chan<- PlaylistReconcileResult,
	opts BulkReconcileOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.sendProgress(progress, reconcileStartedUpdate(job.step, job.total, displayName(job.playlist)))
		results <- e.reconcileSingle(ctx, job.playlist, opts)
	}
}

// reconcileSingle reconciles one playlist and writes its report.
func (e *PlaylistEngine) reconcileSingle(ctx context.Context, pl models.SourcePlaylist, opts BulkReconcileOpts) PlaylistReconcileResult {
	res := PlaylistReconcileResult{PlaylistID: pl.ID, PlaylistName: displayName(pl)}

	rec, err := e.Reconcile(ctx, nil, pl, opts.Reconcile)
	res.Result = rec
	if err != nil {
		res.Error = err
		return res
	}

	path, err := formatter.WriteReport(ReportFor(rec), opts.Format, opts.OutputDir)
	if err != nil {
		res.Error = fmt.Errorf("report failed: %w", err)
		return res
	}
	res.ReportFile = path
	res.Success = true
	return res
}

// ReportFor converts a reconciliation result into a printable report.
func ReportFor(r *ReconcileResult) formatter.RunReport {
	return formatter.RunReport{
		PlaylistID:   r.Playlist.ID,
		PlaylistName: r.Playlist.Name,
		RunID:        r.RunID,
		Matches:      r.Matches,
		Statistics:   r.Statistics,
		Diff:         r.Diff,
		UpToDate:     r.UpToDate,
		Duration:     r.Duration,
	}
}

// ManifestFor summarizes a bulk run for serialization.
func ManifestFor(r *BulkReconcileResult, at time.Time) formatter.Manifest {
	m := formatter.Manifest{
		GeneratedAt:     at,
		OutputDirectory: r.OutputDirectory,
		Total:           r.TotalPlaylists,
		Succeeded:       r.Succeeded,
		Failed:          r.Failed,
		Entries:         make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{
			PlaylistID:   res.PlaylistID,
			PlaylistName: res.PlaylistName,
			Success:      res.Success,
			ReportFile:   res.ReportFile,
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		if res.Result != nil {
			stats := res.Result.Statistics
			entry.Statistics = &stats
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}
