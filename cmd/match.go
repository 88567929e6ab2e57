package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/trackmatch/internal/formatter"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/desertthunder/trackmatch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Match reconciles one or more source playlist files against the catalog.
//
// A single file is reconciled in place and summarized on screen. Several files, or any
// --report-dir, go through the bulk worker pool which writes one report per playlist.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one playlist file", shared.ErrMissingArgument)
	}

	playlists := make([]models.SourcePlaylist, 0, len(files))
	for _, path := range files {
		playlist, err := formatter.ReadSourceFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		playlists = append(playlists, *playlist)
	}

	unlock, err := r.lockCache()
	if err != nil {
		return err
	}
	defer unlock()

	engine, err := r.newEngine(ctx, cmd.Int("concurrency"))
	if err != nil {
		return err
	}

	opts := tasks.ReconcileOptions{Force: cmd.Bool("force"), DryRun: cmd.Bool("dry-run")}
	asJSON := cmd.Bool("json")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				continue
			}
			switch update.Phase {
			case tasks.LoadCache, tasks.SaveCache:
				r.writePlain("📦 %s\n", update.Message)
			case tasks.DiffTracks:
				r.writePlain("🔀 %s\n", update.Message)
			case tasks.MatchTracks:
				r.writePlain("   🔍 %s\n", update.Message)
			case tasks.Reconcile:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	if len(playlists) == 1 && cmd.String("report-dir") == "" {
		result, err := engine.Reconcile(ctx, progressCh, playlists[0], opts)
		close(progressCh)
		<-done
		if err != nil {
			return err
		}
		return r.printReconcile(result, cmd)
	}

	bulk, err := engine.BulkReconcile(ctx, progressCh, playlists, tasks.BulkReconcileOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("report-dir"),
		NumWorkers: cmd.Int("workers"),
		Reconcile:  opts,
	})
	close(progressCh)
	<-done
	if bulk != nil {
		if perr := r.printBulk(bulk, cmd); perr != nil {
			return perr
		}
	}
	return err
}

func (r *Runner) printReconcile(result *tasks.ReconcileResult, cmd *cli.Command) error {
	report := tasks.ReportFor(result)

	if out := cmd.String("output"); out != "" {
		data, _, err := formatter.Render(report, cmd.String("format"))
		if err != nil {
			return err
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.logger.Info("report written", "path", out)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Reconciled: %s", result.Playlist.Name))
	r.writePlain("Run: %s\n", result.RunID)
	switch {
	case result.UpToDate && !result.Diff.Changed() && !result.Saved:
		r.writePlain("Snapshot up to date; nothing was queried\n")
	case result.Saved:
		r.writePlain("Queried %d tracks, snapshot saved\n", result.QueriedCount)
	default:
		r.writePlain("Queried %d tracks, snapshot not saved\n", result.QueriedCount)
	}
	if len(result.Diff.Removed) > 0 {
		r.writePlain("Dropped %d removed tracks from the snapshot\n", len(result.Diff.Removed))
	}
	r.writePlain("%s\n", statisticsTable(result.Statistics))

	if cmd.Bool("show-all") {
		r.writePlain("%s\n", matchesTable(result.Matches, false))
	} else if result.Statistics.Matched < result.Statistics.Total {
		r.writePlainln("Tracks needing attention:")
		r.writePlain("%s\n", matchesTable(result.Matches, true))
	}
	return nil
}

func (r *Runner) printBulk(result *tasks.BulkReconcileResult, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(tasks.ManifestFor(result, time.Now()), cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(result.Results))
	for _, res := range result.Results {
		status, matched := "✓", ""
		if !res.Success {
			status = fmt.Sprintf("✗ %v", res.Error)
		}
		if res.Result != nil {
			matched = fmt.Sprintf("%d/%d", res.Result.Statistics.Matched, res.Result.Statistics.Total)
		}
		rows = append(rows, []string{res.PlaylistName, matched, status, res.ReportFile})
	}

	r.writePlain("\n")
	r.writePlainHeader("Bulk Reconcile Complete")
	r.writePlain("%s\n", renderTable(
		[]string{"Playlist", "Matched", "Status", "Report"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
	r.writePlain("Succeeded: %d  Failed: %d\n", result.Succeeded, result.Failed)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return nil
}

// Lookup runs the matching cascade for a single track described by flags.
func (r *Runner) Lookup(ctx context.Context, cmd *cli.Command) error {
	track := models.SourceTrack{
		ID:         "lookup",
		Title:      cmd.String("title"),
		Artists:    cmd.StringSlice("artist"),
		Album:      cmd.String("album"),
		DurationMS: cmd.Int("duration") * 1000,
		ISRC:       cmd.String("isrc"),
	}

	result := r.newOrchestrator().Match(ctx, track)

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", track.ArtistLine(), track.Title))
	r.writePlain("Status: %s\nStrategy: %s\nScore: %.3f\n", result.Status, result.Strategy, result.Score)
	if result.Matched != nil {
		r.writePlain("Match: %s - %s (%s) [%s]\n", result.Matched.Artist, result.Matched.Title, result.Matched.Album, result.Matched.ID)
	}

	if len(result.Candidates) > 0 {
		candidates := make([]models.CandidateTrack, len(result.Candidates))
		scores := make([]float64, len(result.Candidates))
		for i, c := range result.Candidates {
			candidates[i] = c.Candidate
			scores[i] = c.Score
		}
		r.writePlainln("Candidates:")
		r.writePlain("%s\n", candidatesTable(candidates, scores))
	}
	return nil
}

// Search sends a raw query to the catalog and lists what comes back.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	results, err := r.catalogClient().Search(ctx, query, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	if len(results) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}
	r.writePlain("%s\n", candidatesTable(results, nil))
	return nil
}

func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "match",
		Aliases:   []string{"reconcile"},
		Usage:     "Match playlist files (JSON or CSV) against the catalog, reusing cached results",
		ArgsUsage: "<playlist file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Ignore cached snapshots and rematch every track",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Match without writing snapshots back",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Tracks matched in parallel per chunk (default: matching.concurrency)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Playlists reconciled in parallel for bulk runs (max 8)",
				Value: 2,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: json, csv, markdown, txt",
				Value: "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report for a single playlist to this file",
			},
			&cli.StringFlag{
				Name:  "report-dir",
				Usage: "Write one report per playlist plus a manifest into this directory",
			},
			&cli.BoolFlag{
				Name:  "show-all",
				Usage: "List every track, not only those needing attention",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Match,
	}
}

func lookupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lookup",
		Usage: "Run the matching cascade for one track without touching the cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Track title",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Credited artist (repeat for several)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Album title",
			},
			&cli.IntFlag{
				Name:  "duration",
				Usage: "Duration in seconds",
			},
			&cli.StringFlag{
				Name:  "isrc",
				Usage: "Recording identifier",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Lookup,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Send a raw query to the catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}
