package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/trackmatch/internal/cache"
	"github.com/desertthunder/trackmatch/internal/formatter"
	"github.com/desertthunder/trackmatch/internal/models"
	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList prints one line per cached snapshot.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	all, err := snapshots.All(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(all, cmd.Bool("pretty"))
	}
	if len(all) == 0 {
		r.writePlain("No cached snapshots\n")
		return nil
	}

	rows := make([][]string, 0, len(all))
	for _, s := range all {
		rows = append(rows, []string{
			s.ContainerID,
			s.Name,
			fmt.Sprint(s.TrackCount),
			fmt.Sprintf("%d/%d", s.Statistics.Matched, s.Statistics.Total),
			s.VersionMarker,
			s.ExportedAt.Format("2006-01-02 15:04"),
		})
	}
	r.writePlain("%s\n", renderTable(
		[]string{"ID", "Name", "Tracks", "Matched", "Version", "Exported"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

// CacheShow prints every cached entry of one snapshot.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	snapshot, ok := snapshots.Load(ctx, id)
	if !ok {
		return fmt.Errorf("%w: no cached snapshot for %s", shared.ErrNotFound, id)
	}

	if cmd.Bool("json") {
		return r.writeJSON(snapshot, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%s)", snapshot.Name, snapshot.ContainerID))
	r.writePlain("Version: %s\nExported: %s\nRun: %s\n", snapshot.VersionMarker, snapshot.ExportedAt.Format("2006-01-02 15:04:05"), snapshot.RunID)
	r.writePlain("%s\n", statisticsTable(snapshot.Statistics))

	rows := make([][]string, 0, len(snapshot.Tracks))
	for _, id := range sortedKeys(snapshot.Tracks) {
		e := snapshot.Tracks[id]
		candidate := ""
		if e.Matched != nil {
			candidate = fmt.Sprintf("%s - %s", e.Matched.Artist, e.Matched.Title)
		}
		rows = append(rows, []string{
			e.TrackID,
			fmt.Sprintf("%s - %s", e.Artist, e.Title),
			string(e.Status),
			string(e.Strategy),
			fmt.Sprintf("%.3f", e.Score),
			candidate,
			fmt.Sprint(len(e.Candidates)),
		})
	}
	r.writePlain("%s\n", renderTable(
		[]string{"Track", "Source", "Status", "Strategy", "Score", "Candidate", "Alternatives"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	))
	return nil
}

// CacheDiff compares a playlist file with its cached snapshot without querying the catalog.
func (r *Runner) CacheDiff(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: playlist file", shared.ErrMissingArgument)
	}

	playlist, err := formatter.ReadSourceFile(path)
	if err != nil {
		return err
	}

	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	snapshot, _ := snapshots.Load(ctx, playlist.ID)
	diff := cache.Diff(playlist.TrackIDs(), snapshot)
	upToDate := cache.IsUpToDate(snapshot, playlist.VersionMarker)

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			PlaylistID string            `json:"playlistId"`
			UpToDate   bool              `json:"upToDate"`
			Diff       models.DiffResult `json:"diff"`
		}{playlist.ID, upToDate, diff}, cmd.Bool("pretty"))
	}

	titles := make(map[string]string, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		titles[t.ID] = fmt.Sprintf("%s - %s", t.ArtistLine(), t.Title)
	}

	r.writePlainHeader(fmt.Sprintf("Diff: %s", playlist.Name))
	switch {
	case snapshot == nil:
		r.writePlain("No cached snapshot; every track is new\n")
	case upToDate:
		r.writePlain("Version marker matches the cached snapshot\n")
	default:
		r.writePlain("Version marker changed (%s -> %s)\n", snapshot.VersionMarker, playlist.VersionMarker)
	}
	r.writePlain("New: %d  Existing: %d  Removed: %d\n", len(diff.New), len(diff.Existing), len(diff.Removed))

	if len(diff.New) > 0 {
		r.writePlainln("New tracks:")
		for _, id := range diff.New {
			r.writePlain("  + %s  %s\n", id, titles[id])
		}
	}
	if len(diff.Removed) > 0 {
		r.writePlainln("Removed tracks:")
		for _, id := range diff.Removed {
			label := ""
			if e, ok := snapshot.Tracks[id]; ok {
				label = fmt.Sprintf("%s - %s", e.Artist, e.Title)
			}
			r.writePlain("  - %s  %s\n", id, label)
		}
	}
	return nil
}

// CacheClear deletes the cached snapshots named on the command line.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	unlock, err := r.lockCache()
	if err != nil {
		return err
	}
	defer unlock()

	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := snapshots.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		r.writePlain("✓ Cleared %s\n", id)
	}
	return nil
}

// CacheSweep removes snapshots older than cache.max_age_days, or --days when given.
func (r *Runner) CacheSweep(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Cache
	if days := cmd.Int("days"); days > 0 {
		cfg.MaxAgeDays = days
	}

	unlock, err := r.lockCache()
	if err != nil {
		return err
	}
	defer unlock()

	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	removed, err := snapshots.ClearExpired(ctx, cfg.MaxAge())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(removed, cmd.Bool("pretty"))
	}
	if len(removed) == 0 {
		r.writePlain("Nothing older than %d days\n", cfg.MaxAgeDays)
		return nil
	}
	r.writePlain("✓ Removed %d snapshots: %s\n", len(removed), strings.Join(removed, ", "))
	return nil
}

// CacheResolve promotes a stored candidate to a manual match.
func (r *Runner) CacheResolve(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 3 {
		return fmt.Errorf("%w: expected <playlist id> <track id> <candidate index>", shared.ErrMissingArgument)
	}

	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: candidate index %q", shared.ErrInvalidArgument, args[2])
	}

	unlock, err := r.lockCache()
	if err != nil {
		return err
	}
	defer unlock()

	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return err
	}

	entry, err := snapshots.Resolve(ctx, args[0], args[1], index)
	if err != nil {
		return err
	}

	r.writePlain("✓ %s now matches %s - %s [%s]\n", entry.TrackID, entry.Matched.Artist, entry.Matched.Title, entry.CandidateID)
	return nil
}

func sortedKeys(entries map[string]models.CachedEntry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// cacheCommand inspects and maintains cached export snapshots
func cacheCommand(r *Runner) *cli.Command {
	jsonFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		}
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain cached export snapshots",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List cached snapshots",
				Flags:   jsonFlags(),
				Action:  r.CacheList,
			},
			{
				Name:  "show",
				Usage: "Show every cached entry of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  jsonFlags(),
				Action: r.CacheShow,
			},
			{
				Name:  "diff",
				Usage: "Compare a playlist file with its cached snapshot",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags:  jsonFlags(),
				Action: r.CacheDiff,
			},
			{
				Name:      "clear",
				Aliases:   []string{"rm"},
				Usage:     "Delete cached snapshots",
				ArgsUsage: "<playlist id>...",
				Action:    r.CacheClear,
			},
			{
				Name:  "sweep",
				Usage: "Remove snapshots older than the retention window",
				Flags: append(jsonFlags(), &cli.IntFlag{
					Name:  "days",
					Usage: "Retention window in days (default: cache.max_age_days)",
				}),
				Action: r.CacheSweep,
			},
			{
				Name:      "resolve",
				Usage:     "Promote a stored candidate to a manual match",
				ArgsUsage: "<playlist id> <track id> <candidate index>",
				Action:    r.CacheResolve,
			},
		},
	}
}
