package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runs lists recorded reconciliation runs, newest first.
//
// History lives in the sqlite cache database; other drivers do not record runs.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.openStore(ctx); err != nil {
		return err
	}
	if r.runs == nil {
		return fmt.Errorf("%w: run history requires the sqlite cache driver (using %s)", shared.ErrNotImplemented, r.config.Cache.Driver)
	}

	runs, err := r.runs.List(ctx, cmd.String("playlist"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}
	if len(runs) == 0 {
		r.writePlain("No recorded runs\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := ""
		if run.CompletedAt != nil {
			finished = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			fmt.Sprint(run.Sequence),
			run.ContainerID,
			string(run.Status),
			fmt.Sprintf("%d/%d", run.Statistics.Matched, run.Statistics.Total),
			fmt.Sprint(run.QueriedCount),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			run.ErrorMessage,
		})
	}
	r.writePlain("%s\n", renderTable(
		[]string{"#", "Playlist", "Status", "Matched", "Queried", "Started", "Took", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "runs",
		Aliases: []string{"history"},
		Usage:   "List recorded reconciliation runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only runs for this playlist id",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
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
		Action: r.Runs,
	}
}
