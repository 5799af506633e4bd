package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/cli/config"
	"github.com/mortality-lab/kcor/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdRuns() *cli.Command {
	var (
		repoCfg config.Repository
		limit   int
		asJSON  bool
	)

	flags := joinFlags(
		repoCfg.Flags(),
		[]cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "Number of runs to show, newest first (0 = all)",
				Value:       20,
				Destination: &limit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print runs as JSON",
				Destination: &asJSON,
			},
		},
	)

	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded analysis runs",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := usecase.NewAnalysis(repo).ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(runs); err != nil {
					return goerr.Wrap(err, "failed to encode runs")
				}
				return nil
			}
			return printRuns(w, runs)
		},
	}
}
