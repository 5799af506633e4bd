package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/cli/config"
	"github.com/mortality-lab/kcor/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdRun() *cli.Command {
	var (
		analysisCfg config.Analysis
		repoCfg     config.Repository
		slackCfg    config.Slack
	)

	flags := joinFlags(
		analysisCfg.Flags(),
		repoCfg.Flags(),
		slackCfg.Flags(),
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Build enrollment cohorts from a registry file and write the KCOR workbook",
		ArgsUsage: "<input.csv> <output.xlsx>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return goerr.New("input and output paths are required", goerr.V("args", c.Args().Slice()))
			}
			input, output := c.Args().Get(0), c.Args().Get(1)

			cfg, err := analysisCfg.Configure(c)
			if err != nil {
				return err
			}

			logger := ctxlog.From(ctx)
			logger.Info("Starting analysis",
				"analysis", analysisCfg,
				"repository", repoCfg,
				"slack", slackCfg,
			)

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			notifier, err := slackCfg.Configure(ctx)
			if err != nil {
				return err
			}

			var opts []usecase.AnalysisOption
			if notifier != nil {
				opts = append(opts, usecase.WithNotifier(notifier))
			}

			run, err := usecase.NewAnalysis(repo, opts...).Run(ctx, cfg, input, output)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "run %s %s: %s\n", run.ID, run.Status, output)
			return printSeries(c.Root().Writer, run)
		},
	}
}
