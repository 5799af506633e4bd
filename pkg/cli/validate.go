package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/cli/config"
	"github.com/mortality-lab/kcor/pkg/repository"
	"github.com/mortality-lab/kcor/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var analysisCfg config.Analysis

	return &cli.Command{
		Name:      "validate",
		Usage:     "Read a registry file and report data-quality findings without writing output",
		ArgsUsage: "<input.csv>",
		Flags:     analysisCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("input path is required", goerr.V("args", c.Args().Slice()))
			}

			cfg, err := analysisCfg.Configure(c)
			if err != nil {
				return err
			}

			report, err := usecase.NewAnalysis(repository.NewMemory()).Validate(ctx, cfg, c.Args().Get(0))
			if err != nil {
				return err
			}

			return printQuality(c.Root().Writer, report)
		},
	}
}
