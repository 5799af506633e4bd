package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/cli/config"
	"github.com/mortality-lab/kcor/pkg/utils/apperr"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var loggerCfg config.Logger

	app := &cli.Command{
		Name:      "kcor",
		Usage:     "Cohort mortality and KCOR hazard-ratio analysis of vaccination registries",
		Version:   "0.1.0",
		Flags:     loggerCfg.Flags(),
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Configure logger
			logger, err := loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdRun(),
			cmdValidate(),
			cmdRuns(),
			cmdServe(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		apperr.Handle(ctxlog.With(ctx, slog.Default()), err)
		return goerr.Wrap(err, "CLI execution failed")
	}

	return nil
}
