package config

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Flag names that override YAML settings only when given explicitly
const (
	flagEnroll              = "enroll"
	flagBySex               = "by-sex"
	flagMaxDose             = "max-dose"
	flagWorkers             = "workers"
	flagHorizonWeeks        = "horizon-weeks"
	flagAnalysisOffsetWeeks = "analysis-offset-weeks"
	flagSchema              = "schema"
)

// Analysis holds the analysis parameters given on the command line
type Analysis struct {
	ConfigPath          string
	Enrollments         []string
	BySex               bool
	MaxDose             int
	Workers             int
	HorizonWeeks        int
	AnalysisOffsetWeeks int
	Schema              string
}

// Flags returns CLI flags for Analysis configuration
func (a *Analysis) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with analysis parameters",
			Category:    "Analysis",
			Sources:     cli.EnvVars("KCOR_CONFIG"),
			Destination: &a.ConfigPath,
		},
		&cli.StringSliceFlag{
			Name:        flagEnroll,
			Usage:       "Enrollment ISO week YYYY-WW (repeatable)",
			Category:    "Analysis",
			Destination: &a.Enrollments,
		},
		&cli.BoolFlag{
			Name:        flagBySex,
			Usage:       "Stratify cohorts by sex",
			Category:    "Analysis",
			Destination: &a.BySex,
		},
		&cli.IntFlag{
			Name:        flagMaxDose,
			Usage:       "Highest dose group; later doses collapse into it",
			Category:    "Analysis",
			Destination: &a.MaxDose,
		},
		&cli.IntFlag{
			Name:        flagWorkers,
			Usage:       "Enrollment cohorts analyzed in parallel",
			Category:    "Analysis",
			Sources:     cli.EnvVars("KCOR_WORKERS"),
			Destination: &a.Workers,
		},
		&cli.IntFlag{
			Name:        flagHorizonWeeks,
			Usage:       "Length of the KCOR analysis window in weeks (0 = to end of data)",
			Category:    "Analysis",
			Destination: &a.HorizonWeeks,
		},
		&cli.IntFlag{
			Name:        flagAnalysisOffsetWeeks,
			Usage:       "Weeks between enrollment and the start of the KCOR analysis window",
			Category:    "Analysis",
			Destination: &a.AnalysisOffsetWeeks,
		},
		&cli.StringFlag{
			Name:        flagSchema,
			Usage:       "Registry column schema (english, czech; empty = detect)",
			Category:    "Analysis",
			Destination: &a.Schema,
		},
	}
}

// Configure resolves the analysis configuration: defaults, then the YAML
// file, then explicitly set flags
func (a *Analysis) Configure(cmd *cli.Command) (*model.AnalysisConfig, error) {
	cfg := model.DefaultAnalysisConfig()
	if a.ConfigPath != "" {
		loaded, err := LoadAnalysisConfigFromFile(a.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet(flagEnroll) {
		cfg.Enrollments = a.Enrollments
	}
	if cmd.IsSet(flagBySex) {
		cfg.StratifyBySex = a.BySex
	}
	if cmd.IsSet(flagMaxDose) {
		cfg.MaxDose = a.MaxDose
	}
	if cmd.IsSet(flagWorkers) {
		cfg.Workers = a.Workers
	}
	if cmd.IsSet(flagHorizonWeeks) {
		cfg.KCOR.HorizonWeeks = a.HorizonWeeks
	}
	if cmd.IsSet(flagAnalysisOffsetWeeks) {
		cfg.KCOR.AnalysisOffsetWeeks = a.AnalysisOffsetWeeks
	}
	if cmd.IsSet(flagSchema) {
		cfg.Schema = a.Schema
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogValue returns structured log value
func (a Analysis) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("config", a.ConfigPath),
		slog.Any("enrollments", a.Enrollments),
		slog.Bool("by_sex", a.BySex),
	)
}

// LoadAnalysisConfigFromFile loads analysis parameters from a YAML file.
// Keys absent from the file keep their default values.
func LoadAnalysisConfigFromFile(path string) (*model.AnalysisConfig, error) {
	if path == "" {
		return nil, goerr.New("configuration file path is required")
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "configuration file not found",
				goerr.V("path", path), goerr.T(model.TagInvalidConfig))
		}
		return nil, goerr.Wrap(err, "failed to read configuration file",
			goerr.V("path", path))
	}

	// Parse YAML over defaults
	config := model.DefaultAnalysisConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse YAML configuration",
			goerr.V("path", path), goerr.T(model.TagInvalidConfig))
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration",
			goerr.V("path", path))
	}

	return config, nil
}
