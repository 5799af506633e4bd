package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"github.com/mortality-lab/kcor/pkg/service/cohort"
	"github.com/mortality-lab/kcor/pkg/service/registry"
	"github.com/mortality-lab/kcor/pkg/service/workbook"
	"github.com/mortality-lab/kcor/pkg/utils/apperr"
	"github.com/mortality-lab/kcor/pkg/utils/async"
	"gopkg.in/yaml.v3"
)

// Analysis implements AnalysisUseCase and RunUseCase
type Analysis struct {
	repo     interfaces.RunRepository
	notifier interfaces.Notifier
}

// AnalysisOption is a functional option for configuring Analysis
type AnalysisOption func(*Analysis)

// WithNotifier announces every finished run
func WithNotifier(notifier interfaces.Notifier) AnalysisOption {
	return func(a *Analysis) {
		a.notifier = notifier
	}
}

// NewAnalysis creates a new Analysis use case
func NewAnalysis(repo interfaces.RunRepository, opts ...AnalysisOption) *Analysis {
	a := &Analysis{repo: repo}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the pipeline: read the registry, build one cohort table per
// enrollment week in parallel, derive rates and hazard series, and write the
// workbook. The run is recorded whether it succeeds or fails.
func (a *Analysis) Run(ctx context.Context, cfg *model.AnalysisConfig, inputPath, outputPath string) (*model.RunRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	run := model.NewRunRecord(inputPath, outputPath)
	logger := ctxlog.From(ctx).With("run_id", run.ID)
	ctx = ctxlog.With(ctx, logger)

	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode analysis config")
	}
	run.ConfigYAML = string(snapshot)

	if err := a.repo.PutRun(ctx, run); err != nil {
		return nil, goerr.Wrap(err, "failed to record run start", goerr.V("run_id", run.ID))
	}
	logger.Info("analysis started", "input", inputPath, "output", outputPath, "config", cfg)

	results, report, runErr := a.execute(ctx, cfg, inputPath, outputPath)
	if report != nil {
		run.Records = report.Records
		run.Dropped = report.Dropped
		run.Warnings = report.Counts()
	}
	for _, r := range results {
		run.Enrollments = append(run.Enrollments, r.Summary())
	}
	run.Finish(runErr)

	if err := a.repo.PutRun(ctx, run); err != nil {
		if runErr == nil {
			return run, goerr.Wrap(err, "failed to record run result", goerr.V("run_id", run.ID))
		}
		apperr.Handle(ctx, goerr.Wrap(err, "failed to record run result", goerr.V("run_id", run.ID)))
	}
	a.notify(ctx, run)

	if runErr != nil {
		return run, runErr
	}
	logger.Info("analysis finished",
		"duration", run.Duration().Round(time.Millisecond),
		"enrollments", len(run.Enrollments),
		"records", run.Records,
		"dropped", run.Dropped,
	)
	return run, nil
}

func (a *Analysis) execute(ctx context.Context, cfg *model.AnalysisConfig, inputPath, outputPath string) ([]*model.EnrollmentResult, *model.QualityReport, error) {
	people, report, err := a.load(ctx, cfg, inputPath)
	if err != nil {
		return nil, report, err
	}

	weeks, err := cfg.EnrollmentWeeks()
	if err != nil {
		return nil, report, err
	}

	pipeline := newPipeline(cfg)
	results, err := async.Map(ctx, cfg.Workers, weeks, func(ctx context.Context, enrollment model.Week) (*model.EnrollmentResult, error) {
		return pipeline.analyze(ctx, people, enrollment)
	})
	if err != nil {
		return nil, report, err
	}

	writer := workbook.New(workbook.Options{
		BySex:              cfg.StratifyBySex,
		StandardPersonTime: pipeline.standardizer.Weights().Total(),
	})
	if err := writer.Write(ctx, outputPath, results); err != nil {
		return results, report, err
	}
	return results, report, nil
}

// Validate reads the registry and reports data-quality findings without
// building any cohort
func (a *Analysis) Validate(ctx context.Context, cfg *model.AnalysisConfig, inputPath string) (*model.QualityReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_, report, err := a.load(ctx, cfg, inputPath)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (a *Analysis) load(ctx context.Context, cfg *model.AnalysisConfig, inputPath string) ([]model.Individual, *model.QualityReport, error) {
	report := model.NewQualityReport()
	people, err := registry.New(cfg.Schema, cfg.Columns).ReadFile(ctx, inputPath, report)
	if err != nil {
		return nil, report, err
	}
	people = cohort.New(cohort.OptionsFrom(cfg)).Inspect(ctx, people, report)

	ctxlog.From(ctx).Info("registry loaded", "path", inputPath, "quality", report)
	return people, report, nil
}

func (a *Analysis) notify(ctx context.Context, run *model.RunRecord) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.NotifyRun(ctx, run); err != nil {
		apperr.Handle(ctx, goerr.Wrap(err, "failed to notify run", goerr.V("run_id", run.ID)))
	}
}

// GetRun retrieves a recorded run
func (a *Analysis) GetRun(ctx context.Context, id types.RunID) (*model.RunRecord, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrRunNotFound, "invalid run ID", goerr.V("id", id))
	}
	return a.repo.GetRun(ctx, id)
}

// ListRuns lists recorded runs newest first
func (a *Analysis) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	return a.repo.ListRuns(ctx, limit)
}

var (
	_ AnalysisUseCase = (*Analysis)(nil)
	_ RunUseCase      = (*Analysis)(nil)
)
