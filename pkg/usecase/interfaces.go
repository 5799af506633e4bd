package usecase

import (
	"context"

	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// AnalysisUseCase defines the interface for running cohort analyses
type AnalysisUseCase interface {
	// Run executes the whole pipeline from registry file to workbook and
	// records the run
	Run(ctx context.Context, cfg *model.AnalysisConfig, inputPath, outputPath string) (*model.RunRecord, error)

	// Validate reads a registry file and reports data-quality findings only
	Validate(ctx context.Context, cfg *model.AnalysisConfig, inputPath string) (*model.QualityReport, error)
}

// RunUseCase defines the interface for reading recorded runs
type RunUseCase interface {
	// GetRun returns model.ErrRunNotFound when the run does not exist
	GetRun(ctx context.Context, id types.RunID) (*model.RunRecord, error)

	// ListRuns returns runs newest first
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)
}
