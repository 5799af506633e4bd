package interfaces

//go:generate moq -out mocks/repository_mock.go -pkg mocks . RunRepository

import (
	"context"

	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// RunRepository persists analysis run records
type RunRepository interface {
	PutRun(ctx context.Context, run *model.RunRecord) error
	// GetRun returns model.ErrRunNotFound when the run does not exist
	GetRun(ctx context.Context, id types.RunID) (*model.RunRecord, error)
	// ListRuns returns runs newest first; limit <= 0 returns all runs
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)

	// Close closes the repository connection
	Close() error
}
