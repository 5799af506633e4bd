package interfaces

//go:generate moq -out mocks/notifier_mock.go -pkg mocks . Notifier

import (
	"context"

	"github.com/mortality-lab/kcor/pkg/domain/model"
)

// Notifier announces finished analysis runs
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.RunRecord) error
}
