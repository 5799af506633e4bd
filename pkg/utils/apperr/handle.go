package apperr

import (
	"context"
	"errors"

	"github.com/m-mizutani/ctxlog"
)

// Handle logs an error that cannot be returned to a caller. Cancellation is
// logged as a warning.
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	logger := ctxlog.From(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("operation canceled", "error", err)
		return
	}
	logger.Error("application error", "error", err)
}
