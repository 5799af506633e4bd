package apperr_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/utils/apperr"
)

func newContext(buf *bytes.Buffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return ctxlog.With(context.Background(), logger)
}

func TestHandle(t *testing.T) {
	t.Run("logs error", func(t *testing.T) {
		var buf bytes.Buffer
		apperr.Handle(newContext(&buf), goerr.New("workbook failed", goerr.V("path", "out.xlsx")))
		gt.S(t, buf.String()).Contains("level=ERROR")
		gt.S(t, buf.String()).Contains("workbook failed")
	})

	t.Run("cancellation is a warning", func(t *testing.T) {
		var buf bytes.Buffer
		apperr.Handle(newContext(&buf), goerr.Wrap(context.Canceled, "interrupted"))
		gt.S(t, buf.String()).Contains("level=WARN")
	})

	t.Run("nil is ignored", func(t *testing.T) {
		var buf bytes.Buffer
		apperr.Handle(newContext(&buf), nil)
		gt.Equal(t, buf.Len(), 0)
	})
}
