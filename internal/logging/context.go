package logging

import (
	"context"
	"log/slog"

	"captioner/internal/services"
)

var contextExtractors = []struct {
	field string
	get   func(context.Context) (string, bool)
}{
	{FieldBatchID, services.BatchIDFromContext},
	{FieldJobPath, services.JobPathFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the batch, job, stage and request attributes carried
// by ctx, in that order.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, ex := range contextExtractors {
		if v, ok := ex.get(ctx); ok {
			fields = append(fields, slog.String(ex.field, v))
		}
	}
	return fields
}

// WithContext binds the attributes from ContextFields to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
