package services

import "context"

type contextKey int

const (
	batchIDKey contextKey = iota
	jobPathKey
	stageKey
	requestIDKey
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithBatchID tags ctx with the batch a unit of work belongs to.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withString(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch id set by WithBatchID.
func BatchIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, batchIDKey) }

// WithJobPath tags ctx with the media file being transcribed.
func WithJobPath(ctx context.Context, path string) context.Context {
	return withString(ctx, jobPathKey, path)
}

func JobPathFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, jobPathKey) }

// WithStage tags ctx with the pipeline stage (extract, transcribe, write).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, stageKey) }

// WithRequestID tags ctx with an HTTP correlation id from the web runner.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, requestIDKey) }
