package services

import "context"

type ctxKey int

const (
	ctxJobID ctxKey = iota
	ctxRunID
	ctxStage
	ctxRequestID
)

// WithJobID binds the durable queue job id to ctx.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxJobID, id)
}

func JobIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxJobID).(int64)
	return id, ok
}

// WithRunID binds the in-memory task run id. Blank ids leave ctx unchanged.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withLabel(ctx, ctxRunID, runID)
}

func RunIDFromContext(ctx context.Context) (string, bool) { return label(ctx, ctxRunID) }

// WithStage records which pipeline step is running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withLabel(ctx, ctxStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return label(ctx, ctxStage) }

// WithRequestID carries an HTTP correlation id into downstream logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withLabel(ctx, ctxRequestID, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return label(ctx, ctxRequestID) }

func withLabel(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func label(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}
