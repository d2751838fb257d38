package logger

import (
	"context"
	"log/slog"
	"sync"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
	fieldsKey
)

// With returns a context whose logger carries fields.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, loggerKey, From(ctx).With(fields...))
}

// From returns the context logger, or the package default.
func From(ctx context.Context) *slog.Logger {
	return FromOr(ctx, LoggerWrapper())
}

func FromOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// WithTraceID stores the trace id and adds it to the context logger.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, traceKey, traceID)
	return With(ctx, "trace_id", traceID)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}

// Fields collects key/value pairs while a request is handled. Handlers deep
// in the chain add to it with Annotate; the access log emits them once.
type Fields struct {
	mu sync.Mutex
	kv []any
}

func WithFields(ctx context.Context) (context.Context, *Fields) {
	f := &Fields{}
	return context.WithValue(ctx, fieldsKey, f), f
}

// Annotate is a no-op when ctx has no Fields.
func Annotate(ctx context.Context, kv ...any) {
	f, ok := ctx.Value(fieldsKey).(*Fields)
	if !ok {
		return
	}
	f.mu.Lock()
	f.kv = append(f.kv, kv...)
	f.mu.Unlock()
}

func (f *Fields) Args() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.kv...)
}
