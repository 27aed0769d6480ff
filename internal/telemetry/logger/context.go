package logger

import "context"

type contextKey string

const (
	loggerKey        contextKey = "kraken.logger"
	correlationIDKey contextKey = "kraken.correlation_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context, falling back to Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithCorrelationID tags the context with the id of the request being
// served.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the id set by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// L is FromContext enriched with the correlation id.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := CorrelationIDFromContext(ctx); id != "" {
		l = l.With("correlation_id", id)
	}
	return l
}
