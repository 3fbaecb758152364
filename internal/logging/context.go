package logging

import "context"

// Unexported struct keys cannot collide with values set by other
// packages.
type (
	loggerKey    struct{}
	requestIDKey struct{}
)

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// FromContext returns the context's logger, falling back to the global
// one. A request ID present in the context is attached as a field.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		logger = global
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return logger.With("request_id", requestID)
	}
	return logger
}

// RequestIDFromContext returns the request ID stored in the context, if
// any.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
