package common

import "context"

// ContainerLogger records progress of a supervised container
type ContainerLogger interface {
	Log(level, message string, metadata map[string]interface{})
}

type contextKey int

const (
	loggerKey contextKey = iota
	playerIDKey
)

// WithLogger adds a container logger to the context
func WithLogger(ctx context.Context, logger ContainerLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger, or a no-op logger if absent
func LoggerFromContext(ctx context.Context) ContainerLogger {
	if logger, ok := ctx.Value(loggerKey).(ContainerLogger); ok {
		return logger
	}
	return &noOpLogger{}
}

// WithPlayerID tags the context with the requesting player
func WithPlayerID(ctx context.Context, playerID int) context.Context {
	return context.WithValue(ctx, playerIDKey, playerID)
}

// PlayerIDFromContext extracts the player id, 0 if untagged
func PlayerIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(playerIDKey).(int); ok {
		return id
	}
	return 0
}

type noOpLogger struct{}

func (l *noOpLogger) Log(level, message string, metadata map[string]interface{}) {}
