package logging

import "log/slog"

// Debug logs at debug level when a logger is configured.
func Debug(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs at info level when a logger is configured.
func Info(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning when a logger is configured.
func Warn(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error under the "error" key when a logger is configured.
func Error(logger *slog.Logger, msg string, err error, args ...any) {
	if logger == nil {
		return
	}
	if err != nil {
		args = append(args, "error", err)
	}
	logger.Error(msg, args...)
}

// Attribution returns the origin and actor fields of a schedule change,
// followed by args. An empty actor is omitted so system changes stay terse.
func Attribution(origin, actor string, args ...any) []any {
	out := make([]any, 0, len(args)+4)
	out = append(out, FieldOrigin, origin)
	if actor != "" {
		out = append(out, FieldActor, actor)
	}
	return append(out, args...)
}
