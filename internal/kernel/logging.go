package kernel

import (
	"log/slog"
	"os"
)

// InitLogging configures the package-level logger used by kernel
// subsystems. Callers get a *slog.Logger pre-tagged with "subsystem"
// via Sub, so fs logging can be quieted independently from sched
// logging without a gated global flag per component.
func InitLogging(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Sub returns a child logger tagged with subsystem, the idiom every
// kernel package should use instead of holding its own gated debug flag.
func Sub(log *slog.Logger, subsystem string) *slog.Logger {
	return log.With("subsystem", subsystem)
}
