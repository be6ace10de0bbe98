package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Debug mode lowers the level so the
// silent-with-logging failure paths become visible during troubleshooting.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
