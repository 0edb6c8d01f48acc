package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// New creates the application logger on stderr, keeping stdout free for
// probe results. Unknown level strings fall back to INFO with a warning.
func New(logLevelStr string) *slog.Logger {
	var level slog.Level
	warnBadLevel := false
	switch strings.ToUpper(logLevelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		warnBadLevel = true
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006/01/02 15:04:05"))
				}
			}
			return a
		},
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, opts))
	if warnBadLevel {
		log.Warn("Invalid log level specified, defaulting to INFO.", "provided_level", logLevelStr)
	}
	return log
}
