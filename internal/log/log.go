// Package log holds the logger shared by every part of the node. On the boat
// (ONBOARD=1) records are written as JSON lines for the supervisor to collect;
// on a workstation they are written as key=value text.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel accepts the slog level names in any case ("debug", "WARN",
// "info+2"). Anything else means info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func newLogger(w io.Writer, level slog.Level, onboard bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if onboard {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init configures the node logger from LOG_LEVEL. Later calls are ignored.
func Init(level string) {
	once.Do(func() {
		logger = newLogger(os.Stdout, ParseLevel(level), os.Getenv("ONBOARD") == "1")
		slog.SetDefault(logger)
	})
}

// L falls back to info level when Init was never called, as in tests.
func L() *slog.Logger {
	Init("info")
	return logger
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func With(args ...any) *slog.Logger {
	return L().With(args...)
}
