// Package logging sets up the application log file. The TUI owns the
// terminal, so nothing may write to stderr while the program runs; logs go
// to a rotating file in the data directory instead.
package logging

import (
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup returns a logger writing to <dataDir>/tabtrail.log with rotation.
func Setup(dataDir string, level slog.Level) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "tabtrail.log"),
		MaxSize:    5, // MB
		MaxBackups: 2,
		Compress:   true,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
