// Package log sets up structured logging for the application: a text
// handler writing to both stdout and a file in the configured log
// directory, with a level that the settings page can change at runtime.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the log file created inside the configured log directory.
const FileName = "kasboek.log"

// Logger owns the slog setup and the runtime-adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *os.File
}

// Setup creates the log directory if needed, opens the log file for
// appending and installs the combined handler as the slog default.
func Setup(logDir, level string) (*Logger, error) {
	lv := new(slog.LevelVar)
	lv.Set(parseLevel(level))

	var w io.Writer = os.Stdout
	var f *os.File
	if strings.TrimSpace(logDir) != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		f = file
		w = io.MultiWriter(os.Stdout, file)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(logger)

	return &Logger{Logger: logger, level: lv, file: f}, nil
}

// SetLevel applies a new level immediately; unknown names fall back to
// INFO, matching the levels the settings endpoint validates.
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// parseLevel maps the settings-file level names onto slog levels. WARNING
// is accepted as an alias for slog's WARN.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
