package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

var (
	ErrUnexpectedLogLevel = errors.New("unexpected log level")
)

// Map a configured log level onto slog. ok is false for "none".
func parseLogLevel(logLevel string) (level slog.Level, ok bool, err error) {
	switch logLevel {
	case "none":
		return 0, false, nil
	case "error":
		return slog.LevelError, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "debug":
		return slog.LevelDebug, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrUnexpectedLogLevel, logLevel)
	}
}

// Configure the default slog logger with a log level and an optional output file.
//
// Valid log levels are "none", "error", "warn", "info", "debug".
// Without a logFile the logger writes text to stderr, as stdout may carry audio
// from the pipe backend. With one, JSON lines are appended to it.
//
// Returns the file slog writes to, if any, so it may be closed on exit:
// ```
// logFilePointer, err := utils.ConfigureDefaultLogger(...)
//
//	if logFilePointer != nil{
//		defer logFilePointer.Close()
//	}
//
// ```
func ConfigureDefaultLogger(logLevel string, logFile string, loggerOptions slog.HandlerOptions) (*os.File, error) {
	level, enabled, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if !enabled {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil, nil
	}
	loggerOptions.Level = level

	// --------------------------------------------------------------------------------

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &loggerOptions)))
		return nil, nil
	}

	logFilePointer, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logFilePointer, &loggerOptions)))
	return logFilePointer, nil
}
