package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger returns a console logger on w, or a JSON logger writing to a
// rotated file when path is set.
func newLogger(w io.Writer, level, path string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if path != "" {
		out := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})), out, nil
	}

	plog := pterm.DefaultLogger.WithLevel(ptermLevel(lvl)).WithWriter(w)
	return slog.New(pterm.NewSlogHandler(plog)), nopCloser{}, nil
}

func ptermLevel(lvl slog.Level) pterm.LogLevel {
	switch {
	case lvl <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case lvl <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case lvl <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}
