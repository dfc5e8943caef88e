// Package logging builds the zerolog loggers used across the rover.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// parseLevel converts a string log level to a zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a console logger writing to w at level.
func New(w io.Writer, level string) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger()
}

// NewPlain returns a logger with short timestamps and no colors, for
// writers that render text themselves such as the TUI log box.
func NewPlain(w io.Writer, level string) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}
	return zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger()
}

// ChannelWriter delivers each written line on a buffered channel. Lines are
// dropped when the channel is full so logging never blocks the caller.
type ChannelWriter struct {
	ch chan string
}

// NewChannelWriter creates a writer buffering up to size lines.
func NewChannelWriter(size int) *ChannelWriter {
	return &ChannelWriter{ch: make(chan string, size)}
}

// Write implements io.Writer.
func (w *ChannelWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		select {
		case w.ch <- line:
		default:
			// Drop if channel full
		}
	}
	return len(p), nil
}

// Lines returns the channel receiving log lines.
func (w *ChannelWriter) Lines() <-chan string {
	return w.ch
}
