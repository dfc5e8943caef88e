package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("port", "/dev/ttyUSB0").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "/dev/ttyUSB0")
}

func TestChannelWriter(t *testing.T) {
	w := NewChannelWriter(2)
	logger := NewPlain(w, "debug")

	logger.Info().Msg("first")
	logger.Info().Msg("second")
	logger.Info().Msg("dropped")

	lines := make([]string, 0, 2)
	for range 2 {
		lines = append(lines, <-w.Lines())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")

	select {
	case l := <-w.Lines():
		t.Fatalf("unexpected line %q", l)
	default:
	}
}

func TestChannelWriterSplitsLines(t *testing.T) {
	w := NewChannelWriter(4)
	n, err := w.Write([]byte("a\nb\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "a", <-w.Lines())
	assert.Equal(t, "b", <-w.Lines())
}
