package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandOrdinals(t *testing.T) {
	cmds := AllCommands()
	require.Len(t, cmds, NumCommands)
	for i, c := range cmds {
		assert.Equal(t, Command(i), c)
		assert.True(t, c.Valid())
	}
}

func TestCommandOrStop(t *testing.T) {
	assert.Equal(t, Forward, Forward.OrStop())
	assert.Equal(t, Stop, Command(-1).OrStop())
	assert.Equal(t, Stop, Command(NumCommands).OrStop())
}

func TestParseCommand(t *testing.T) {
	for _, c := range AllCommands() {
		got, err := ParseCommand(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCommand("sideways")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0, 0},
		{MaxDistance, MaxDistance},
		{2.5, MaxDistance},
		{-0.1, MaxDistance},
		{math.NaN(), MaxDistance},
		{math.Inf(1), MaxDistance},
		{math.Inf(-1), MaxDistance},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%v)", tt.in)
	}
}

func TestFeatureVectorSanitized(t *testing.T) {
	fv := FeatureVector{0.3, math.NaN(), 1.2, 7, -1, 2}
	assert.Equal(t, FeatureVector{0.3, 2, 1.2, 2, 2, 2}, fv.Sanitized())
	// receiver is not modified
	assert.True(t, math.IsNaN(fv[1]))
}

func TestRangingFeatures(t *testing.T) {
	var r Ranging
	for i, a := range Angles() {
		r[i] = Reading{Angle: a, Distance: float64(i) / 10}
	}
	assert.Equal(t, FeatureVector{0, 0.1, 0.2, 0.3, 0.4, 0.5}, r.Features())
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, "manual", Manual.String())
	assert.Equal(t, "auto", Automatic.String())
	assert.False(t, Mode(7).Valid())
	assert.Equal(t, "start", AutoStart.String())
	assert.False(t, AutoAction(-1).Valid())
}
