package neural

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/rover/pkg/motion"
)

// identityModel maps feature i to output i for the first five features.
func identityModel() ModelSpec {
	w := make([][]float64, motion.NumCommands)
	for i := range w {
		w[i] = make([]float64, motion.NumFeatures)
		w[i][i] = 1
	}
	return ModelSpec{Layers: []LayerSpec{{
		Weights:    w,
		Bias:       make([]float64, motion.NumCommands),
		Activation: Linear,
	}}}
}

func encode(t *testing.T, spec ModelSpec) []byte {
	t.Helper()
	b, err := json.Marshal(spec)
	require.NoError(t, err)
	return b
}

func TestInferIdentity(t *testing.T) {
	n, err := Build(identityModel())
	require.NoError(t, err)

	got := n.Infer(motion.FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, got, 1e-12)
}

func TestInferTwoLayers(t *testing.T) {
	hidden := [][]float64{
		{1, 0, 0, 0, 0, 0},
		{-1, 0, 0, 0, 0, 0},
	}
	out := [][]float64{{1, 1}, {1, 0}, {0, 1}, {0, 0}, {2, 0}}
	spec := ModelSpec{Layers: []LayerSpec{
		{Weights: hidden, Bias: []float64{0, 0}, Activation: ReLU},
		{Weights: out, Bias: []float64{0, 0, 0, 0.5, 0}, Activation: Linear},
	}}
	n, err := Build(spec)
	require.NoError(t, err)

	got := n.Infer(motion.FeatureVector{-0.5})
	// hidden = relu(-0.5), relu(0.5) = 0, 0.5
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.5, 0.5, 0}, got, 1e-12)
}

func TestActivations(t *testing.T) {
	assert.Equal(t, 0.0, ReLU.apply(-3))
	assert.Equal(t, 3.0, ReLU.apply(3))
	assert.Equal(t, 0.5, Sigmoid.apply(0))
	assert.Equal(t, 0.0, Tanh.apply(0))
	assert.Equal(t, -2.0, Linear.apply(-2))
	assert.Equal(t, -2.0, Activation("").apply(-2))
}

func TestBuildRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelSpec)
	}{
		{"no layers", func(s *ModelSpec) { s.Layers = nil }},
		{"short row", func(s *ModelSpec) { s.Layers[0].Weights[2] = []float64{1, 2} }},
		{"bias count", func(s *ModelSpec) { s.Layers[0].Bias = []float64{0} }},
		{"four outputs", func(s *ModelSpec) {
			s.Layers[0].Weights = s.Layers[0].Weights[:4]
			s.Layers[0].Bias = s.Layers[0].Bias[:4]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := identityModel()
			tt.mutate(&spec)
			_, err := Build(spec)
			assert.ErrorIs(t, err, ErrShape)
		})
	}
}

func TestBuildRejectsUnknownActivation(t *testing.T) {
	spec := identityModel()
	spec.Layers[0].Activation = "softplus"
	_, err := Build(spec)
	assert.ErrorContains(t, err, "unknown activation")
}

func TestEngineNotReady(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	assert.False(t, e.Ready())

	_, err := e.Infer(motion.FeatureVector{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestEngineLoadKeepsPreviousOnError(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.Load(bytes.NewReader(encode(t, identityModel()))))
	require.True(t, e.Ready())

	err := e.Load(strings.NewReader("{not json"))
	require.Error(t, err)
	assert.True(t, e.Ready())

	scores, err := e.Infer(motion.FeatureVector{1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores[0])
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "model.json", encode(t, identityModel()), 0o644))

	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadFile(fs, "model.json"))
	assert.True(t, e.Ready())

	ok, err := afero.Exists(fs, "model.json")
	require.NoError(t, err)
	assert.True(t, ok, "model restored to its name")
	ok, err = afero.Exists(fs, "model.json"+LoadingSuffix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFileBadModelStaysMarked(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "model.json", []byte(`{"layers":[]}`), 0o644))

	e := NewEngine(zerolog.Nop())
	err := e.LoadFile(fs, "model.json")
	require.ErrorIs(t, err, ErrShape)
	assert.False(t, e.Ready())

	ok, _ := afero.Exists(fs, "model.json"+LoadingSuffix)
	assert.True(t, ok)

	err = e.LoadFile(fs, "model.json")
	assert.ErrorContains(t, err, "failed to load previously")
}

func TestLoadFileMissing(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.LoadFile(afero.NewMemMapFs(), "model.json")
	assert.ErrorContains(t, err, "stat model")
	assert.False(t, e.Ready())
}
