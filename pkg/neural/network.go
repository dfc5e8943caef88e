// Package neural runs the small dense network that scores drive commands.
//
// Models are JSON documents listing fully connected layers:
//
//	{"layers": [
//	  {"weights": [[...6 values...], ...], "bias": [...], "activation": "relu"},
//	  {"weights": [[...], ...], "bias": [...5 values...], "activation": "linear"}
//	]}
//
// weights[i][j] connects input j to output i.
package neural

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gwillem/rover/pkg/motion"
)

var (
	// ErrNotReady is returned by Infer when no model is loaded.
	ErrNotReady = errors.New("model not loaded")
	// ErrShape is returned when a model does not map NumFeatures inputs to
	// NumCommands outputs.
	ErrShape = errors.New("model shape mismatch")
)

// Activation names a layer's element-wise output function.
type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
)

func (a Activation) apply(v float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, v)
	case Tanh:
		return math.Tanh(v)
	case Sigmoid:
		return 1 / (1 + math.Exp(-v))
	default:
		return v
	}
}

// LayerSpec is the serialized form of one dense layer.
type LayerSpec struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// ModelSpec is the serialized form of a network.
type ModelSpec struct {
	Layers []LayerSpec `json:"layers"`
}

type layer struct {
	weights    *mat.Dense
	bias       *mat.VecDense
	activation Activation
}

// Network is a loaded, immutable dense network.
type Network struct {
	layers []layer
}

// Decode reads a JSON model and builds a Network.
func Decode(r io.Reader) (*Network, error) {
	var spec ModelSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse model JSON: %w", err)
	}
	return Build(spec)
}

// Build validates spec and builds a Network from it.
func Build(spec ModelSpec) (*Network, error) {
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrShape)
	}

	in := motion.NumFeatures
	net := &Network{layers: make([]layer, 0, len(spec.Layers))}
	for i, ls := range spec.Layers {
		out := len(ls.Weights)
		if out == 0 {
			return nil, fmt.Errorf("%w: layer %d has no outputs", ErrShape, i)
		}
		if len(ls.Bias) != out {
			return nil, fmt.Errorf("%w: layer %d has %d biases for %d outputs", ErrShape, i, len(ls.Bias), out)
		}
		switch ls.Activation {
		case "", Linear, ReLU, Tanh, Sigmoid:
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, ls.Activation)
		}

		data := make([]float64, 0, out*in)
		for r, row := range ls.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("%w: layer %d row %d has %d weights, want %d", ErrShape, i, r, len(row), in)
			}
			data = append(data, row...)
		}

		bias := make([]float64, out)
		copy(bias, ls.Bias)
		net.layers = append(net.layers, layer{
			weights:    mat.NewDense(out, in, data),
			bias:       mat.NewVecDense(out, bias),
			activation: ls.Activation,
		})
		in = out
	}

	if in != motion.NumCommands {
		return nil, fmt.Errorf("%w: %d outputs, want %d", ErrShape, in, motion.NumCommands)
	}
	return net, nil
}

// Infer runs a forward pass and returns one score per command.
func (n *Network) Infer(features motion.FeatureVector) []float64 {
	x := mat.NewVecDense(motion.NumFeatures, features[:])
	for _, l := range n.layers {
		rows, _ := l.weights.Dims()
		y := mat.NewVecDense(rows, nil)
		y.MulVec(l.weights, x)
		y.AddVec(y, l.bias)
		for i := 0; i < rows; i++ {
			y.SetVec(i, l.activation.apply(y.AtVec(i)))
		}
		x = y
	}

	scores := make([]float64, x.Len())
	for i := range scores {
		scores[i] = x.AtVec(i)
	}
	return scores
}
