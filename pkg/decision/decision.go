// Package decision picks a drive command from ranging features using an
// injected inference function.
package decision

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/gwillem/rover/pkg/motion"
)

// SensorProvider supplies ranging snapshots.
type SensorProvider interface {
	Distances() motion.Ranging
}

// InferenceEngine maps a feature vector to one score per command, in
// command ordinal order.
type InferenceEngine interface {
	Ready() bool
	Infer(features motion.FeatureVector) ([]float64, error)
}

// Engine is the autonomous decision policy.
type Engine struct {
	sensors SensorProvider
	model   InferenceEngine
	logger  zerolog.Logger
}

// New creates a decision engine.
func New(sensors SensorProvider, model InferenceEngine, logger zerolog.Logger) *Engine {
	return &Engine{
		sensors: sensors,
		model:   model,
		logger:  logger.With().Str("component", "decision").Logger(),
	}
}

// BuildFeatures reads a ranging snapshot and returns it sanitized. The model
// only ever sees clamped, meter-scaled inputs.
func (e *Engine) BuildFeatures() motion.FeatureVector {
	if e.sensors == nil {
		return motion.SentinelFeatures()
	}
	return e.sensors.Distances().Features().Sanitized()
}

// Decide runs inference on features and selects a command. Any failure to
// produce a usable score vector yields Stop.
func (e *Engine) Decide(features motion.FeatureVector) motion.Command {
	if e.model == nil || !e.model.Ready() {
		return motion.Stop
	}

	scores, err := e.model.Infer(features.Sanitized())
	if err != nil {
		e.logger.Warn().Err(err).Msg("inference failed")
		return motion.Stop
	}
	if len(scores) != motion.NumCommands {
		e.logger.Warn().Int("scores", len(scores)).Msg("unexpected score count")
		return motion.Stop
	}

	return Select(scores)
}

// Select returns the command whose score has the largest magnitude. The scan
// is seeded at index 0 (Stop) and only a strictly greater magnitude replaces
// the current pick, so ties resolve to the lowest ordinal. NaN scores never
// win.
//
// Magnitude rather than signed value is deliberate: a strongly negative
// activation counts as much as a strongly positive one.
func Select(scores []float64) motion.Command {
	if len(scores) == 0 {
		return motion.Stop
	}
	best := 0
	for n := 1; n < len(scores) && n < motion.NumCommands; n++ {
		if math.Abs(scores[n]) > math.Abs(scores[best]) {
			best = n
		}
	}
	return motion.Command(best)
}
