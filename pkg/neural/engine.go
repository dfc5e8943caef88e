package neural

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/gwillem/rover/pkg/motion"
)

// LoadingSuffix is appended to a model file's name while it is being loaded.
// A file left with this suffix caused a crash during a previous load and is
// not retried on the next boot.
const LoadingSuffix = ".loading"

// Engine holds the active network. It is safe for concurrent use; a model can
// be swapped while the control loop is inferring.
type Engine struct {
	net    atomic.Pointer[Network]
	logger zerolog.Logger
}

// NewEngine creates an engine with no model loaded.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "neural").Logger()}
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	return e.net.Load() != nil
}

// Infer scores features with the active model.
func (e *Engine) Infer(features motion.FeatureVector) ([]float64, error) {
	n := e.net.Load()
	if n == nil {
		return nil, ErrNotReady
	}
	return n.Infer(features), nil
}

// Set installs n as the active model. A nil n unloads the model.
func (e *Engine) Set(n *Network) {
	e.net.Store(n)
}

// Load decodes a model from r and installs it. The previous model stays
// active if decoding fails.
func (e *Engine) Load(r io.Reader) error {
	n, err := Decode(r)
	if err != nil {
		return err
	}
	e.net.Store(n)
	return nil
}

// LoadFile loads the model at path on fs.
//
// The file is renamed to path+LoadingSuffix for the duration of the load and
// renamed back once the model is installed. A model that fails to decode
// keeps the suffix, so it is skipped on the next attempt until replaced.
func (e *Engine) LoadFile(fs afero.Fs, path string) error {
	loading := path + LoadingSuffix

	if _, err := fs.Stat(path); err != nil {
		if _, lerr := fs.Stat(loading); lerr == nil {
			return fmt.Errorf("model %s failed to load previously; remove %s to retry", path, loading)
		}
		return fmt.Errorf("stat model: %w", err)
	}

	if err := fs.Rename(path, loading); err != nil {
		return fmt.Errorf("mark model loading: %w", err)
	}

	f, err := fs.Open(loading)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	err = e.Load(f)
	f.Close()
	if err != nil {
		e.logger.Error().Err(err).Str("path", path).Msg("model load failed")
		return fmt.Errorf("load model %s: %w", path, err)
	}

	if err := fs.Rename(loading, path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("restore model name: %w", err)
	}
	e.logger.Info().Str("path", path).Msg("model loaded")
	return nil
}
