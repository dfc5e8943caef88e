package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/gwillem/rover/pkg/arbiter"
	"github.com/gwillem/rover/pkg/capture"
	"github.com/gwillem/rover/pkg/decision"
	"github.com/gwillem/rover/pkg/logging"
	"github.com/gwillem/rover/pkg/neural"
	"github.com/gwillem/rover/pkg/robot"
	"github.com/gwillem/rover/pkg/sensors"
)

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist yet.
func loadConfig() (*robot.Config, bool, error) {
	ok, err := afero.Exists(afero.NewOsFs(), opts.Config)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return robot.DefaultConfig(), false, nil
	}
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func logLevel(cfg *robot.Config) string {
	if opts.LogLevel != "" {
		return opts.LogLevel
	}
	return cfg.LogLevel
}

func newLogger(w io.Writer, cfg *robot.Config) zerolog.Logger {
	return logging.New(w, logLevel(cfg))
}

func openCapture(cfg *robot.Config, logger zerolog.Logger) *capture.Store {
	path := cfg.Capture.Path
	if path == "" {
		path = capture.DefaultPath
	}
	return capture.NewStore(afero.NewOsFs(), path, logger)
}

// rig wires the rover's parts together.
type rig struct {
	cfg    *robot.Config
	logger zerolog.Logger
	fs     afero.Fs

	store    *capture.Store
	recorder *capture.Recorder
	exporter *capture.Exporter
	engine   *neural.Engine
	arb      *arbiter.Arbiter

	ranger *sensors.SerialRanger // nil when simulated
	bench  *sensors.Static       // non-nil when simulated
	drive  *robot.Drive          // nil when simulated
}

// openRig opens the hardware described by cfg. With sim set, a fixed
// distance provider and a logging actuator stand in for the sensor board
// and the wheels.
func openRig(cfg *robot.Config, logger zerolog.Logger, sim bool) (*rig, error) {
	r := &rig{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
	}

	r.store = openCapture(cfg, logger)
	r.recorder = capture.NewRecorder(r.store)
	r.exporter = capture.NewExporter(r.store)

	r.engine = neural.NewEngine(logger)
	if cfg.Model.Path != "" {
		if err := r.engine.LoadFile(r.fs, cfg.Model.Path); err != nil {
			logger.Warn().Err(err).Msg("no model, autonomous mode will hold still")
		}
	}

	var provider sensors.Provider
	var actuator arbiter.Actuator
	if sim {
		r.bench = sensors.NewStatic(1.0)
		provider = r.bench
		actuator = robot.NewLogSink(logger)
	} else {
		if cfg.Sensors.Port == "" || cfg.Drive.Port == "" {
			return nil, errors.New("ports not configured, run 'rover setup' first or use --sim")
		}
		ranger, err := sensors.OpenSerial(cfg.Sensors.Port, cfg.Sensors.BaudRate, logger)
		if err != nil {
			return nil, err
		}
		drive, err := robot.NewDrive(cfg.Drive)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("create drive: %w", err), ranger.Close())
		}
		r.ranger = ranger
		r.drive = drive
		provider = ranger
		actuator = drive
	}

	provider = sensors.NewCalibrated(provider, cfg.Calibration.Distance)
	arb, err := arbiter.New(arbiter.Config{
		Decider:  decision.New(provider, r.engine, logger),
		Actuator: actuator,
		Recorder: r.recorder,
		Speed:    cfg.Drive.Speed,
		Logger:   logger,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.arb = arb
	return r, nil
}

// start runs the sensor reader and the control loop until ctx is done. The
// returned function waits for both to finish.
func (r *rig) start(ctx context.Context) func() {
	var wg sync.WaitGroup

	if r.drive != nil {
		if err := r.drive.Enable(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("enable wheels")
		}
	}

	if r.ranger != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.ranger.Run(ctx); err != nil {
				r.logger.Error().Err(err).Msg("sensor reader stopped")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.arb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("control loop stopped")
		}
	}()

	return wg.Wait
}

// Close releases hardware and ends any open capture session.
func (r *rig) Close() error {
	var errs []error
	if r.recorder != nil {
		if err := r.recorder.Disable(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.drive != nil {
		if err := r.drive.Disable(context.Background()); err != nil {
			errs = append(errs, err)
		}
		if err := r.drive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.ranger != nil {
		if err := r.ranger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
