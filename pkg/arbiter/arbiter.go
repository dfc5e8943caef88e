// Package arbiter runs the rover's control loop. It decides, once per
// control period, whether the operator or the decision engine drives, and
// applies the result.
package arbiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/gwillem/rover/pkg/motion"
	"github.com/gwillem/rover/pkg/watchdog"
)

// ControlPeriod is the minimum spacing between eligible ticks.
const ControlPeriod = 30 * time.Millisecond

// Actuator applies a command to the drivetrain.
type Actuator interface {
	Move(ctx context.Context, cmd motion.Command, speed float64) error
}

// Decider builds features and picks autonomous commands.
type Decider interface {
	BuildFeatures() motion.FeatureVector
	Decide(features motion.FeatureVector) motion.Command
}

// Recorder receives every manual tick's features and command.
type Recorder interface {
	MaybeAppend(features motion.FeatureVector, cmd motion.Command) (bool, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// State is a snapshot of the arbiter after a tick.
type State struct {
	Mode            motion.Mode          `json:"mode"`
	ManualAction    motion.Command       `json:"manualAction"`
	AutoAction      motion.AutoAction    `json:"autoAction"`
	Applied         motion.Command       `json:"applied"`
	Features        motion.FeatureVector `json:"features"`
	WatchdogTripped bool                 `json:"watchdogTripped"`
	Recorded        bool                 `json:"recorded"`
	Ticks           uint64               `json:"ticks"`
	Timestamp       time.Time            `json:"timestamp"`
	Error           string               `json:"error,omitempty"`
}

// Config holds configuration for the arbiter.
type Config struct {
	Decider  Decider
	Actuator Actuator
	Recorder Recorder // optional
	Clock    Clock    // defaults to SystemClock
	Speed    float64  // percent, (0,100]; defaults to 100
	Period   time.Duration
	Logger   zerolog.Logger
}

// Arbiter owns the control mode and dispatches each tick to the watchdog or
// the decision engine.
type Arbiter struct {
	decider  Decider
	actuator Actuator
	recorder Recorder
	clock    Clock
	speed    float64
	period   time.Duration
	logger   zerolog.Logger
	metrics  metrics

	mu         sync.Mutex
	mode       motion.Mode
	auto       motion.AutoAction
	watchdog   *watchdog.Watchdog
	lastTick   time.Time
	ticked     bool
	tripLogged bool
	running    bool
	state      State
	stateCh    chan State
}

// New creates an arbiter in Manual mode with both actions at Stop.
func New(cfg Config) (*Arbiter, error) {
	if cfg.Actuator == nil {
		return nil, fmt.Errorf("arbiter: actuator is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Speed <= 0 || cfg.Speed > 100 {
		cfg.Speed = 100
	}
	if cfg.Period <= 0 {
		cfg.Period = ControlPeriod
	}

	return &Arbiter{
		decider:  cfg.Decider,
		actuator: cfg.Actuator,
		recorder: cfg.Recorder,
		clock:    cfg.Clock,
		speed:    cfg.Speed,
		period:   cfg.Period,
		logger:   cfg.Logger.With().Str("component", "arbiter").Logger(),
		metrics:  newMetrics(),
		watchdog: watchdog.New(),
		stateCh:  make(chan State, 1),
	}, nil
}

// SetMode switches mode and resets both the manual and the auto action to
// Stop. An undefined mode selects Manual.
func (a *Arbiter) SetMode(mode motion.Mode) {
	if !mode.Valid() {
		mode = motion.Manual
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.mode = mode
	a.watchdog.Reset()
	a.tripLogged = false
	a.auto = motion.AutoStop
	a.logger.Debug().Stringer("mode", mode).Msg("mode set")
}

// SetManualAction accepts an operator command and re-arms the watchdog.
// Undefined commands are stored as Stop.
func (a *Arbiter) SetManualAction(cmd motion.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.watchdog.Arm(cmd)
	a.tripLogged = false
}

// SetAutoAction starts or stops autonomous driving. Undefined values are
// treated as AutoStop.
func (a *Arbiter) SetAutoAction(action motion.AutoAction) {
	if !action.Valid() {
		action = motion.AutoStop
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.auto != action {
		a.logger.Debug().Stringer("action", action).Msg("auto action set")
	}
	a.auto = action
}

// Mode returns the current mode.
func (a *Arbiter) Mode() motion.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// ManualAction returns the last accepted manual command.
func (a *Arbiter) ManualAction() motion.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watchdog.Command()
}

// AutoAction returns the autonomous sub-state.
func (a *Arbiter) AutoAction() motion.AutoAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auto
}

// Snapshot returns the state after the most recent eligible tick, with the
// current mode and actions.
func (a *Arbiter) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	s.Mode = a.mode
	s.ManualAction = a.watchdog.Command()
	s.AutoAction = a.auto
	return s
}

// States returns a channel that receives state updates.
func (a *Arbiter) States() <-chan State {
	return a.stateCh
}

// Period returns the control period.
func (a *Arbiter) Period() time.Duration {
	return a.period
}

// Tick runs one control step at now. It does nothing and returns false if
// less than one control period has passed since the last eligible tick.
// Failures are logged and never returned; the drive falls back to Stop.
func (a *Arbiter) Tick(ctx context.Context, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticked && now.Sub(a.lastTick) < a.period {
		return false
	}
	a.lastTick = now
	a.ticked = true

	features := a.buildFeatures()
	var cmd motion.Command
	tripped := false

	switch {
	case a.mode == motion.Automatic && a.auto == motion.AutoStart:
		cmd = a.decide(features)
	case a.mode == motion.Automatic:
		cmd = motion.Stop
	default:
		cmd = a.watchdog.EffectiveCommand(now)
		tripped = a.watchdog.Tripped() && a.watchdog.Command() != motion.Stop
		if tripped && !a.tripLogged {
			a.logger.Warn().
				Stringer("command", a.watchdog.Command()).
				Dur("timeout", watchdog.Timeout).
				Msg("manual command timed out, stopping")
			a.metrics.trips.Add(ctx, 1)
			a.tripLogged = true
		}
	}
	cmd = cmd.OrStop()

	s := State{
		Mode:            a.mode,
		ManualAction:    a.watchdog.Command(),
		AutoAction:      a.auto,
		Applied:         cmd,
		Features:        features,
		WatchdogTripped: tripped,
		Ticks:           a.state.Ticks + 1,
		Timestamp:       now,
	}

	if err := a.actuator.Move(ctx, cmd, a.speed); err != nil {
		a.logger.Warn().Err(err).Stringer("command", cmd).Msg("apply command failed")
		s.Error = err.Error()
	}
	a.metrics.commands.Add(ctx, 1, metric.WithAttributes(commandAttr(cmd)))

	if a.mode == motion.Manual && a.recorder != nil {
		ok, err := a.recorder.MaybeAppend(features, cmd)
		if err != nil {
			a.logger.Error().Err(err).Msg("capture append failed")
			s.Error = err.Error()
		}
		s.Recorded = ok
	}

	a.metrics.ticks.Add(ctx, 1, metric.WithAttributes(modeAttr(a.mode)))
	a.state = s
	a.sendState(s)
	return true
}

func (a *Arbiter) buildFeatures() motion.FeatureVector {
	if a.decider == nil {
		return motion.SentinelFeatures()
	}
	return a.decider.BuildFeatures()
}

func (a *Arbiter) decide(features motion.FeatureVector) motion.Command {
	if a.decider == nil {
		return motion.Stop
	}
	return a.decider.Decide(features)
}

func (a *Arbiter) sendState(s State) {
	select {
	case a.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-a.stateCh:
		default:
		}
		a.stateCh <- s
	}
}

// Run ticks the arbiter until ctx is done, then applies Stop. The loop
// polls at a third of the control period; Tick enforces the period itself.
func (a *Arbiter) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("already running")
	}
	a.running = true
	a.mu.Unlock()

	a.logger.Info().Dur("period", a.period).Float64("speed", a.speed).Msg("control loop started")

	poll := a.period / 3
	if poll <= 0 {
		poll = time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return ctx.Err()
		case <-ticker.C:
			a.Tick(ctx, a.clock.Now())
		}
	}
}

func (a *Arbiter) shutdown() {
	a.mu.Lock()
	a.running = false
	a.watchdog.Reset()
	a.auto = motion.AutoStop
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.actuator.Move(ctx, motion.Stop, a.speed); err != nil {
		a.logger.Warn().Err(err).Msg("stop on shutdown failed")
	}
	a.logger.Info().Msg("control loop stopped")
}
