package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/rs/zerolog"

	"github.com/gwillem/rover/pkg/motion"
)

// wheelServo is the subset of a feetech servo the drive uses.
type wheelServo interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	SetOperatingMode(ctx context.Context, mode int) error
	SetVelocity(ctx context.Context, velocity int) error
}

// wheelDirections maps a command to the turning direction of each wheel.
var wheelDirections = map[motion.Command]map[WheelName]int{
	motion.Stop:        {LeftWheel: 0, RightWheel: 0},
	motion.Forward:     {LeftWheel: 1, RightWheel: 1},
	motion.Backward:    {LeftWheel: -1, RightWheel: -1},
	motion.RotateLeft:  {LeftWheel: -1, RightWheel: 1},
	motion.RotateRight: {LeftWheel: 1, RightWheel: -1},
}

// Drive is a differential drive on two feetech servos in wheel mode.
//
// Each Move sets a signed goal velocity per wheel. Velocities are only
// written when the command or speed changes.
type Drive struct {
	bus         *feetech.Bus
	servos      map[WheelName]wheelServo
	calibration Calibration

	mu        sync.Mutex
	last      motion.Command
	lastSpeed float64
}

// NewDrive opens the servo bus on port and creates a drive.
func NewDrive(cfg DriveConfig) (*Drive, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = 1_000_000
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	cal := cfg.Wheels
	if len(cal) == 0 {
		cal = DefaultCalibration()
	}

	servos := make(map[WheelName]wheelServo, len(cal))
	for name, wc := range cal {
		servos[name] = feetech.NewServo(bus, wc.ID, nil)
	}

	d := newDrive(servos, cal)
	d.bus = bus
	return d, nil
}

func newDrive(servos map[WheelName]wheelServo, cal Calibration) *Drive {
	return &Drive{
		servos:      servos,
		calibration: cal,
		last:        motion.Stop,
	}
}

// Close closes the drive's bus connection.
func (d *Drive) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

// Enable switches both wheels to velocity mode at rest and enables torque.
func (d *Drive) Enable(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range AllWheels() {
		s, ok := d.servos[name]
		if !ok {
			continue
		}
		// Torque must be off to change mode
		if err := s.Disable(ctx); err != nil {
			return fmt.Errorf("disable %s wheel: %w", name, err)
		}
		if err := s.SetOperatingMode(ctx, feetech.ModeVelocity); err != nil {
			return fmt.Errorf("set %s wheel mode: %w", name, err)
		}
		if err := s.SetVelocity(ctx, 0); err != nil {
			return fmt.Errorf("stop %s wheel: %w", name, err)
		}
		if err := s.Enable(ctx); err != nil {
			return fmt.Errorf("enable %s wheel: %w", name, err)
		}
	}
	d.last = motion.Stop
	return nil
}

// Disable stops both wheels and disables torque.
func (d *Drive) Disable(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, name := range AllWheels() {
		s, ok := d.servos[name]
		if !ok {
			continue
		}
		if err := s.SetVelocity(ctx, 0); err != nil {
			errs = append(errs, fmt.Errorf("stop %s wheel: %w", name, err))
		}
		if err := s.Disable(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disable %s wheel: %w", name, err))
		}
	}
	d.last = motion.Stop
	return errors.Join(errs...)
}

// Move applies cmd at speed percent. Invalid commands are treated as Stop.
func (d *Drive) Move(ctx context.Context, cmd motion.Command, speed float64) error {
	cmd = cmd.OrStop()

	d.mu.Lock()
	defer d.mu.Unlock()

	if cmd == d.last && (cmd == motion.Stop || speed == d.lastSpeed) {
		return nil
	}

	dirs := wheelDirections[cmd]
	for _, name := range AllWheels() {
		s, ok := d.servos[name]
		if !ok {
			continue
		}
		v := d.calibration[name].Velocity(dirs[name], speed)
		if err := s.SetVelocity(ctx, v); err != nil {
			// Unknown state: force a rewrite next tick.
			d.last = motion.Command(-1)
			return fmt.Errorf("set %s wheel velocity: %w", name, err)
		}
	}
	d.last = cmd
	d.lastSpeed = speed
	return nil
}

// LogSink is an actuator that only logs command changes. It stands in for
// the drive on a bench without servos.
type LogSink struct {
	logger zerolog.Logger

	mu   sync.Mutex
	last motion.Command
}

// NewLogSink creates a dry-run actuator.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{
		logger: logger.With().Str("component", "drive").Bool("dry_run", true).Logger(),
		last:   motion.Stop,
	}
}

// Move logs cmd when it differs from the previous one.
func (s *LogSink) Move(_ context.Context, cmd motion.Command, speed float64) error {
	cmd = cmd.OrStop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd != s.last {
		s.logger.Info().Stringer("command", cmd).Float64("speed", speed).Msg("move")
		s.last = cmd
	}
	return nil
}

// Last returns the most recent command.
func (s *LogSink) Last() motion.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
