package robot

import (
	"github.com/gwillem/rover/pkg/motion"
)

// WheelCalibration holds calibration data for a single wheel servo.
type WheelCalibration struct {
	ID          int `json:"id" mapstructure:"id"`
	DriveMode   int `json:"drive_mode" mapstructure:"drive_mode"`
	MaxVelocity int `json:"max_velocity" mapstructure:"max_velocity"`
}

// DefaultMaxVelocity is the wheel goal velocity at full speed, in steps per
// second.
const DefaultMaxVelocity = 1000

// Calibration holds calibration data for all wheels, keyed by wheel name.
type Calibration map[WheelName]WheelCalibration

// DefaultCalibration returns servo IDs 1 and 2 with the right wheel mounted
// mirrored.
func DefaultCalibration() Calibration {
	return Calibration{
		LeftWheel:  {ID: 1, MaxVelocity: DefaultMaxVelocity},
		RightWheel: {ID: 2, DriveMode: 1, MaxVelocity: DefaultMaxVelocity},
	}
}

// Sign returns +1 for a normally mounted wheel and -1 for a mirrored one.
func (c WheelCalibration) Sign() int {
	if c.DriveMode != 0 {
		return -1
	}
	return 1
}

// Velocity returns the signed goal velocity for direction dir (-1, 0 or +1)
// at speed percent.
func (c WheelCalibration) Velocity(dir int, speed float64) int {
	top := c.MaxVelocity
	if top <= 0 {
		top = DefaultMaxVelocity
	}
	return dir * c.Sign() * int(float64(top)*speed/100)
}

// MotorIDs returns the servo IDs for all wheels in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllWheels() to ensure consistent ordering
	for _, name := range AllWheels() {
		if wc, ok := c[name]; ok {
			ids = append(ids, wc.ID)
		}
	}
	return ids
}

// ByID returns wheel name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (WheelName, WheelCalibration, bool) {
	for name, wc := range c {
		if wc.ID == id {
			return name, wc, true
		}
	}
	return "", WheelCalibration{}, false
}

// DistanceCalibration corrects raw ranger distances per sensor, in the
// order of motion.Angles.
type DistanceCalibration struct {
	Bias   [motion.NumFeatures]float64 `json:"bias" mapstructure:"bias"`
	Factor [motion.NumFeatures]float64 `json:"factor" mapstructure:"factor"`
}

// DefaultDistanceCalibration is the identity correction.
func DefaultDistanceCalibration() DistanceCalibration {
	var d DistanceCalibration
	for i := range d.Factor {
		d.Factor[i] = 1
	}
	return d
}

// Apply returns factor*meters + bias for sensor i. Values that are not
// finite pass through unchanged so they still sanitize to the sentinel.
func (d DistanceCalibration) Apply(i int, meters float64) float64 {
	if i < 0 || i >= motion.NumFeatures {
		return meters
	}
	return meters*d.Factor[i] + d.Bias[i]
}
