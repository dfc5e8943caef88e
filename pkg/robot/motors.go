// Package robot provides the rover's drive train, calibration and config.
package robot

// WheelName identifies a drive wheel.
type WheelName string

// Wheels of the differential drive.
const (
	LeftWheel  WheelName = "left"
	RightWheel WheelName = "right"
)

// AllWheels returns all wheel names in order (matching servo IDs 1-2).
func AllWheels() []WheelName {
	return []WheelName{
		LeftWheel,
		RightWheel,
	}
}
