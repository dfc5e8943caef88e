// Package rover drives a two-wheeled rover from six ranging sensors.
//
// A 30 ms control loop arbitrates between manual commands, guarded by a
// 100 ms watchdog, and an autonomous mode in which a small neural network
// picks the command from the sensor distances. Manual driving can be
// recorded and exported as a CSV dataset for training that network.
//
// # Installation
//
//	go install github.com/gwillem/rover/cmd/rover@latest
//
// # Usage
//
// First, run setup to find the wheel bus and the sensor board:
//
//	rover setup
//
// Then drive from the terminal, or run headless with the remote control
// server:
//
//	rover drive
//	rover serve
//
// Both accept --sim to try the rover without hardware. Recorded data is
// written with:
//
//	rover export -o capture.csv
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/rover: CLI with setup, drive, serve, export and clear commands
//   - pkg/motion: Commands, modes and feature vectors
//   - pkg/watchdog: Manual command timeout
//   - pkg/decision: Feature sanitizing and command selection
//   - pkg/neural: Model loading and inference
//   - pkg/arbiter: The control loop
//   - pkg/capture: Sample recording and dataset export
//   - pkg/sensors: Sensor board reader and calibration
//   - pkg/robot: Wheel drive, calibration and configuration
//   - pkg/remote: WebSocket and HTTP remote control
//   - pkg/logging: Logger construction
package rover
