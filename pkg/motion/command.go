// Package motion defines the values shared by every part of the rover's
// motion core: drive commands, control modes and the ranging feature vector.
package motion

import (
	"fmt"
	"strings"
)

// Command is a discrete drivetrain command.
//
// The ordinal order is part of the contract: it is the index of the matching
// inference score, the one-hot column in exported datasets, and the code stored
// in capture records.
type Command int32

// Drive commands, in ordinal order.
const (
	Stop Command = iota
	Forward
	Backward
	RotateLeft
	RotateRight
)

// NumCommands is the number of defined commands.
const NumCommands = 5

// AllCommands returns all commands in ordinal order.
func AllCommands() []Command {
	return []Command{
		Stop,
		Forward,
		Backward,
		RotateLeft,
		RotateRight,
	}
}

// Valid reports whether c is one of the defined commands.
func (c Command) Valid() bool {
	return c >= Stop && c <= RotateRight
}

// OrStop returns c if it is valid and Stop otherwise.
func (c Command) OrStop() Command {
	if !c.Valid() {
		return Stop
	}
	return c
}

func (c Command) String() string {
	switch c {
	case Stop:
		return "stop"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case RotateLeft:
		return "left"
	case RotateRight:
		return "right"
	default:
		return fmt.Sprintf("Command(%d)", int32(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCommand parses the names produced by Command.String.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stop":
		return Stop, nil
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "left":
		return RotateLeft, nil
	case "right":
		return RotateRight, nil
	}
	return Stop, fmt.Errorf("unknown command %q", s)
}

// Mode selects who decides the drivetrain command.
type Mode int

const (
	Manual Mode = iota
	Automatic
)

// Valid reports whether m is a defined mode.
func (m Mode) Valid() bool {
	return m == Manual || m == Automatic
}

func (m Mode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Automatic:
		return "auto"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// AutoAction is the sub-state of Automatic mode.
type AutoAction int

const (
	AutoStop AutoAction = iota
	AutoStart
)

// Valid reports whether a is a defined auto action.
func (a AutoAction) Valid() bool {
	return a == AutoStop || a == AutoStart
}

func (a AutoAction) String() string {
	switch a {
	case AutoStop:
		return "stop"
	case AutoStart:
		return "start"
	default:
		return fmt.Sprintf("AutoAction(%d)", int(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a AutoAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
