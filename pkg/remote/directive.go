package remote

import (
	"strings"

	"github.com/gwillem/rover/pkg/motion"
)

// DirectiveKind says which arbiter setter a directive targets.
type DirectiveKind int

const (
	SetManualAction DirectiveKind = iota
	SetMode
	SetAutoAction
)

// Directive is one parsed control message.
type Directive struct {
	Kind    DirectiveKind
	Command motion.Command
	Mode    motion.Mode
	Auto    motion.AutoAction
}

// Controller is the part of the arbiter the control channel drives.
type Controller interface {
	SetMode(mode motion.Mode)
	SetManualAction(cmd motion.Command)
	SetAutoAction(action motion.AutoAction)
}

// ParseDirective decodes a control message. Single letters U, D, L, R and X
// steer in manual mode; "manual" and "auto" switch mode; "start" and "stop"
// control autonomous driving. ok is false for anything else.
func ParseDirective(text string) (d Directive, ok bool) {
	switch strings.TrimSpace(text) {
	case "U":
		return Directive{Kind: SetManualAction, Command: motion.Forward}, true
	case "D":
		return Directive{Kind: SetManualAction, Command: motion.Backward}, true
	case "L":
		return Directive{Kind: SetManualAction, Command: motion.RotateLeft}, true
	case "R":
		return Directive{Kind: SetManualAction, Command: motion.RotateRight}, true
	case "X":
		return Directive{Kind: SetManualAction, Command: motion.Stop}, true
	case "manual":
		return Directive{Kind: SetMode, Mode: motion.Manual}, true
	case "auto":
		return Directive{Kind: SetMode, Mode: motion.Automatic}, true
	case "start":
		return Directive{Kind: SetAutoAction, Auto: motion.AutoStart}, true
	case "stop":
		return Directive{Kind: SetAutoAction, Auto: motion.AutoStop}, true
	}
	return Directive{}, false
}

// Apply forwards d to c.
func (d Directive) Apply(c Controller) {
	switch d.Kind {
	case SetManualAction:
		c.SetManualAction(d.Command)
	case SetMode:
		c.SetMode(d.Mode)
	case SetAutoAction:
		c.SetAutoAction(d.Auto)
	}
}
