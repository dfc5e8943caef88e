// Package watchdog stops teleoperated motion when commands go stale.
package watchdog

import (
	"time"

	"github.com/gwillem/rover/pkg/motion"
)

// Timeout is the longest a manual command stays in effect without being
// refreshed.
const Timeout = 100 * time.Millisecond

// Watchdog tracks the freshness of the last accepted manual command.
//
// A command accepted with Arm is stamped with the time of the next
// EffectiveCommand call and remains effective for Timeout from then on.
// Watchdog is not safe for concurrent use; the arbiter serializes access.
type Watchdog struct {
	command motion.Command
	start   time.Time
	stamped bool // false until the first tick after Arm
	timeout time.Duration
	tripped bool
}

// New returns a watchdog holding Stop.
func New() *Watchdog {
	return &Watchdog{timeout: Timeout}
}

// Arm accepts a new manual command and clears the timer so the next tick
// timestamps it fresh.
func (w *Watchdog) Arm(cmd motion.Command) {
	w.command = cmd.OrStop()
	w.stamped = false
	w.tripped = false
}

// Command returns the last accepted command regardless of freshness.
func (w *Watchdog) Command() motion.Command {
	return w.command
}

// EffectiveCommand returns the command to apply at now: the accepted command
// while it is fresh, Stop once Timeout has elapsed since it was first seen.
func (w *Watchdog) EffectiveCommand(now time.Time) motion.Command {
	if !w.stamped {
		w.start = now
		w.stamped = true
	}
	if now.Sub(w.start) >= w.timeout {
		w.tripped = true
		return motion.Stop
	}
	return w.command
}

// Tripped reports whether the last EffectiveCommand call timed out.
func (w *Watchdog) Tripped() bool {
	return w.tripped
}

// Reset returns the watchdog to Stop with no pending timer.
func (w *Watchdog) Reset() {
	w.Arm(motion.Stop)
}
