package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gwillem/rover/pkg/motion"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestWatchdog_FreshWindow(t *testing.T) {
	w := New()
	w.Arm(motion.Forward)

	for _, dt := range []time.Duration{0, 30 * time.Millisecond, 60 * time.Millisecond, 99 * time.Millisecond} {
		assert.Equal(t, motion.Forward, w.EffectiveCommand(t0.Add(dt)), "at +%v", dt)
		assert.False(t, w.Tripped())
	}
}

func TestWatchdog_TimesOut(t *testing.T) {
	w := New()
	w.Arm(motion.RotateLeft)

	assert.Equal(t, motion.RotateLeft, w.EffectiveCommand(t0))
	for _, dt := range []time.Duration{Timeout, Timeout + time.Millisecond, time.Second} {
		assert.Equal(t, motion.Stop, w.EffectiveCommand(t0.Add(dt)), "at +%v", dt)
		assert.True(t, w.Tripped())
	}
	// the accepted command itself is retained
	assert.Equal(t, motion.RotateLeft, w.Command())
}

func TestWatchdog_TimerStartsOnFirstTick(t *testing.T) {
	w := New()
	w.Arm(motion.Forward)

	// The command was accepted long before the first tick; the window opens
	// at the tick, not at Arm.
	first := t0.Add(5 * time.Second)
	assert.Equal(t, motion.Forward, w.EffectiveCommand(first))
	assert.Equal(t, motion.Forward, w.EffectiveCommand(first.Add(90*time.Millisecond)))
	assert.Equal(t, motion.Stop, w.EffectiveCommand(first.Add(100*time.Millisecond)))
}

func TestWatchdog_NewCommandRearms(t *testing.T) {
	w := New()
	w.Arm(motion.Forward)
	assert.Equal(t, motion.Forward, w.EffectiveCommand(t0))
	assert.Equal(t, motion.Stop, w.EffectiveCommand(t0.Add(150*time.Millisecond)))

	w.Arm(motion.Backward)
	assert.False(t, w.Tripped())
	now := t0.Add(160 * time.Millisecond)
	assert.Equal(t, motion.Backward, w.EffectiveCommand(now))
	assert.Equal(t, motion.Backward, w.EffectiveCommand(now.Add(99*time.Millisecond)))
	assert.Equal(t, motion.Stop, w.EffectiveCommand(now.Add(100*time.Millisecond)))
}

func TestWatchdog_InvalidCommandIsStop(t *testing.T) {
	w := New()
	w.Arm(motion.Command(42))
	assert.Equal(t, motion.Stop, w.Command())
	assert.Equal(t, motion.Stop, w.EffectiveCommand(t0))
}

func TestWatchdog_ZeroTimeTick(t *testing.T) {
	w := New()
	w.Arm(motion.Forward)
	var zero time.Time
	assert.Equal(t, motion.Forward, w.EffectiveCommand(zero))
	assert.Equal(t, motion.Stop, w.EffectiveCommand(zero.Add(Timeout)))
}
