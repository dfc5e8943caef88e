package sensors

import (
	"math"
	"sync"

	"github.com/gwillem/rover/pkg/motion"
)

// Provider supplies ranging snapshots.
type Provider interface {
	Distances() motion.Ranging
}

// Corrector maps a raw distance from sensor i to meters.
type Corrector interface {
	Apply(i int, meters float64) float64
}

// Calibrated applies a per-sensor correction to another provider.
type Calibrated struct {
	inner Provider
	cal   Corrector
}

// NewCalibrated wraps inner with cal.
func NewCalibrated(inner Provider, cal Corrector) *Calibrated {
	return &Calibrated{inner: inner, cal: cal}
}

// Distances returns the corrected snapshot. Raw readings that are not
// finite, negative or at least MaxDistance are sensor errors or out of range
// and become MaxDistance uncorrected. Corrected readings never drop below 0.
func (c *Calibrated) Distances() motion.Ranging {
	r := c.inner.Distances()
	for i := range r {
		raw := r[i].Distance
		if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 || raw >= motion.MaxDistance {
			r[i].Distance = motion.MaxDistance
			continue
		}
		r[i].Distance = max(c.cal.Apply(i, raw), 0)
	}
	return r
}

// Static is a provider with settable readings, used on a bench without
// the sensor board.
type Static struct {
	mu sync.Mutex
	r  motion.Ranging
}

// NewStatic creates a provider reporting every sensor at meters.
func NewStatic(meters float64) *Static {
	s := &Static{r: EmptyRanging()}
	for i := range s.r {
		s.r[i].Distance = meters
	}
	return s
}

// Set replaces the reading at index i.
func (s *Static) Set(i int, meters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.r) {
		s.r[i].Distance = meters
	}
}

// Distances returns the current readings.
func (s *Static) Distances() motion.Ranging {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r
}
