package motion

import "math"

// NumFeatures is the length of a FeatureVector, one per ranging sensor.
const NumFeatures = 6

// MaxDistance is the sentinel distance in meters. The model was trained with
// every missing, invalid or far reading clamped to this value.
const MaxDistance = 2.0

// Angles returns the mounting angle of each ranging sensor in degrees, in
// feature order.
func Angles() [NumFeatures]int {
	return [NumFeatures]int{+33, +90, 0, -33, -90, 180}
}

// Reading is a single ranging measurement.
type Reading struct {
	Angle    int     // degrees, positive to the left
	Distance float64 // meters
}

// Ranging is one snapshot of all ranging sensors, in feature order.
type Ranging [NumFeatures]Reading

// FeatureVector is the ordered set of distances fed to the decision engine.
type FeatureVector [NumFeatures]float64

// Features extracts the distances of r without sanitizing them.
func (r Ranging) Features() FeatureVector {
	var fv FeatureVector
	for i, rd := range r {
		fv[i] = rd.Distance
	}
	return fv
}

// Sanitize clamps a distance into [0, MaxDistance]. Non-finite, negative
// and far readings all become MaxDistance.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxDistance {
		return MaxDistance
	}
	return v
}

// Sanitized returns a copy of fv with every value passed through Sanitize.
func (fv FeatureVector) Sanitized() FeatureVector {
	var out FeatureVector
	for i, v := range fv {
		out[i] = Sanitize(v)
	}
	return out
}

// SentinelFeatures returns a vector with every distance at MaxDistance.
func SentinelFeatures() FeatureVector {
	var fv FeatureVector
	for i := range fv {
		fv[i] = MaxDistance
	}
	return fv
}
