package pid

import "math"

type Gains struct {
	KP, KI, KD float64
}

// Wheel is the PID state for one wheel of a tick-tracking loop.
//
// The output is a pulse width around Base.  Sign is +1 for a wheel whose
// pulse width rises to go forward and -1 for its mirror-mounted partner.
// The integral is a plain running sum of the per-sample errors with no
// anti-windup, and it only picks up the current error in Advance, so an
// update always uses the errors of the previous samples.
type Wheel struct {
	Gains
	Base     float64
	Sign     float64
	Min, Max float64

	prevError float64
	integral  float64
	speed     float64
	clamped   bool
}

// Deadband is how far off the ramp a wheel may be before it is corrected.
const Deadband = 1

func (w *Wheel) Reset() {
	w.prevError = 0
	w.integral = 0
	w.speed = w.Base
	w.clamped = false
}

// Update returns the wheel's pulse width for this sample.  Within the
// deadband the previous output is returned unchanged, except on the first
// sample which always establishes an output.
func (w *Wheel) Update(err float64, first bool) (speed float64, recomputed bool) {
	if math.Abs(err) <= Deadband && !first {
		return w.speed, false
	}
	correction := w.KP*err + w.KD*(err-w.prevError) + w.KI*w.integral
	raw := w.Base + w.Sign*correction
	w.speed = Clamp(raw, w.Min, w.Max)
	w.clamped = w.speed != raw
	return w.speed, true
}

// Advance folds this sample's error into the derivative and integral state.
func (w *Wheel) Advance(err float64) {
	w.prevError = err
	w.integral += err
}

func (w *Wheel) Speed() float64 {
	return w.speed
}

func (w *Wheel) Integral() float64 {
	return w.integral
}

// Clamped reports whether the last recomputed output hit a limit.
func (w *Wheel) Clamped() bool {
	return w.clamped
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
