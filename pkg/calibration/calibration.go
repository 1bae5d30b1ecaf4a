// Package calibration holds the conversions used when bench-testing the
// continuous-rotation servos: pulse widths for a speed or a horn angle,
// the feedback line's duty cycle to an angle, and tick counts for turns
// and straight runs.
package calibration

import (
	"math"

	"github.com/tigerbot-team/stingray/pkg/chassis"
)

type ServoRange struct {
	MinPW, MaxPW       float64
	MinSpeed, MaxSpeed float64
	MinDeg, MaxDeg     float64
}

func DefaultServoRange() ServoRange {
	return ServoRange{
		MinPW:    1280,
		MaxPW:    1720,
		MinSpeed: -1,
		MaxSpeed: 1,
		MinDeg:   -90,
		MaxDeg:   90,
	}
}

func (r ServoRange) Neutral() float64 {
	return (r.MinPW + r.MaxPW) / 2
}

// ClampPW keeps a width inside the servo's range.
func (r ServoRange) ClampPW(pw float64) float64 {
	return math.Max(r.MinPW, math.Min(r.MaxPW, pw))
}

// PulseForDegree maps MaxDeg to MinPW and MinDeg to MaxPW.
func (r ServoRange) PulseForDegree(deg float64) float64 {
	deg = math.Max(r.MinDeg, math.Min(r.MaxDeg, deg))
	slope := (r.MinPW - r.Neutral()) / r.MaxDeg
	return r.ClampPW(slope*deg + r.Neutral())
}

// PulseForSpeed maps MaxSpeed to MinPW and MinSpeed to MaxPW.
func (r ServoRange) PulseForSpeed(speed float64) float64 {
	speed = math.Max(r.MinSpeed, math.Min(r.MaxSpeed, speed))
	slope := (r.MinPW - r.Neutral()) / r.MaxSpeed
	return r.ClampPW(slope*speed + r.Neutral())
}

// Feedback360 converts the duty cycle on a feedback servo's signal line
// (in thousandths) to a wheel angle.
type Feedback360 struct {
	Units              float64
	LeftMin, LeftMax   float64
	RightMin, RightMax float64
}

func DefaultFeedback360() Feedback360 {
	return Feedback360{
		Units:    chassis.FeedbackUnitsPerRev,
		LeftMin:  27.3,
		LeftMax:  969.15,
		RightMin: 27.3,
		RightMax: 978.25,
	}
}

func (f Feedback360) clamp(a float64) float64 {
	return math.Max(0, math.Min(f.Units-1, a))
}

// AngleLeft is mirrored since the left servo is mounted the other way round.
func (f Feedback360) AngleLeft(duty float64) float64 {
	return f.clamp((f.Units - 1) - (duty-f.LeftMin)*f.Units/(f.LeftMax-f.LeftMin+1))
}

func (f Feedback360) AngleRight(duty float64) float64 {
	return f.clamp((duty - f.RightMin) * f.Units / (f.RightMax - f.RightMin + 1))
}

// TotalAngle unwraps an angle reading into a running total given the
// previous reading and the turn count so far.
func TotalAngle(angle, prev float64, turns int, units float64) (int, float64) {
	switch {
	case angle < 0.25*units && prev > 0.75*units:
		turns++
	case prev < 0.25*units && angle > 0.75*units:
		turns--
	}
	if turns >= 0 {
		return turns, float64(turns)*units + angle
	}
	return turns, float64(turns+1)*units - (units - angle)
}

// TickLength is the distance in mm per feedback unit.
func TickLength() float64 {
	return math.Pi * chassis.FeedbackWheelDiameterMM / chassis.FeedbackUnitsPerRev
}

// ArcLength is the distance each wheel covers for a pivot of deg degrees.
func ArcLength(deg float64) float64 {
	return deg * chassis.PivotCircumMM / 360
}

func TicksForTurn(deg float64) float64 {
	return ArcLength(deg) / TickLength()
}

func TicksForDistance(mm float64) float64 {
	return mm / TickLength()
}
