package calibration

import (
	"testing"

	"go.viam.com/test"
)

func TestServoRange(t *testing.T) {
	r := DefaultServoRange()
	test.That(t, r.Neutral(), test.ShouldEqual, 1500.0)
	test.That(t, r.PulseForDegree(90), test.ShouldAlmostEqual, 1280.0, 1e-9)
	test.That(t, r.PulseForDegree(-90), test.ShouldAlmostEqual, 1720.0, 1e-9)
	test.That(t, r.PulseForDegree(200), test.ShouldAlmostEqual, 1280.0, 1e-9)
	// The bench calibration pose.
	test.That(t, r.PulseForDegree(-60), test.ShouldAlmostEqual, 1646.667, 1e-3)
	test.That(t, r.PulseForDegree(60), test.ShouldAlmostEqual, 1353.333, 1e-3)

	test.That(t, r.PulseForSpeed(0), test.ShouldEqual, 1500.0)
	test.That(t, r.PulseForSpeed(1), test.ShouldAlmostEqual, 1280.0, 1e-9)
	test.That(t, r.PulseForSpeed(-0.5), test.ShouldAlmostEqual, 1610.0, 1e-9)
	test.That(t, r.PulseForSpeed(-3), test.ShouldAlmostEqual, 1720.0, 1e-9)
	test.That(t, r.ClampPW(900), test.ShouldEqual, 1280.0)
}

func TestFeedbackAngles(t *testing.T) {
	f := DefaultFeedback360()
	test.That(t, f.AngleRight(27.3), test.ShouldEqual, 0.0)
	test.That(t, f.AngleRight(5000), test.ShouldEqual, 359.0)
	test.That(t, f.AngleLeft(27.3), test.ShouldEqual, 359.0)
	test.That(t, f.AngleLeft(0), test.ShouldEqual, 359.0)
	test.That(t, f.AngleLeft(5000), test.ShouldEqual, 0.0)
	mid := f.AngleRight((27.3 + 978.25) / 2)
	test.That(t, mid, test.ShouldBeBetween, 170.0, 190.0)
}

func TestTotalAngle(t *testing.T) {
	turns, total := TotalAngle(10, 350, 0, 360)
	test.That(t, turns, test.ShouldEqual, 1)
	test.That(t, total, test.ShouldEqual, 370.0)

	turns, total = TotalAngle(350, 10, 0, 360)
	test.That(t, turns, test.ShouldEqual, -1)
	test.That(t, total, test.ShouldEqual, -10.0)

	turns, total = TotalAngle(100, 90, 2, 360)
	test.That(t, turns, test.ShouldEqual, 2)
	test.That(t, total, test.ShouldEqual, 820.0)
}

func TestTickMaths(t *testing.T) {
	test.That(t, TickLength(), test.ShouldAlmostEqual, 0.4363, 1e-4)
	test.That(t, ArcLength(360), test.ShouldAlmostEqual, 644.03, 1e-2)
	// A quarter turn is about 369 feedback units at each wheel.
	test.That(t, TicksForTurn(90), test.ShouldAlmostEqual, 369.0, 1e-6)
	test.That(t, TicksForDistance(TickLength()*10), test.ShouldAlmostEqual, 10.0, 1e-9)
}
