package pid

import (
	"math"
	"testing"

	"go.viam.com/test"
)

var refGains = Gains{KP: 15, KI: 3.75, KD: 0}

func leftWheel() *Wheel {
	w := &Wheel{Gains: refGains, Base: 1530, Sign: 1, Min: 1280, Max: 1720}
	w.Reset()
	return w
}

func rightWheel() *Wheel {
	w := &Wheel{Gains: refGains, Base: 1470, Sign: -1, Min: 1280, Max: 1720}
	w.Reset()
	return w
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, 0, 10), test.ShouldEqual, 5.0)
	test.That(t, Clamp(-5, 0, 10), test.ShouldEqual, 0.0)
	test.That(t, Clamp(15, 0, 10), test.ShouldEqual, 10.0)
}

func TestFirstSampleAlwaysComputes(t *testing.T) {
	l := leftWheel()
	s, recomputed := l.Update(0, true)
	test.That(t, recomputed, test.ShouldBeTrue)
	test.That(t, s, test.ShouldEqual, 1530.0)
}

func TestMirroredSigns(t *testing.T) {
	l, r := leftWheel(), rightWheel()
	ls, _ := l.Update(10, false)
	rs, _ := r.Update(10, false)
	test.That(t, ls, test.ShouldEqual, 1680.0)
	test.That(t, rs, test.ShouldEqual, 1320.0)
}

func TestIntegralUsesPreviousErrors(t *testing.T) {
	l := leftWheel()
	l.Update(0, true)
	l.Advance(0)
	l.Update(10, false)
	l.Advance(10)
	test.That(t, l.Integral(), test.ShouldEqual, 10.0)

	// 1530 + 15*4 + 3.75*10
	s, _ := l.Update(4, false)
	test.That(t, s, test.ShouldEqual, 1627.5)
}

func TestDerivativeTermPresent(t *testing.T) {
	l := leftWheel()
	l.KD = 2
	l.Advance(3)
	// 1530 + 15*5 + 2*(5-3) + 3.75*3
	s, _ := l.Update(5, false)
	test.That(t, s, test.ShouldEqual, 1620.25)
}

func TestDeadbandFreezesOutput(t *testing.T) {
	l := leftWheel()
	first, _ := l.Update(10, true)
	l.Advance(10)
	for _, e := range []float64{1, -1, 0.5, 0} {
		s, recomputed := l.Update(e, false)
		test.That(t, recomputed, test.ShouldBeFalse)
		test.That(t, s, test.ShouldEqual, first)
		l.Advance(e)
	}
}

func TestOutputAlwaysWithinLimits(t *testing.T) {
	for _, e := range []float64{-1e9, -5000, -2, 2, 300, 1e9, math.MaxInt32} {
		for _, w := range []*Wheel{leftWheel(), rightWheel()} {
			s, _ := w.Update(e, false)
			test.That(t, s, test.ShouldBeBetweenOrEqual, w.Min, w.Max)
			w.Advance(e)
			s, _ = w.Update(e, false)
			test.That(t, s, test.ShouldBeBetweenOrEqual, w.Min, w.Max)
		}
	}
}

func TestClampedFlag(t *testing.T) {
	l := leftWheel()
	l.Update(100, false)
	test.That(t, l.Clamped(), test.ShouldBeTrue)
	test.That(t, l.Speed(), test.ShouldEqual, 1720.0)
	l.Update(2, false)
	test.That(t, l.Clamped(), test.ShouldBeFalse)
}
