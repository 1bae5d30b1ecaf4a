package motion

import (
	"fmt"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/tigerbot-team/stingray/pkg/pid"
)

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Sleep(d time.Duration) {
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
}

// fakeEncoder returns ticks from fn, called once per sample.
type fakeEncoder struct {
	resets int
	reads  int
	fn     func(read int) int
}

func (e *fakeEncoder) ResetTicks() { e.resets++ }
func (e *fakeEncoder) Ticks() int {
	r := e.reads
	e.reads++
	if e.fn == nil {
		return 0
	}
	return e.fn(r)
}

type forwardCmd struct{ left, right float64 }

type recordingDrive struct {
	calls    []string
	forwards []forwardCmd
}

func (d *recordingDrive) DriveForward(l, r float64) {
	d.calls = append(d.calls, fmt.Sprintf("forward(%.1f,%.1f)", l, r))
	d.forwards = append(d.forwards, forwardCmd{l, r})
}
func (d *recordingDrive) DriveReverse() { d.calls = append(d.calls, "reverse") }
func (d *recordingDrive) Stop()         { d.calls = append(d.calls, "stop") }
func (d *recordingDrive) PivotLeft()    { d.calls = append(d.calls, "pivotLeft") }
func (d *recordingDrive) PivotRight()   { d.calls = append(d.calls, "pivotRight") }

type rig struct {
	left, right *fakeEncoder
	drive       *recordingDrive
	clock       *fakeClock
	samples     []Sample
	ctrl        *Controller
}

func newRig(t *testing.T, cfg Config) *rig {
	r := &rig{
		left:  &fakeEncoder{},
		right: &fakeEncoder{},
		drive: &recordingDrive{},
		clock: newFakeClock(),
	}
	ctrl, err := New(r.left, r.right, r.drive, cfg,
		WithClock(r.clock),
		WithLogger(golog.NewTestLogger(t)),
		WithObserver(func(s Sample) { r.samples = append(r.samples, s) }),
	)
	test.That(t, err, test.ShouldBeNil)
	r.ctrl = ctrl
	return r
}

func TestNewRejectsMissingHardware(t *testing.T) {
	_, err := New(nil, &fakeEncoder{}, &recordingDrive{}, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(&fakeEncoder{}, &fakeEncoder{}, nil, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)

	cfg := DefaultConfig()
	cfg.SamplePeriod = 0
	_, err = New(&fakeEncoder{}, &fakeEncoder{}, &recordingDrive{}, cfg)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStraightWithNoFeedbackSaturates(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.Straight(time.Second)

	// Samples at 0, 0.4 and 0.8s.
	test.That(t, len(r.samples), test.ShouldEqual, 3)
	test.That(t, r.drive.forwards[0], test.ShouldResemble, forwardCmd{1530, 1470})
	test.That(t, r.drive.forwards[1], test.ShouldResemble, forwardCmd{1680, 1320})
	last := r.drive.forwards[len(r.drive.forwards)-1]
	test.That(t, last, test.ShouldResemble, forwardCmd{1720, 1280})
}

func TestEncodersResetAtStart(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.Straight(time.Second)
	r.ctrl.Left(time.Second)
	test.That(t, r.left.resets, test.ShouldEqual, 2)
	test.That(t, r.right.resets, test.ShouldEqual, 2)
}

func TestTargetRampIsMonotonic(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.left.fn = func(n int) int { return 37 * n % 11 }
	r.ctrl.Straight(4 * time.Second)

	test.That(t, len(r.samples), test.ShouldEqual, 10)
	for i, s := range r.samples {
		test.That(t, s.Iteration, test.ShouldEqual, i)
		test.That(t, s.Target, test.ShouldEqual, 10*i)
	}
}

func TestDurationBound(t *testing.T) {
	cfg := DefaultConfig()
	for _, d := range []time.Duration{100 * time.Millisecond, time.Second, 1500 * time.Millisecond, 3 * time.Second} {
		r := newRig(t, cfg)
		start := r.clock.Now()
		r.ctrl.Straight(d)
		took := r.clock.Now().Sub(start)
		test.That(t, took, test.ShouldBeGreaterThanOrEqualTo, d)
		test.That(t, took, test.ShouldBeLessThanOrEqualTo, d+cfg.SamplePeriod+cfg.StopSettle)
	}
}

func TestDurationBoundRealClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SamplePeriod = 20 * time.Millisecond
	cfg.StopSettle = 5 * time.Millisecond
	ctrl, err := New(&fakeEncoder{}, &fakeEncoder{}, &recordingDrive{}, cfg, WithLogger(golog.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)

	d := 100 * time.Millisecond
	start := time.Now()
	ctrl.Straight(d)
	took := time.Since(start)
	test.That(t, took, test.ShouldBeGreaterThanOrEqualTo, d)
	// Generous slack for a loaded test machine.
	test.That(t, took, test.ShouldBeLessThan, d+cfg.SamplePeriod+cfg.StopSettle+200*time.Millisecond)
}

func TestStopIssuedTwice(t *testing.T) {
	for _, dir := range []Direction{Forward, Backward, Left, Right} {
		r := newRig(t, DefaultConfig())
		r.ctrl.Execute(Command{dir, time.Second})
		n := len(r.drive.calls)
		test.That(t, n, test.ShouldBeGreaterThanOrEqualTo, 2)
		test.That(t, r.drive.calls[n-2:], test.ShouldResemble, []string{"stop", "stop"})
		// Stop settle between the two stops.
		test.That(t, r.clock.slept[len(r.clock.slept)-1], test.ShouldEqual, 100*time.Millisecond)
	}
}

func TestZeroDurationOnlyStops(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.Straight(0)
	test.That(t, r.drive.calls, test.ShouldResemble, []string{"stop", "stop"})
	test.That(t, r.samples, test.ShouldBeEmpty)
}

func TestFreezeWhenTracking(t *testing.T) {
	r := newRig(t, DefaultConfig())
	// Wheels exactly on the ramp.
	onRamp := func(n int) int { return 10 * n }
	r.left.fn = onRamp
	r.right.fn = onRamp
	r.ctrl.Straight(2 * time.Second)

	test.That(t, len(r.samples), test.ShouldEqual, 5)
	test.That(t, r.drive.forwards, test.ShouldResemble, []forwardCmd{{1530, 1470}})
	for _, s := range r.samples[1:] {
		test.That(t, s.LeftRecomputed, test.ShouldBeFalse)
		test.That(t, s.RightRecomputed, test.ShouldBeFalse)
		test.That(t, s.Sent, test.ShouldBeFalse)
		test.That(t, s.LeftSpeed, test.ShouldEqual, 1530.0)
		test.That(t, s.RightSpeed, test.ShouldEqual, 1470.0)
	}
}

func TestWithinOneTickStaysFrozen(t *testing.T) {
	r := newRig(t, DefaultConfig())
	// Alternate one tick ahead and one tick behind.
	r.left.fn = func(n int) int { return 10*n + 1 - 2*(n%2) }
	r.right.fn = func(n int) int { return 10 * n }
	r.ctrl.Straight(2 * time.Second)

	test.That(t, len(r.drive.forwards), test.ShouldEqual, 1)
}

func TestOneWheelOffRampResendsBoth(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.left.fn = func(n int) int { return 10 * n }
	r.right.fn = func(n int) int { return 10*n - 5 }
	r.ctrl.Straight(1200 * time.Millisecond)

	test.That(t, len(r.drive.forwards), test.ShouldEqual, 3)
	for _, f := range r.drive.forwards {
		test.That(t, f.left, test.ShouldEqual, 1530.0)
	}
}

func TestCommandsAlwaysWithinLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeftLimits = Limits{Min: 1300, Max: 1700}
	cfg.RightLimits = Limits{Min: 1280, Max: 1720}
	for _, ticks := range []func(int) int{
		func(n int) int { return -100000 * n },
		func(n int) int { return 100000 * n },
		func(n int) int { return 1 << 30 },
	} {
		r := newRig(t, cfg)
		r.left.fn = ticks
		r.right.fn = ticks
		r.ctrl.Straight(3 * time.Second)
		for _, f := range r.drive.forwards {
			test.That(t, f.left, test.ShouldBeBetweenOrEqual, 1300.0, 1700.0)
			test.That(t, f.right, test.ShouldBeBetweenOrEqual, 1280.0, 1720.0)
		}
	}
}

func TestBackwardIsForwardThenReverse(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.Backward(800 * time.Millisecond)

	test.That(t, r.drive.calls, test.ShouldResemble, []string{
		"forward(1530.0,1470.0)", "reverse",
		"forward(1680.0,1320.0)", "reverse",
		"stop", "stop",
	})
}

func TestPivotsAreOpenLoop(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.Left(800 * time.Millisecond)
	test.That(t, r.drive.calls, test.ShouldResemble, []string{"pivotLeft", "pivotLeft", "stop", "stop"})
	test.That(t, r.drive.forwards, test.ShouldBeEmpty)

	r = newRig(t, DefaultConfig())
	r.left.fn = func(n int) int { return 10 * n }
	r.right.fn = func(n int) int { return 10 * n }
	r.ctrl.Right(1200 * time.Millisecond)
	test.That(t, r.drive.calls, test.ShouldResemble, []string{"pivotRight", "pivotRight", "pivotRight", "stop", "stop"})
}

func TestSetGainsAppliesToNextCommand(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.ctrl.SetGains(pid.Gains{KP: 1})
	r.ctrl.Straight(800 * time.Millisecond)

	test.That(t, r.drive.forwards[1], test.ShouldResemble, forwardCmd{1540, 1460})
	test.That(t, r.ctrl.Config().Gains, test.ShouldResemble, pid.Gains{KP: 1})
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"straight": Forward, "Forward": Forward, "backward": Backward, " left ": Left, "right": Right,
	} {
		d, err := ParseDirection(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, want)
	}
	_, err := ParseDirection("up")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, Direction(9).String(), test.ShouldEqual, "unknown(9)")
}
