package motion

import (
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/pid"
)

// Encoder is the view of a wheel encoder the loop needs.
type Encoder interface {
	ResetTicks()
	Ticks() int
}

type Limits struct {
	Min, Max float64
}

type Config struct {
	Gains pid.Gains

	// Pulse widths (us) around which each wheel's correction is applied.
	BaseSpeedLeft  float64
	BaseSpeedRight float64

	LeftLimits  Limits
	RightLimits Limits

	// Ticks added to the reference ramp per sample.
	TargetStep int

	// Sleep after each sample.  The loop is fixed-delay, so the real period
	// is this plus the time spent computing and writing.
	SamplePeriod time.Duration

	// Pause between the two stop commands at the end of a move.
	StopSettle time.Duration
}

func DefaultConfig() Config {
	return Config{
		Gains:          pid.Gains{KP: 15, KI: 3.75, KD: 0},
		BaseSpeedLeft:  1530,
		BaseSpeedRight: 1470,
		LeftLimits:     Limits{Min: 1280, Max: 1720},
		RightLimits:    Limits{Min: 1280, Max: 1720},
		TargetStep:     10,
		SamplePeriod:   400 * time.Millisecond,
		StopSettle:     100 * time.Millisecond,
	}
}

var ErrBadConfig = errors.New("motion: bad config")

func (c Config) Validate() error {
	if c.SamplePeriod <= 0 {
		return errors.Wrap(ErrBadConfig, "sample period must be positive")
	}
	if c.TargetStep <= 0 {
		return errors.Wrap(ErrBadConfig, "target step must be positive")
	}
	if c.StopSettle < 0 {
		return errors.Wrap(ErrBadConfig, "stop settle must not be negative")
	}
	for name, l := range map[string]Limits{"left": c.LeftLimits, "right": c.RightLimits} {
		if l.Min >= l.Max {
			return errors.Wrapf(ErrBadConfig, "%s limits inverted: %v >= %v", name, l.Min, l.Max)
		}
	}
	return nil
}

// Sample is a snapshot of one loop iteration, taken after the output for
// that iteration has been dispatched.
type Sample struct {
	Command   Command
	Iteration int
	Elapsed   time.Duration
	Target    int

	LeftTicks, RightTicks           int
	LeftError, RightError           float64
	LeftIntegral, RightIntegral     float64
	LeftSpeed, RightSpeed           float64
	LeftRecomputed, RightRecomputed bool

	// Sent is false when a frozen closed-loop output was not re-sent.
	Sent bool
}

type Observer func(Sample)

type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

func WithLogger(logger golog.Logger) Option {
	return func(c *Controller) { c.log = logger }
}

// Controller runs timed moves that keep both wheels on a linear tick ramp.
// It is not safe for concurrent Execute calls; one robot, one caller at a
// time.
type Controller struct {
	left, right Encoder
	drive       drive.Interface

	cfgLock sync.Mutex
	cfg     Config

	clock     Clock
	observers []Observer
	log       golog.Logger
}

func New(left, right Encoder, d drive.Interface, cfg Config, opts ...Option) (*Controller, error) {
	if left == nil || right == nil {
		return nil, errors.New("motion: both wheel encoders are required")
	}
	if d == nil {
		return nil, errors.New("motion: no drive")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		left:  left,
		right: right,
		drive: d,
		cfg:   cfg,
		clock: RealClock(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = golog.NewLogger("motion")
	}
	return c, nil
}

func (c *Controller) Config() Config {
	c.cfgLock.Lock()
	defer c.cfgLock.Unlock()
	return c.cfg
}

// SetGains takes effect from the next command.
func (c *Controller) SetGains(g pid.Gains) {
	c.cfgLock.Lock()
	defer c.cfgLock.Unlock()
	c.cfg.Gains = g
}

func (c *Controller) Straight(d time.Duration) { c.Execute(Command{Forward, d}) }
func (c *Controller) Backward(d time.Duration) { c.Execute(Command{Backward, d}) }
func (c *Controller) Left(d time.Duration)     { c.Execute(Command{Left, d}) }
func (c *Controller) Right(d time.Duration)    { c.Execute(Command{Right, d}) }

// Execute runs cmd to completion and leaves the wheels stopped.  It blocks
// for the command's duration plus at most one sample period and the stop
// settle time.
func (c *Controller) Execute(cmd Command) {
	cfg := c.Config()
	if cmd.Duration <= 0 {
		c.log.Warnw("non-positive duration, only stopping", "command", cmd)
	}

	c.left.ResetTicks()
	c.right.ResetTicks()

	lw := &pid.Wheel{Gains: cfg.Gains, Base: cfg.BaseSpeedLeft, Sign: 1,
		Min: cfg.LeftLimits.Min, Max: cfg.LeftLimits.Max}
	rw := &pid.Wheel{Gains: cfg.Gains, Base: cfg.BaseSpeedRight, Sign: -1,
		Min: cfg.RightLimits.Min, Max: cfg.RightLimits.Max}
	lw.Reset()
	rw.Reset()

	start := c.clock.Now()
	deadline := start.Add(cmd.Duration)
	target := 0
	c.log.Infow("move", "command", cmd)

	for i := 0; c.clock.Now().Before(deadline); i++ {
		lt, rt := c.left.Ticks(), c.right.Ticks()
		le := float64(target - lt)
		re := float64(target - rt)

		first := i == 0
		ls, lRecomputed := lw.Update(le, first)
		rs, rRecomputed := rw.Update(re, first)
		if lRecomputed && lw.Clamped() || rRecomputed && rw.Clamped() {
			c.log.Debugw("clamped", "iteration", i, "left", ls, "right", rs)
		}

		send := first || lRecomputed || rRecomputed || !cmd.Direction.closedLoop()
		if send {
			c.dispatch(cmd.Direction, ls, rs)
		}

		s := Sample{
			Command:         cmd,
			Iteration:       i,
			Elapsed:         c.clock.Now().Sub(start),
			Target:          target,
			LeftTicks:       lt,
			RightTicks:      rt,
			LeftError:       le,
			RightError:      re,
			LeftIntegral:    lw.Integral(),
			RightIntegral:   rw.Integral(),
			LeftSpeed:       ls,
			RightSpeed:      rs,
			LeftRecomputed:  lRecomputed,
			RightRecomputed: rRecomputed,
			Sent:            send,
		}
		c.log.Debugw("sample", "i", i, "target", target, "ticks", []int{lt, rt},
			"error", []float64{le, re}, "speed", []float64{ls, rs})
		for _, o := range c.observers {
			o(s)
		}

		c.clock.Sleep(cfg.SamplePeriod)

		lw.Advance(le)
		rw.Advance(re)
		target += cfg.TargetStep
	}

	// The first stop may be lost by the servo driver; send it twice.
	c.drive.Stop()
	c.clock.Sleep(cfg.StopSettle)
	c.drive.Stop()
	c.log.Infow("move done", "command", cmd, "took", c.clock.Now().Sub(start))
}

func (c *Controller) dispatch(d Direction, left, right float64) {
	switch d {
	case Forward:
		c.drive.DriveForward(left, right)
	case Backward:
		// Reversing is the fixed reverse command issued straight after the
		// corrected forward one.
		c.drive.DriveForward(left, right)
		c.drive.DriveReverse()
	case Left:
		c.drive.PivotLeft()
	case Right:
		c.drive.PivotRight()
	default:
		c.log.Warnw("unknown direction", "direction", d)
	}
}
