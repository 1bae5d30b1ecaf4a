package drive

import (
	"time"

	"github.com/edaniels/golog"
)

// Interface is the sink for wheel commands.  Calls return once the command
// has been written (or dropped with a log line); none of them fail.
type Interface interface {
	DriveForward(left, right float64)
	DriveReverse()
	Stop()
	PivotLeft()
	PivotRight()
}

// PulseWriter is a set of servo outputs addressed by channel number.
type PulseWriter interface {
	SetPulseWidth(channel int, width time.Duration) error
	Off(channel int) error
	Close() error
}

// Config holds the fixed pulse widths used for the open-loop commands.
// All widths are in microseconds.
type Config struct {
	LeftChannel, RightChannel int

	LeftReverse  float64
	RightReverse float64

	// Pivots put both wheels on the same width; the servos are mounted
	// mirror image so that spins the robot on the spot.
	PivotLeftWidth  float64
	PivotRightWidth float64

	// Time for the servos to pick up a new command.
	Settle time.Duration
}

func DefaultConfig() Config {
	return Config{
		LeftChannel:     0,
		RightChannel:    1,
		LeftReverse:     1700,
		RightReverse:    1300,
		PivotLeftWidth:  1700,
		PivotRightWidth: 1300,
		Settle:          100 * time.Millisecond,
	}
}

// Servos drives a pair of continuous-rotation servos through a PulseWriter.
type Servos struct {
	out   PulseWriter
	cfg   Config
	log   golog.Logger
	sleep func(time.Duration)
}

func NewServos(out PulseWriter, cfg Config, logger golog.Logger) *Servos {
	return &Servos{
		out:   out,
		cfg:   cfg,
		log:   logger,
		sleep: time.Sleep,
	}
}

var _ Interface = (*Servos)(nil)

func (s *Servos) set(channel int, us float64) {
	width := time.Duration(us * float64(time.Microsecond))
	if err := s.out.SetPulseWidth(channel, width); err != nil {
		s.log.Warnw("failed to set pulse width", "channel", channel, "us", us, "error", err)
	}
}

func (s *Servos) off(channel int) {
	if err := s.out.Off(channel); err != nil {
		s.log.Warnw("failed to stop servo", "channel", channel, "error", err)
	}
}

func (s *Servos) settle() {
	if s.cfg.Settle > 0 {
		s.sleep(s.cfg.Settle)
	}
}

func (s *Servos) DriveForward(left, right float64) {
	s.set(s.cfg.LeftChannel, left)
	s.set(s.cfg.RightChannel, right)
	s.settle()
}

func (s *Servos) DriveReverse() {
	s.set(s.cfg.LeftChannel, s.cfg.LeftReverse)
	s.set(s.cfg.RightChannel, s.cfg.RightReverse)
	s.settle()
}

// Stop cuts the pulse train on both wheels rather than sending neutral.
func (s *Servos) Stop() {
	s.off(s.cfg.LeftChannel)
	s.off(s.cfg.RightChannel)
}

func (s *Servos) PivotLeft() {
	s.set(s.cfg.RightChannel, s.cfg.PivotLeftWidth)
	s.set(s.cfg.LeftChannel, s.cfg.PivotLeftWidth)
}

func (s *Servos) PivotRight() {
	s.set(s.cfg.LeftChannel, s.cfg.PivotRightWidth)
	s.set(s.cfg.RightChannel, s.cfg.PivotRightWidth)
}

// Close releases the outputs.  Callers stop the wheels first.
func (s *Servos) Close() error {
	return s.out.Close()
}
