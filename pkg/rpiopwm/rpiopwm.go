// Package rpiopwm drives servos straight from the Pi's hardware PWM pins.
package rpiopwm

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	Hertz = 50

	// With the clock at Hertz*CycleLen one duty count is one microsecond.
	CycleLen = 20000
)

// BCM pins wired to a PWM channel.
var pwmPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

var ErrNotPWM = errors.New("rpiopwm: pin has no hardware PWM")

// Pins writes pulse widths to BCM pins; the channel number is the pin number.
type Pins struct {
	lock sync.Mutex
	pins map[int]rpio.Pin
}

func Open(channels ...int) (*Pins, error) {
	for _, c := range channels {
		if !pwmPins[c] {
			return nil, errors.Wrapf(ErrNotPWM, "BCM %d", c)
		}
	}
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpiopwm: open gpio memory")
	}
	p := &Pins{pins: map[int]rpio.Pin{}}
	for _, c := range channels {
		pin := rpio.Pin(c)
		pin.Mode(rpio.Pwm)
		pin.Freq(Hertz * CycleLen)
		p.pins[c] = pin
	}
	return p, nil
}

// DutyFor maps a pulse width onto the duty counts of one cycle.
func DutyFor(width time.Duration) uint32 {
	us := width.Microseconds()
	if us < 0 {
		return 0
	}
	if us > CycleLen {
		return CycleLen
	}
	return uint32(us)
}

func (p *Pins) SetPulseWidth(channel int, width time.Duration) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	pin, ok := p.pins[channel]
	if !ok {
		return fmt.Errorf("rpiopwm: channel %d not opened", channel)
	}
	pin.DutyCycle(DutyFor(width), CycleLen)
	return nil
}

func (p *Pins) Off(channel int) error {
	return p.SetPulseWidth(channel, 0)
}

func (p *Pins) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, pin := range p.pins {
		pin.DutyCycle(0, CycleLen)
	}
	return rpio.Close()
}
