package sonar

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
)

const (
	// Speed of sound in cm/s at room temperature.
	SoundCMPerSec = 34300

	TriggerPulse = 10 * time.Microsecond

	// Longer than the echo from the sensor's 4m maximum range.
	EchoTimeout = 30 * time.Millisecond

	// The sensor needs a rest between pings or it hears the last one.
	PingInterval = 10 * time.Millisecond
)

var ErrNoEcho = errors.New("sonar: no echo")

type Interface interface {
	// Measure returns the median of n pings, in cm.
	Measure(samples int) (float64, error)
}

// EchoToCM converts the width of an echo pulse into a one-way distance.
func EchoToCM(echo time.Duration) float64 {
	return echo.Seconds() * SoundCMPerSec / 2
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// HCSR04 is an ultrasonic ranger with separate trigger and echo pins.
type HCSR04 struct {
	trigger gpio.PinOut
	echo    gpio.PinIn
}

// NewHCSR04 configures the pins.  The echo line is 5V on the module and
// must come through a divider.
func NewHCSR04(trigger gpio.PinIO, echo gpio.PinIO) (*HCSR04, error) {
	if trigger == nil || echo == nil {
		return nil, errors.New("sonar: missing pin")
	}
	if err := trigger.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "sonar: trigger %s", trigger)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "sonar: echo %s", echo)
	}
	return &HCSR04{trigger: trigger, echo: echo}, nil
}

func (h *HCSR04) ping() (time.Duration, error) {
	if err := h.trigger.Out(gpio.High); err != nil {
		return 0, err
	}
	time.Sleep(TriggerPulse)
	if err := h.trigger.Out(gpio.Low); err != nil {
		return 0, err
	}
	// Rising edge starts the echo, falling edge ends it.
	if !h.echo.WaitForEdge(EchoTimeout) {
		return 0, ErrNoEcho
	}
	start := time.Now()
	if !h.echo.WaitForEdge(EchoTimeout) {
		return 0, ErrNoEcho
	}
	return time.Since(start), nil
}

func (h *HCSR04) Measure(samples int) (float64, error) {
	if samples < 1 {
		samples = 1
	}
	var readings []float64
	var lastErr error
	for i := 0; i < samples; i++ {
		if i > 0 {
			time.Sleep(PingInterval)
		}
		echo, err := h.ping()
		if err != nil {
			lastErr = err
			continue
		}
		readings = append(readings, EchoToCM(echo))
	}
	if len(readings) == 0 {
		if lastErr == nil {
			lastErr = ErrNoEcho
		}
		return 0, lastErr
	}
	return Median(readings), nil
}

// Dummy always reports the same distance.
type Dummy struct {
	Distance float64
}

func (d *Dummy) Measure(samples int) (float64, error) {
	return d.Distance, nil
}
