package hardware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	pkgerrors "github.com/pkg/errors"
	"go.viam.com/test"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/sonar"
)

type fakePulses struct {
	lock   sync.Mutex
	writes []string
	closed bool
}

func (f *fakePulses) SetPulseWidth(channel int, width time.Duration) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.writes = append(f.writes, fmt.Sprintf("%d=%d", channel, width.Microseconds()))
	return nil
}

func (f *fakePulses) Off(channel int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.writes = append(f.writes, fmt.Sprintf("%d=off", channel))
	return nil
}

func (f *fakePulses) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

type bench struct {
	pins   map[string]*gpiotest.Pin
	pulses *fakePulses
}

func newBench() *bench {
	b := &bench{pins: map[string]*gpiotest.Pin{}, pulses: &fakePulses{}}
	for _, name := range []string{"GPIO17", "GPIO27", "GPIO18"} {
		b.pins[name] = &gpiotest.Pin{N: name, EdgesChan: make(chan gpio.Level, 8)}
	}
	b.pins["GPIO4"] = &gpiotest.Pin{N: "GPIO4"}
	return b
}

func (b *bench) platform() platform {
	return platform{
		init: func() error { return nil },
		pin: func(name string) gpio.PinIO {
			if p, ok := b.pins[name]; ok {
				return p
			}
			return nil
		},
		pulses: func(d config.Drive) (drive.PulseWriter, error) { return b.pulses, nil },
		output: silent{},
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Drive.Settle = 0
	cfg.Motion.StopSettle = time.Millisecond
	return cfg
}

func TestOpenAndShutdown(t *testing.T) {
	b := newBench()
	h, err := open(testConfig(), golog.NewTestLogger(t), b.platform())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.pins["GPIO17"].P, test.ShouldEqual, gpio.PullUp)
	_, isHCSR04 := h.RangeSensor().(*sonar.HCSR04)
	test.That(t, isHCSR04, test.ShouldBeTrue)

	h.Start(context.Background())
	left, right := h.Encoders()
	b.pins["GPIO17"].EdgesChan <- gpio.High
	b.pins["GPIO17"].EdgesChan <- gpio.Low
	b.pins["GPIO27"].EdgesChan <- gpio.High
	for i := 0; i < 100 && (left.TotalTicks() < 2 || right.TotalTicks() < 1); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	test.That(t, left.TotalTicks(), test.ShouldEqual, 2)
	test.That(t, right.TotalTicks(), test.ShouldEqual, 1)

	c, err := h.Controller()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Config().Gains.KP, test.ShouldEqual, 15.0)

	h.Shutdown()
	h.Shutdown()
	test.That(t, b.pulses.closed, test.ShouldBeTrue)
	test.That(t, b.pulses.writes, test.ShouldResemble, []string{"0=off", "1=off", "0=off", "1=off"})
}

func TestMissingPin(t *testing.T) {
	b := newBench()
	delete(b.pins, "GPIO18")
	_, err := open(testConfig(), golog.NewTestLogger(t), b.platform())
	test.That(t, pkgerrors.Cause(err), test.ShouldEqual, ErrMissingPin)
}

func TestHostInitFailure(t *testing.T) {
	p := newBench().platform()
	p.init = func() error { return errors.New("no /dev/gpiomem") }
	_, err := open(testConfig(), golog.NewTestLogger(t), p)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBadBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Drive.Backend = "pigpio"
	_, err := OpenPulses(cfg.Drive)
	test.That(t, pkgerrors.Cause(err), test.ShouldEqual, config.ErrBadConfig)

	cfg.Drive.Backend = config.BackendDummy
	w, err := OpenPulses(cfg.Drive)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.SetPulseWidth(0, 1500*time.Microsecond), test.ShouldBeNil)
}

func TestDummy(t *testing.T) {
	h := NewDummy(testConfig(), golog.NewTestLogger(t))
	h.Start(context.Background())
	d, err := h.RangeSensor().Measure(5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 100.0)
	_, err = h.Controller()
	test.That(t, err, test.ShouldBeNil)
	h.PlaySound("")
	h.Shutdown()
}

func TestIgnoreMissing(t *testing.T) {
	old, had := os.LookupEnv("IGNORE_MISSING_HARDWARE")
	defer func() {
		if had {
			os.Setenv("IGNORE_MISSING_HARDWARE", old)
		} else {
			os.Unsetenv("IGNORE_MISSING_HARDWARE")
		}
	}()
	os.Setenv("IGNORE_MISSING_HARDWARE", "true")
	test.That(t, IgnoreMissing(), test.ShouldBeTrue)
	os.Setenv("IGNORE_MISSING_HARDWARE", "false")
	test.That(t, IgnoreMissing(), test.ShouldBeFalse)
}
