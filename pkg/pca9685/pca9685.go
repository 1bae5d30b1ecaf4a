package pca9685

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	NumPorts = 16

	PWMPeriod = 20 * time.Millisecond
	PWMMax    = 4095

	// Bit 4 of the OFF high byte forces the output fully off.
	fullOff = 0x10

	// Anything outside this window is not a servo pulse.
	MinPulse = 500 * time.Microsecond
	MaxPulse = 2500 * time.Microsecond
)

var ErrBadPort = errors.New("pca9685: port out of range")

type Interface interface {
	Configure() error
	SetPulseWidth(port int, width time.Duration) error
	Off(port int) error
	Close() error
}

type PCA9685 struct {
	dev *i2c.Device
}

func New(deviceFile string, addr int) (Interface, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "pca9685: open %s", deviceFile)
	}
	return &PCA9685{
		dev: dev,
	}, nil
}

func (p *PCA9685) Configure() (err error) {
	// Put device to sleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	// Update pre-scaler for 50Hz.
	err = p.dev.WriteReg(RegPreScale, []byte{0x79})
	if err != nil {
		return
	}
	// Trigger a reset
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable.
	err = p.dev.WriteReg(RegMode1, []byte{0x81})
	return
}

// Counts converts a pulse width into the 12-bit off count for a 50Hz frame.
func Counts(width time.Duration) uint16 {
	if width < MinPulse {
		width = MinPulse
	} else if width > MaxPulse {
		width = MaxPulse
	}
	return uint16(int64(PWMMax) * int64(width) / int64(PWMPeriod))
}

func (p *PCA9685) SetPulseWidth(port int, width time.Duration) error {
	if port < 0 || port >= NumPorts {
		return ErrBadPort
	}
	v := Counts(width)
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(v & 0xff), byte(v >> 8)})
}

func (p *PCA9685) Off(port int) error {
	if port < 0 || port >= NumPorts {
		return ErrBadPort
	}
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, 0, fullOff})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

func Dummy() Interface {
	return &dummyServo{}
}

type dummyServo struct {
}

func (*dummyServo) Configure() error {
	return nil
}

func (*dummyServo) SetPulseWidth(port int, width time.Duration) error {
	return nil
}

func (*dummyServo) Off(port int) error {
	return nil
}

func (*dummyServo) Close() error {
	return nil
}
