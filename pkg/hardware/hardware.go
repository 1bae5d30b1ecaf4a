package hardware

import (
	"context"
	"os"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/encoder"
	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/pca9685"
	"github.com/tigerbot-team/stingray/pkg/rpiopwm"
	"github.com/tigerbot-team/stingray/pkg/sonar"
	"github.com/tigerbot-team/stingray/pkg/sound"
)

var ErrMissingPin = errors.New("hardware: no such pin")

// IgnoreMissing reports whether IGNORE_MISSING_HARDWARE asks for dummy
// hardware in place of devices that fail to open.
func IgnoreMissing() bool {
	return os.Getenv("IGNORE_MISSING_HARDWARE") == "true"
}

// platform is how the hardware is reached; tests swap it out.
type platform struct {
	init   func() error
	pin    func(name string) gpio.PinIO
	pulses func(d config.Drive) (drive.PulseWriter, error)
	output sound.Output
}

func realPlatform() platform {
	return platform{
		init: func() error {
			_, err := host.Init()
			return err
		},
		pin:    gpioreg.ByName,
		pulses: OpenPulses,
		output: sound.Speaker(),
	}
}

// OpenPulses opens the servo outputs for the configured backend.
func OpenPulses(d config.Drive) (drive.PulseWriter, error) {
	switch d.Backend {
	case config.BackendPCA9685:
		p, err := pca9685.New(d.I2CDevice, d.I2CAddr)
		if err != nil {
			return nil, err
		}
		if err := p.Configure(); err != nil {
			p.Close()
			return nil, errors.Wrap(err, "pca9685: configure")
		}
		return p, nil
	case config.BackendRPIO:
		return rpiopwm.Open(d.LeftChannel, d.RightChannel)
	case config.BackendDummy:
		return pca9685.Dummy(), nil
	}
	return nil, errors.Wrapf(config.ErrBadConfig, "unknown drive backend %q", d.Backend)
}

type Hardware struct {
	cfg config.Config
	log golog.Logger

	left, right       *encoder.Encoder
	leftPin, rightPin gpio.PinIn

	pulses drive.PulseWriter
	drive  drive.Interface
	sonar  sonar.Interface
	player *sound.Player

	cancel  context.CancelFunc
	readers sync.WaitGroup
	stop    sync.Once
}

var _ Interface = (*Hardware)(nil)

// New opens the robot's devices.  If any of them is missing and
// IGNORE_MISSING_HARDWARE=true, a dummy robot is returned instead of the
// error.
func New(cfg config.Config, logger golog.Logger) (*Hardware, error) {
	h, err := open(cfg, logger, realPlatform())
	if err != nil && IgnoreMissing() {
		logger.Warnw("hardware missing, using dummy", "error", err)
		return NewDummy(cfg, logger), nil
	}
	return h, err
}

func open(cfg config.Config, logger golog.Logger, p platform) (*Hardware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, errors.Wrap(err, "hardware: host init")
	}

	pins := map[string]gpio.PinIO{}
	for _, name := range []string{cfg.Encoders.LeftPin, cfg.Encoders.RightPin, cfg.Sonar.TriggerPin, cfg.Sonar.EchoPin} {
		pin := p.pin(name)
		if pin == nil {
			return nil, errors.Wrapf(ErrMissingPin, "%q", name)
		}
		pins[name] = pin
	}
	for _, name := range []string{cfg.Encoders.LeftPin, cfg.Encoders.RightPin} {
		if err := pins[name].In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, errors.Wrapf(err, "hardware: encoder pin %s", name)
		}
	}
	ranger, err := sonar.NewHCSR04(pins[cfg.Sonar.TriggerPin], pins[cfg.Sonar.EchoPin])
	if err != nil {
		return nil, err
	}

	pulses, err := p.pulses(cfg.Drive)
	if err != nil {
		return nil, errors.Wrapf(err, "hardware: %s outputs", cfg.Drive.Backend)
	}

	h := &Hardware{
		cfg:      cfg,
		log:      logger,
		left:     encoder.New("left", cfg.Encoders.TicksPerRev, cfg.Encoders.RadiusCM),
		right:    encoder.New("right", cfg.Encoders.TicksPerRev, cfg.Encoders.RadiusCM),
		leftPin:  pins[cfg.Encoders.LeftPin],
		rightPin: pins[cfg.Encoders.RightPin],
		pulses:   pulses,
		drive:    drive.NewServos(pulses, cfg.DriveConfig(), logger.Named("drive")),
		sonar:    ranger,
		player:   sound.NewPlayer(p.output, logger.Named("sound")),
	}
	logger.Infow("hardware ready", "backend", cfg.Drive.Backend,
		"encoders", []string{cfg.Encoders.LeftPin, cfg.Encoders.RightPin},
		"sonar", []string{cfg.Sonar.TriggerPin, cfg.Sonar.EchoPin})
	return h, nil
}

func (h *Hardware) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	if h.leftPin == nil {
		return
	}
	h.readers.Add(2)
	go h.left.Watch(ctx, h.leftPin, &h.readers)
	go h.right.Watch(ctx, h.rightPin, &h.readers)
}

func (h *Hardware) Controller(opts ...motion.Option) (*motion.Controller, error) {
	opts = append([]motion.Option{motion.WithLogger(h.log.Named("motion"))}, opts...)
	return motion.New(h.left, h.right, h.drive, h.cfg.MotionConfig(), opts...)
}

func (h *Hardware) Encoders() (left, right *encoder.Encoder) {
	return h.left, h.right
}

func (h *Hardware) Driver() drive.Interface {
	return h.drive
}

func (h *Hardware) RangeSensor() sonar.Interface {
	return h.sonar
}

func (h *Hardware) PlaySound(path string) {
	if path == "" {
		return
	}
	h.player.Play(path)
}

// Shutdown stops the wheels twice, with the usual settle in between, then
// closes the outputs.  Safe to call more than once.
func (h *Hardware) Shutdown() {
	h.stop.Do(func() {
		h.log.Info("shutting down")
		h.drive.Stop()
		motion.RealClock().Sleep(h.cfg.Motion.StopSettle)
		h.drive.Stop()
		if h.cancel != nil {
			h.cancel()
		}
		h.readers.Wait()
		if h.pulses != nil {
			if err := h.pulses.Close(); err != nil {
				h.log.Warnw("failed to close outputs", "error", err)
			}
		}
		h.player.Close()
	})
}
