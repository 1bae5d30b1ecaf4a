package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/stingray/pkg/avoidance"
	"github.com/tigerbot-team/stingray/pkg/chassis"
	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/pid"
	"github.com/tigerbot-team/stingray/pkg/sequencer"
)

const (
	DefaultPath = "/cfg/stingray.yaml"
	InUseName   = "stingray-in-use.yaml"
)

// Pulse output backends.
const (
	BackendPCA9685 = "pca9685"
	BackendRPIO    = "rpio"
	BackendDummy   = "dummy"
)

var ErrBadConfig = errors.New("config: invalid")

type Drive struct {
	Backend string `yaml:"backend"`

	// PCA9685 only.
	I2CDevice string `yaml:"i2c-device"`
	I2CAddr   int    `yaml:"i2c-addr"`

	// PCA9685 ports, or BCM pin numbers for the rpio backend.
	LeftChannel  int `yaml:"left-channel"`
	RightChannel int `yaml:"right-channel"`

	LeftReverse     float64       `yaml:"left-reverse"`
	RightReverse    float64       `yaml:"right-reverse"`
	PivotLeftWidth  float64       `yaml:"pivot-left"`
	PivotRightWidth float64       `yaml:"pivot-right"`
	Settle          time.Duration `yaml:"settle"`
}

type Motion struct {
	KP float64 `yaml:"kp"`
	KI float64 `yaml:"ki"`
	KD float64 `yaml:"kd"`

	BaseLeft  float64 `yaml:"base-left"`
	BaseRight float64 `yaml:"base-right"`
	LeftMin   float64 `yaml:"left-min"`
	LeftMax   float64 `yaml:"left-max"`
	RightMin  float64 `yaml:"right-min"`
	RightMax  float64 `yaml:"right-max"`

	TargetStep   int           `yaml:"target-step"`
	SamplePeriod time.Duration `yaml:"sample-period"`
	StopSettle   time.Duration `yaml:"stop-settle"`
}

type Encoders struct {
	LeftPin     string  `yaml:"left-pin"`
	RightPin    string  `yaml:"right-pin"`
	TicksPerRev int     `yaml:"ticks-per-rev"`
	RadiusCM    float64 `yaml:"radius-cm"`
}

type Sonar struct {
	TriggerPin string `yaml:"trigger-pin"`
	EchoPin    string `yaml:"echo-pin"`
	Samples    int    `yaml:"samples"`

	ThresholdCM  float64       `yaml:"threshold-cm"`
	PollInterval time.Duration `yaml:"poll-interval"`
	Turn         time.Duration `yaml:"turn"`
	Advance      time.Duration `yaml:"advance"`
	AfterStop    time.Duration `yaml:"after-stop"`

	// Played on each obstacle, if set.
	Sound string `yaml:"sound"`
}

type Vision struct {
	Device      int     `yaml:"device"`
	Model       string  `yaml:"model"`
	ModelConfig string  `yaml:"model-config"`
	Labels      string  `yaml:"labels"`
	Threshold   float64 `yaml:"threshold"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	FPS         int     `yaml:"fps"`
	InputSize   int     `yaml:"input-size"`
	Show        bool    `yaml:"show"`

	// Teleop refuses to drive forward while this label is in view.
	VetoLabel string `yaml:"veto-label"`
}

type Telemetry struct {
	// Where to save a plot of each run; empty disables it.
	Plot         string        `yaml:"plot"`
	PollInterval time.Duration `yaml:"poll-interval"`
}

type Config struct {
	Drive     Drive            `yaml:"drive"`
	Motion    Motion           `yaml:"motion"`
	Encoders  Encoders         `yaml:"encoders"`
	Sonar     Sonar            `yaml:"sonar"`
	Vision    Vision           `yaml:"vision"`
	Telemetry Telemetry        `yaml:"telemetry"`
	Paths     []sequencer.Path `yaml:"paths"`
}

// Default is the bench calibration of the lab robot.
func Default() Config {
	m := motion.DefaultConfig()
	d := drive.DefaultConfig()
	a := avoidance.DefaultConfig()
	return Config{
		Drive: Drive{
			Backend:         BackendPCA9685,
			I2CDevice:       "/dev/i2c-1",
			I2CAddr:         0x40,
			LeftChannel:     d.LeftChannel,
			RightChannel:    d.RightChannel,
			LeftReverse:     d.LeftReverse,
			RightReverse:    d.RightReverse,
			PivotLeftWidth:  d.PivotLeftWidth,
			PivotRightWidth: d.PivotRightWidth,
			Settle:          d.Settle,
		},
		Motion: Motion{
			KP:           m.Gains.KP,
			KI:           m.Gains.KI,
			KD:           m.Gains.KD,
			BaseLeft:     m.BaseSpeedLeft,
			BaseRight:    m.BaseSpeedRight,
			LeftMin:      m.LeftLimits.Min,
			LeftMax:      m.LeftLimits.Max,
			RightMin:     m.RightLimits.Min,
			RightMax:     m.RightLimits.Max,
			TargetStep:   m.TargetStep,
			SamplePeriod: m.SamplePeriod,
			StopSettle:   m.StopSettle,
		},
		Encoders: Encoders{
			LeftPin:     "GPIO17",
			RightPin:    "GPIO27",
			TicksPerRev: chassis.EncoderTicksPerRev,
			RadiusCM:    chassis.WheelRadiusCM,
		},
		Sonar: Sonar{
			TriggerPin:   "GPIO4",
			EchoPin:      "GPIO18",
			Samples:      a.Samples,
			ThresholdCM:  a.ThresholdCM,
			PollInterval: a.PollInterval,
			Turn:         a.Turn,
			Advance:      a.Advance,
			AfterStop:    a.AfterStop,
		},
		Vision: Vision{
			Model:     "/cfg/detect.pb",
			Labels:    "/cfg/labelmap.txt",
			Threshold: 0.5,
			Width:     600,
			Height:    300,
			FPS:       30,
			InputSize: 300,
		},
		Telemetry: Telemetry{
			PollInterval: 20 * time.Millisecond,
		},
	}
}

func (c Config) MotionConfig() motion.Config {
	return motion.Config{
		Gains:          pid.Gains{KP: c.Motion.KP, KI: c.Motion.KI, KD: c.Motion.KD},
		BaseSpeedLeft:  c.Motion.BaseLeft,
		BaseSpeedRight: c.Motion.BaseRight,
		LeftLimits:     motion.Limits{Min: c.Motion.LeftMin, Max: c.Motion.LeftMax},
		RightLimits:    motion.Limits{Min: c.Motion.RightMin, Max: c.Motion.RightMax},
		TargetStep:     c.Motion.TargetStep,
		SamplePeriod:   c.Motion.SamplePeriod,
		StopSettle:     c.Motion.StopSettle,
	}
}

func (c Config) DriveConfig() drive.Config {
	return drive.Config{
		LeftChannel:     c.Drive.LeftChannel,
		RightChannel:    c.Drive.RightChannel,
		LeftReverse:     c.Drive.LeftReverse,
		RightReverse:    c.Drive.RightReverse,
		PivotLeftWidth:  c.Drive.PivotLeftWidth,
		PivotRightWidth: c.Drive.PivotRightWidth,
		Settle:          c.Drive.Settle,
	}
}

func (c Config) AvoidanceConfig() avoidance.Config {
	return avoidance.Config{
		ThresholdCM:  c.Sonar.ThresholdCM,
		Samples:      c.Sonar.Samples,
		PollInterval: c.Sonar.PollInterval,
		Turn:         c.Sonar.Turn,
		Advance:      c.Sonar.Advance,
		AfterStop:    c.Sonar.AfterStop,
	}
}

// AllPaths returns the built-in paths plus any from the file, which win
// on a name clash.
func (c Config) AllPaths() map[string]sequencer.Path {
	paths := sequencer.BuiltIn()
	for _, p := range c.Paths {
		paths[p.Name] = p
	}
	return paths
}

func (c Config) Validate() error {
	if err := c.MotionConfig().Validate(); err != nil {
		return err
	}
	switch c.Drive.Backend {
	case BackendPCA9685, BackendRPIO, BackendDummy:
	default:
		return errors.Wrapf(ErrBadConfig, "unknown drive backend %q", c.Drive.Backend)
	}
	if c.Drive.LeftChannel == c.Drive.RightChannel {
		return errors.Wrap(ErrBadConfig, "left and right drive channels are the same")
	}
	if c.Drive.Settle < 0 {
		return errors.Wrap(ErrBadConfig, "drive settle must not be negative")
	}
	if c.Encoders.TicksPerRev <= 0 || c.Encoders.RadiusCM <= 0 {
		return errors.Wrap(ErrBadConfig, "encoder geometry must be positive")
	}
	if c.Sonar.Samples <= 0 {
		return errors.Wrap(ErrBadConfig, "sonar samples must be positive")
	}
	if c.Sonar.ThresholdCM <= 0 {
		return errors.Wrap(ErrBadConfig, "sonar threshold must be positive")
	}
	for _, p := range c.Paths {
		if err := p.Validate(); err != nil {
			return errors.Wrap(err, "config paths")
		}
	}
	return nil
}

// Path is where the config file lives: $STINGRAY_CONFIG or DefaultPath.
func Path() string {
	if p := os.Getenv("STINGRAY_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load overlays the YAML file at path on the defaults.  A missing file
// just means defaults.
func Load(path string, logger golog.Logger) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Infow("no config file, using defaults", "path", path)
	} else if err != nil {
		return cfg, errors.Wrapf(err, "reading %s", path)
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Save(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0666), "writing %s", path)
}

// SaveInUse writes the config alongside the file it was loaded from.
// Failure is only logged; the robot can run without it.
func (c Config) SaveInUse(loadedFrom string, logger golog.Logger) {
	out := filepath.Join(filepath.Dir(loadedFrom), InUseName)
	if err := c.Save(out); err != nil {
		logger.Warnw("failed to write in-use config", "error", err)
		return
	}
	logger.Debugw("wrote in-use config", "path", out)
}
