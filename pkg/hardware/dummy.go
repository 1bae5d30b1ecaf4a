package hardware

import (
	"github.com/edaniels/golog"
	"github.com/faiface/beep"

	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/encoder"
	"github.com/tigerbot-team/stingray/pkg/sonar"
	"github.com/tigerbot-team/stingray/pkg/sound"
)

// NewDummy is a robot with no devices: the wheels only log, the encoders
// never move and the range sensor always sees open space.
func NewDummy(cfg config.Config, logger golog.Logger) *Hardware {
	logger.Info("DHW: using dummy hardware")
	return &Hardware{
		cfg:    cfg,
		log:    logger,
		left:   encoder.New("left", cfg.Encoders.TicksPerRev, cfg.Encoders.RadiusCM),
		right:  encoder.New("right", cfg.Encoders.TicksPerRev, cfg.Encoders.RadiusCM),
		drive:  drive.NewDummy(logger.Named("drive")),
		sonar:  &sonar.Dummy{Distance: 100},
		player: sound.NewPlayer(silent{}, logger.Named("sound")),
	}
}

type silent struct{}

func (silent) Init(rate beep.SampleRate, bufferSize int) error { return nil }
func (silent) Play(s ...beep.Streamer)                        {}
func (silent) Lock()                                          {}
func (silent) Unlock()                                        {}
