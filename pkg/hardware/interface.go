package hardware

import (
	"context"

	"github.com/tigerbot-team/stingray/pkg/drive"
	"github.com/tigerbot-team/stingray/pkg/encoder"
	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/sonar"
)

type Interface interface {
	// Start launches the background readers (encoder watchers).
	Start(ctx context.Context)

	// Controller builds a motion controller over this robot's encoders
	// and wheels.
	Controller(opts ...motion.Option) (*motion.Controller, error)

	Encoders() (left, right *encoder.Encoder)
	Driver() drive.Interface
	RangeSensor() sonar.Interface

	PlaySound(path string)

	// Shutdown stops the wheels and releases the outputs.
	Shutdown()
}
