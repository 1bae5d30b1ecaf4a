package avoidance

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/sonar"
)

type Config struct {
	ThresholdCM  float64
	Samples      int
	PollInterval time.Duration

	// The escape manoeuvre.
	Turn      time.Duration
	Advance   time.Duration
	AfterStop time.Duration
}

func DefaultConfig() Config {
	return Config{
		ThresholdCM:  5,
		Samples:      5,
		PollInterval: 10 * time.Millisecond,
		Turn:         500 * time.Millisecond,
		Advance:      1500 * time.Millisecond,
		AfterStop:    time.Second,
	}
}

type Mover interface {
	Execute(cmd motion.Command)
}

// Avoider polls a range sensor and steers away when something is too close.
type Avoider struct {
	cfg    Config
	sensor sonar.Interface
	mover  Mover
	clock  motion.Clock
	log    golog.Logger

	// OnObstacle, if set, is called before each escape.
	OnObstacle func(distanceCM float64)

	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(cfg Config, sensor sonar.Interface, mover Mover, clock motion.Clock, logger golog.Logger) *Avoider {
	return &Avoider{
		cfg:    cfg,
		sensor: sensor,
		mover:  mover,
		clock:  clock,
		log:    logger,
	}
}

// Step takes one reading and, if it is under the threshold, runs the
// escape manoeuvre.  Failed readings are logged and treated as clear.
func (a *Avoider) Step() (escaped bool) {
	start := a.clock.Now()
	d, err := a.sensor.Measure(a.cfg.Samples)
	if err != nil {
		a.log.Debugw("no distance reading", "error", err)
		return false
	}
	a.log.Debugw("distance", "cm", d, "took", a.clock.Now().Sub(start))
	if d >= a.cfg.ThresholdCM {
		return false
	}

	a.log.Infow("obstacle", "cm", d)
	if a.OnObstacle != nil {
		a.OnObstacle(d)
	}
	a.mover.Execute(motion.Command{Direction: motion.Right, Duration: a.cfg.Turn})
	a.mover.Execute(motion.Command{Direction: motion.Forward, Duration: a.cfg.Advance})
	a.clock.Sleep(a.cfg.AfterStop)
	return true
}

func (a *Avoider) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer a.log.Info("avoidance loop exited")
	for ctx.Err() == nil {
		a.Step()
		a.clock.Sleep(a.cfg.PollInterval)
	}
}

func (a *Avoider) Name() string {
	return "SONAR MODE"
}

func (a *Avoider) Start(ctx context.Context) {
	var loopCtx context.Context
	loopCtx, a.cancel = context.WithCancel(ctx)
	a.stopWG.Add(1)
	go a.Loop(loopCtx, &a.stopWG)
}

func (a *Avoider) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.stopWG.Wait()
}
