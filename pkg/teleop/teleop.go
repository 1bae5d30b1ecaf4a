package teleop

import (
	"context"
	"io"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/pid"
	"github.com/tigerbot-team/stingray/pkg/tunable"
)

const (
	KeyForward  = 'w'
	KeyBackward = 's'
	KeyLeft     = 'a'
	KeyRight    = 'd'
	KeyQuit     = 'f'

	KeyPrevTunable = '['
	KeyNextTunable = ']'
	KeyIncrease    = '+'
	KeyDecrease    = '-'
)

var Keymap = map[byte]motion.Command{
	KeyForward:  {Direction: motion.Forward, Duration: time.Second},
	KeyBackward: {Direction: motion.Backward, Duration: time.Second},
	KeyLeft:     {Direction: motion.Left, Duration: 250 * time.Millisecond},
	KeyRight:    {Direction: motion.Right, Duration: 250 * time.Millisecond},
}

type Robot interface {
	Execute(cmd motion.Command)
	SetGains(g pid.Gains)
}

type Stopper interface {
	Stop()
}

type Teleop struct {
	robot   Robot
	stopper Stopper
	log     golog.Logger

	Tunables   *tunable.Tunables
	kp, ki, kd *tunable.Tunable

	// Veto, if set, can refuse a command before it runs.
	Veto func(motion.Command) bool
}

func New(robot Robot, stopper Stopper, gains pid.Gains, logger golog.Logger) *Teleop {
	t := &Teleop{
		robot:    robot,
		stopper:  stopper,
		log:      logger,
		Tunables: tunable.New(logger),
	}
	t.kp = t.Tunables.Create("KP", gains.KP, 0.5)
	t.ki = t.Tunables.Create("KI", gains.KI, 0.25)
	t.kd = t.Tunables.Create("KD", gains.KD, 0.25)
	t.Tunables.OnChange = func() {
		robot.SetGains(t.Gains())
	}
	return t
}

func (t *Teleop) Gains() pid.Gains {
	return pid.Gains{KP: t.kp.Get(), KI: t.ki.Get(), KD: t.kd.Get()}
}

// Handle acts on one key.  It returns false once the quit key is seen.
func (t *Teleop) Handle(key byte) bool {
	defer t.stopper.Stop()

	if cmd, ok := Keymap[key]; ok {
		if t.Veto != nil && t.Veto(cmd) {
			t.log.Infow("command vetoed", "cmd", cmd)
			return true
		}
		t.robot.Execute(cmd)
		return true
	}

	switch key {
	case KeyQuit:
		t.log.Info("quit")
		return false
	case KeyNextTunable:
		t.Tunables.SelectNext()
	case KeyPrevTunable:
		t.Tunables.SelectPrev()
	case KeyIncrease, '=':
		t.Tunables.Adjust(1)
	case KeyDecrease, '_':
		t.Tunables.Adjust(-1)
	case '\r', '\n':
	default:
		t.log.Debugw("unmapped key", "key", string(key))
	}
	return true
}

// Run reads keys until the quit key, end of input or cancellation.
// A Read that is blocked when ctx is cancelled is abandoned.
func (t *Teleop) Run(ctx context.Context, in io.Reader) error {
	keys := make(chan byte)
	errs := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if n == 1 {
				select {
				case keys <- buf[0]:
				case <-quit:
					return
				}
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	defer t.stopper.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err == io.EOF {
				return nil
			}
			return err
		case k := <-keys:
			if !t.Handle(k) {
				return nil
			}
		}
	}
}
