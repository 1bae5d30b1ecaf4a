package sequencer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/stingray/pkg/motion"
)

const ActionPause = "pause"

type Step struct {
	Action  string  `yaml:"action"`
	Seconds float64 `yaml:"seconds"`
}

func (s Step) Duration() time.Duration {
	return time.Duration(s.Seconds * float64(time.Second))
}

type Path struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Mover is anything that can run a blocking motion command.
type Mover interface {
	Execute(cmd motion.Command)
}

func move(action string, secs float64) Step { return Step{Action: action, Seconds: secs} }
func pause(secs float64) Step                { return Step{Action: ActionPause, Seconds: secs} }

// Path1 and Path2 are the two lab courses.
var (
	Path1 = Path{Name: "path1", Steps: []Step{
		pause(1), move("straight", 1.1),
		pause(1), move("right", 0.25), move("straight", 1),
		pause(1), move("left", 0.25), move("straight", 1),
		pause(1), move("straight", 2),
		pause(1), move("left", 0.25), move("straight", 1),
		pause(1), move("right", 0.25), move("straight", 1),
		pause(1), move("straight", 1.5),
	}}

	Path2 = Path{Name: "path2", Steps: []Step{
		pause(1), move("straight", 1),
		pause(1), move("left", 1), move("straight", 1),
		pause(1), move("right", 0.12), move("straight", 2.5),
		pause(1), move("left", 0.5), move("straight", 1),
		pause(1), move("right", 0.5), move("straight", 2),
		pause(1),
	}}
)

func BuiltIn() map[string]Path {
	return map[string]Path{
		Path1.Name: Path1,
		Path2.Name: Path2,
	}
}

func (p Path) Validate() error {
	if p.Name == "" {
		return errors.New("path has no name")
	}
	for i, s := range p.Steps {
		if s.Seconds <= 0 {
			return errors.Errorf("path %s step %d: seconds must be positive", p.Name, i)
		}
		if strings.EqualFold(s.Action, ActionPause) {
			continue
		}
		if _, err := motion.ParseDirection(s.Action); err != nil {
			return errors.Wrapf(err, "path %s step %d", p.Name, i)
		}
	}
	return nil
}

// LoadPaths parses a YAML list of paths.
func LoadPaths(data []byte) (map[string]Path, error) {
	var paths []Path
	if err := yaml.Unmarshal(data, &paths); err != nil {
		return nil, errors.Wrap(err, "parsing paths")
	}
	out := map[string]Path{}
	for _, p := range paths {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	return out, nil
}

// Run executes the steps of p in order.  Cancellation is only noticed
// between steps; a move that has started always runs to completion.
func Run(ctx context.Context, m Mover, clock motion.Clock, p Path, logger golog.Logger) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for i, s := range p.Steps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if strings.EqualFold(s.Action, ActionPause) {
			logger.Debugw("pause", "path", p.Name, "step", i, "seconds", s.Seconds)
			clock.Sleep(s.Duration())
			continue
		}
		dir, _ := motion.ParseDirection(s.Action)
		logger.Infow("step", "path", p.Name, "step", i, "action", s.Action, "seconds", s.Seconds)
		m.Execute(motion.Command{Direction: dir, Duration: s.Duration()})
	}
	return nil
}

// Mode runs one path in the background.
type Mode struct {
	path  Path
	mover Mover
	clock motion.Clock
	log   golog.Logger

	cancel context.CancelFunc
	stopWG sync.WaitGroup
	err    error
}

func NewMode(p Path, m Mover, clock motion.Clock, logger golog.Logger) *Mode {
	return &Mode{path: p, mover: m, clock: clock, log: logger}
}

func (m *Mode) Name() string {
	return fmt.Sprintf("PATH %s", strings.ToUpper(m.path.Name))
}

func (m *Mode) Start(ctx context.Context) {
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	m.stopWG.Add(1)
	go func() {
		defer m.stopWG.Done()
		m.err = Run(loopCtx, m.mover, m.clock, m.path, m.log)
		if m.err != nil && m.err != context.Canceled {
			m.log.Errorw("path failed", "path", m.path.Name, "error", m.err)
		}
	}()
}

// Wait blocks until the path has finished.
func (m *Mode) Wait() error {
	m.stopWG.Wait()
	return m.err
}

func (m *Mode) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.stopWG.Wait()
}
