package tunable

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
)

// Tunable is a float that can be nudged up and down at runtime, from a
// keyboard or a gamepad, while another goroutine reads it.
type Tunable struct {
	Name string
	Step float64
	bits uint64
}

func (t *Tunable) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.bits))
}

func (t *Tunable) Set(v float64) {
	atomic.StoreUint64(&t.bits, math.Float64bits(v))
}

// Nudge moves the value by n steps.  Values never go below zero.
func (t *Tunable) Nudge(n int) float64 {
	for {
		old := atomic.LoadUint64(&t.bits)
		v := math.Float64frombits(old) + float64(n)*t.Step
		if v < 0 {
			v = 0
		}
		if atomic.CompareAndSwapUint64(&t.bits, old, math.Float64bits(v)) {
			return v
		}
	}
}

type Tunables struct {
	lock     sync.Mutex
	all      []*Tunable
	selected int
	log      golog.Logger

	// OnChange, if set, is called after any value changes.
	OnChange func()
}

func New(logger golog.Logger) *Tunables {
	return &Tunables{log: logger}
}

func (t *Tunables) Create(name string, value, step float64) *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	n := &Tunable{Name: name, Step: step}
	n.Set(value)
	t.all = append(t.all, n)
	return n
}

func (t *Tunables) All() []*Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]*Tunable(nil), t.all...)
}

func (t *Tunables) SelectNext() *Tunable {
	return t.move(1)
}

func (t *Tunables) SelectPrev() *Tunable {
	return t.move(-1)
}

func (t *Tunables) move(delta int) *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return nil
	}
	t.selected = (t.selected + delta + len(t.all)) % len(t.all)
	c := t.all[t.selected]
	t.log.Infow("tunable selected", "name", c.Name, "value", c.Get())
	return c
}

func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.all) == 0 {
		return nil
	}
	return t.all[t.selected]
}

// Adjust nudges the selected tunable by n steps.
func (t *Tunables) Adjust(n int) {
	c := t.Current()
	if c == nil {
		return
	}
	v := c.Nudge(n)
	t.log.Infow("tunable", "name", c.Name, "value", v)
	if t.OnChange != nil {
		t.OnChange()
	}
}
