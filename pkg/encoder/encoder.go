package encoder

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// Encoder counts slots passing an optical interrupter on one wheel.
//
// Tick is called from a single watcher goroutine; everything else may be
// called from the control loop.  Both counters are atomics, so a reset that
// races with an in-flight tick leaves the since-reset count at 0 or 1 and
// never loses a tick that arrives after the reset.
type Encoder struct {
	Name string

	ticksPerRev int
	radiusCM    float64

	ticks      int64
	totalTicks int64
}

func New(name string, ticksPerRev int, radiusCM float64) *Encoder {
	if ticksPerRev <= 0 {
		ticksPerRev = 1
	}
	return &Encoder{
		Name:        name,
		ticksPerRev: ticksPerRev,
		radiusCM:    radiusCM,
	}
}

func (e *Encoder) Tick() {
	atomic.AddInt64(&e.ticks, 1)
	atomic.AddInt64(&e.totalTicks, 1)
}

// ResetTicks zeroes the since-reset counter.  The cumulative count is kept.
func (e *Encoder) ResetTicks() {
	atomic.StoreInt64(&e.ticks, 0)
}

func (e *Encoder) Ticks() int {
	return int(atomic.LoadInt64(&e.ticks))
}

func (e *Encoder) TotalTicks() int {
	return int(atomic.LoadInt64(&e.totalTicks))
}

// CMPerTick is the wheel circumference divided over the slots on the disc.
func (e *Encoder) CMPerTick() float64 {
	return 2 * math.Pi * e.radiusCM / float64(e.ticksPerRev)
}

// CurrentDistance is the distance in cm since the last reset.
func (e *Encoder) CurrentDistance() float64 {
	return float64(e.Ticks()) * e.CMPerTick()
}

func (e *Encoder) TotalDistance() float64 {
	return float64(e.TotalTicks()) * e.CMPerTick()
}

// EdgeTimeout bounds each wait so the watcher notices cancellation.
const EdgeTimeout = 100 * time.Millisecond

// Watch ticks the encoder on every edge reported by pin until ctx is done.
// The pin must already be configured for edge detection.
func (e *Encoder) Watch(ctx context.Context, pin gpio.PinIn, wg *sync.WaitGroup) {
	defer wg.Done()
	for ctx.Err() == nil {
		if pin.WaitForEdge(EdgeTimeout) {
			e.Tick()
		}
	}
}
