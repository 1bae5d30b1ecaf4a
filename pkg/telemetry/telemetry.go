package telemetry

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/tigerbot-team/stingray/pkg/motion"
)

type TickReader interface {
	TotalTicks() int
}

// Reading is a pair of cumulative encoder counts.
type Reading struct {
	At          time.Duration
	Left, Right int
}

// Recorder collects control loop samples and encoder readings for plotting.
type Recorder struct {
	lock     sync.Mutex
	start    time.Time
	samples  []motion.Sample
	readings []Reading
}

func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// Observe has the motion.Observer signature.
func (r *Recorder) Observe(s motion.Sample) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.samples = append(r.samples, s)
}

func (r *Recorder) Record(rd Reading) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.readings = append(r.readings, rd)
}

func (r *Recorder) Samples() []motion.Sample {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]motion.Sample(nil), r.samples...)
}

func (r *Recorder) Readings() []Reading {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Reading(nil), r.readings...)
}

// Poll records the encoders every interval until ctx is done.
func (r *Recorder) Poll(ctx context.Context, wg *sync.WaitGroup, left, right TickReader, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Record(Reading{
				At:    time.Since(r.start),
				Left:  left.TotalTicks(),
				Right: right.TotalTicks(),
			})
		}
	}
}

var (
	leftColour   = color.RGBA{220, 50, 30, 255}
	rightColour  = color.RGBA{30, 90, 220, 255}
	targetColour = color.RGBA{40, 40, 40, 255}
)

type series struct {
	colour color.Color
	xs, ys []float64
}

type panel struct {
	title  string
	series []series
}

func (p panel) bounds() (minX, maxX, minY, maxY float64, ok bool) {
	for _, s := range p.series {
		for i := range s.xs {
			if !ok {
				minX, maxX, minY, maxY, ok = s.xs[i], s.xs[i], s.ys[i], s.ys[i], true
				continue
			}
			if s.xs[i] < minX {
				minX = s.xs[i]
			}
			if s.xs[i] > maxX {
				maxX = s.xs[i]
			}
			if s.ys[i] < minY {
				minY = s.ys[i]
			}
			if s.ys[i] > maxY {
				maxY = s.ys[i]
			}
		}
	}
	if maxX == minX {
		maxX = minX + 1
	}
	if maxY == minY {
		maxY = minY + 1
	}
	return
}

func (p panel) draw(dc *gg.Context, x, y, w, h float64) {
	const margin = 30
	dc.SetRGB(0, 0, 0)
	dc.DrawString(p.title, x+margin, y+15)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x+margin, y+margin, w-2*margin, h-2*margin)
	dc.Stroke()

	minX, maxX, minY, maxY, ok := p.bounds()
	if !ok {
		return
	}
	dc.DrawString(fmt.Sprintf("%.0f", maxY), x+2, y+margin+5)
	dc.DrawString(fmt.Sprintf("%.0f", minY), x+2, y+h-margin)

	px := func(v float64) float64 { return x + margin + (v-minX)/(maxX-minX)*(w-2*margin) }
	py := func(v float64) float64 { return y + h - margin - (v-minY)/(maxY-minY)*(h-2*margin) }

	dc.SetLineWidth(2)
	for _, s := range p.series {
		if len(s.xs) == 0 {
			continue
		}
		dc.SetColor(s.colour)
		dc.MoveTo(px(s.xs[0]), py(s.ys[0]))
		for i := 1; i < len(s.xs); i++ {
			dc.LineTo(px(s.xs[i]), py(s.ys[i]))
		}
		dc.Stroke()
	}
}

// Render draws ticks against target and the commanded speeds from the
// control loop, with raw encoder totals underneath when there are any.
func (r *Recorder) Render(w, h int) *gg.Context {
	samples := r.Samples()
	readings := r.Readings()

	var ticks, speeds, raw panel
	ticks.title = "ticks since reset (left, right, target)"
	speeds.title = "pulse width us (left, right)"
	raw.title = "total encoder ticks (left, right)"

	var lt, rt, tg, ls, rs series
	lt.colour, rt.colour, tg.colour = leftColour, rightColour, targetColour
	ls.colour, rs.colour = leftColour, rightColour
	for _, s := range samples {
		t := s.Elapsed.Seconds()
		lt.xs, lt.ys = append(lt.xs, t), append(lt.ys, float64(s.LeftTicks))
		rt.xs, rt.ys = append(rt.xs, t), append(rt.ys, float64(s.RightTicks))
		tg.xs, tg.ys = append(tg.xs, t), append(tg.ys, float64(s.Target))
		ls.xs, ls.ys = append(ls.xs, t), append(ls.ys, s.LeftSpeed)
		rs.xs, rs.ys = append(rs.xs, t), append(rs.ys, s.RightSpeed)
	}
	ticks.series = []series{lt, rt, tg}
	speeds.series = []series{ls, rs}

	var lr, rr series
	lr.colour, rr.colour = leftColour, rightColour
	for _, rd := range readings {
		t := rd.At.Seconds()
		lr.xs, lr.ys = append(lr.xs, t), append(lr.ys, float64(rd.Left))
		rr.xs, rr.ys = append(rr.xs, t), append(rr.ys, float64(rd.Right))
	}
	raw.series = []series{lr, rr}

	panels := []panel{ticks, speeds}
	if len(readings) > 0 {
		panels = append(panels, raw)
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	ph := float64(h) / float64(len(panels))
	for i, p := range panels {
		p.draw(dc, 0, float64(i)*ph, float64(w), ph)
	}
	return dc
}

func (r *Recorder) SavePNG(path string, w, h int) error {
	return r.Render(w, h).SavePNG(path)
}
