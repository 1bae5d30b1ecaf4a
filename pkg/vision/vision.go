package vision

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stingray/pkg/motion"
)

// Raw is one detection straight out of the network, with corners as
// fractions of the frame.
type Raw struct {
	Class                  int
	Score                  float64
	XMin, YMin, XMax, YMax float64
}

type Box struct {
	Label string
	Score float64
	Rect  image.Rectangle
}

func (b Box) String() string {
	return fmt.Sprintf("%s: %d%%", b.Label, int(b.Score*100))
}

type Detector interface {
	Detect() ([]Box, error)
	Close() error
}

// LoadLabels reads one label per line.  A leading "???" placeholder for
// the background class is dropped.
func LoadLabels(r io.Reader) ([]string, error) {
	var labels []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		labels = append(labels, strings.TrimSpace(s.Text()))
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "reading labels")
	}
	if len(labels) > 0 && labels[0] == "???" {
		labels = labels[1:]
	}
	return labels, nil
}

func LoadLabelsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening labels")
	}
	defer f.Close()
	return LoadLabels(f)
}

// Filter keeps detections scoring above threshold and scales them to a
// w x h frame.  Corners are clamped to [1, w] and [1, h].
func Filter(raw []Raw, labels []string, threshold float64, w, h int) []Box {
	var boxes []Box
	for _, r := range raw {
		if r.Score <= threshold || r.Score > 1 {
			continue
		}
		label := fmt.Sprintf("#%d", r.Class)
		if r.Class >= 0 && r.Class < len(labels) {
			label = labels[r.Class]
		}
		boxes = append(boxes, Box{
			Label: label,
			Score: r.Score,
			Rect: image.Rect(
				int(math.Max(1, r.XMin*float64(w))),
				int(math.Max(1, r.YMin*float64(h))),
				int(math.Min(float64(w), r.XMax*float64(w))),
				int(math.Min(float64(h), r.YMax*float64(h))),
			),
		})
	}
	return boxes
}

// FPSMeter reports the frame rate every Every frames.
type FPSMeter struct {
	Every int

	frames int
	start  time.Time
	fps    float64
}

func (m *FPSMeter) Frame(now time.Time) (fps float64, updated bool) {
	if m.Every <= 0 {
		m.Every = 30
	}
	if m.start.IsZero() {
		m.start = now
	}
	m.frames++
	if m.frames%m.Every == 0 {
		if took := now.Sub(m.start); took > 0 {
			m.fps = float64(m.Every) / took.Seconds()
		}
		m.start = now
		return m.fps, true
	}
	return m.fps, false
}

// Watcher runs a detector in the background and keeps the latest boxes.
type Watcher struct {
	det Detector
	log golog.Logger

	lock   sync.Mutex
	latest []Box
	seen   time.Time

	// OnFrame, if set, is called with every successful detection.
	OnFrame func([]Box)
}

func NewWatcher(det Detector, logger golog.Logger) *Watcher {
	return &Watcher{det: det, log: logger}
}

func (w *Watcher) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer w.log.Info("vision loop exited")
	for ctx.Err() == nil {
		boxes, err := w.det.Detect()
		if err != nil {
			w.log.Debugw("frame skipped", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		w.lock.Lock()
		w.latest = boxes
		w.seen = time.Now()
		w.lock.Unlock()
		if w.OnFrame != nil {
			w.OnFrame(boxes)
		}
	}
}

func (w *Watcher) Latest() []Box {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]Box(nil), w.latest...)
}

func (w *Watcher) Sees(label string) bool {
	for _, b := range w.Latest() {
		if b.Label == label {
			return true
		}
	}
	return false
}

// ForwardVeto refuses forward moves while label is in view.
func (w *Watcher) ForwardVeto(label string) func(motion.Command) bool {
	return func(cmd motion.Command) bool {
		return cmd.Direction == motion.Forward && w.Sees(label)
	}
}
