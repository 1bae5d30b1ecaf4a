// Package camera runs an SSD object detector over webcam frames with
// OpenCV.
package camera

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tigerbot-team/stingray/pkg/vision"
)

var ErrNoFrame = errors.New("camera: no frame")

type Config struct {
	Device      int
	Model       string
	ModelConfig string
	Labels      string
	Threshold   float64
	Width       int
	Height      int
	FPS         int
	InputSize   int
	Show        bool
}

type Camera struct {
	cfg    Config
	labels []string
	log    golog.Logger

	webcam *gocv.VideoCapture
	net    gocv.Net
	img    gocv.Mat
	window *gocv.Window
	fps    vision.FPSMeter
}

func Open(cfg Config, logger golog.Logger) (*Camera, error) {
	labels, err := vision.LoadLabelsFile(cfg.Labels)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.Model, cfg.ModelConfig)
	if net.Empty() {
		return nil, errors.Errorf("camera: failed to load model %s", cfg.Model)
	}

	webcam, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		net.Close()
		return nil, errors.Wrapf(err, "camera: opening device %d", cfg.Device)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	c := &Camera{
		cfg:    cfg,
		labels: labels,
		log:    logger,
		webcam: webcam,
		net:    net,
		img:    gocv.NewMat(),
		fps:    vision.FPSMeter{Every: 30},
	}
	if cfg.Show {
		c.window = gocv.NewWindow("stingray")
	}
	logger.Infow("camera open", "device", cfg.Device, "model", cfg.Model, "labels", len(labels))
	return c, nil
}

func (c *Camera) Detect() ([]vision.Box, error) {
	// This blocks until the next frame is ready.
	if ok := c.webcam.Read(&c.img); !ok || c.img.Empty() {
		return nil, ErrNoFrame
	}

	size := image.Pt(c.cfg.InputSize, c.cfg.InputSize)
	blob := gocv.BlobFromImage(c.img, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()
	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	boxes := vision.Filter(parse(out), c.labels, c.cfg.Threshold, c.img.Cols(), c.img.Rows())

	fps, updated := c.fps.Frame(time.Now())
	if updated {
		c.log.Debugw("detector", "fps", fps, "boxes", len(boxes))
	}
	if c.window != nil {
		Annotate(&c.img, boxes, fps)
		c.window.IMShow(c.img)
		c.window.WaitKey(1)
	}
	return boxes, nil
}

// parse reads the [1, 1, N, 7] SSD output: image id, class, score, then
// left, top, right, bottom.  Class 0 is background so classes shift down
// by one to line up with the label file.
func parse(out gocv.Mat) []vision.Raw {
	var raw []vision.Raw
	for i := 0; i+6 < out.Total(); i += 7 {
		raw = append(raw, vision.Raw{
			Class: int(out.GetFloatAt(0, i+1)) - 1,
			Score: float64(out.GetFloatAt(0, i+2)),
			XMin:  float64(out.GetFloatAt(0, i+3)),
			YMin:  float64(out.GetFloatAt(0, i+4)),
			XMax:  float64(out.GetFloatAt(0, i+5)),
			YMax:  float64(out.GetFloatAt(0, i+6)),
		})
	}
	return raw
}

var (
	boxColour   = color.RGBA{10, 255, 0, 0}
	labelColour = color.RGBA{255, 255, 255, 0}
	textColour  = color.RGBA{0, 0, 0, 0}
)

// Annotate draws each box with its label and score, plus the frame rate.
func Annotate(img *gocv.Mat, boxes []vision.Box, fps float64) {
	for _, b := range boxes {
		gocv.Rectangle(img, b.Rect, boxColour, 2)

		text := b.String()
		size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 0.7, 2)
		y := b.Rect.Min.Y
		if y < size.Y+10 {
			y = size.Y + 10
		}
		bg := image.Rect(b.Rect.Min.X, y-size.Y-10, b.Rect.Min.X+size.X, y-10)
		gocv.Rectangle(img, bg, labelColour, -1)
		gocv.PutText(img, text, image.Pt(b.Rect.Min.X, y-7), gocv.FontHersheySimplex, 0.7, textColour, 2)
	}
	if fps > 0 {
		gocv.PutText(img, fmt.Sprintf("FPS: %.2f", fps), image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, textColour, 2)
	}
}

func (c *Camera) Close() error {
	if c.window != nil {
		c.window.Close()
	}
	c.img.Close()
	c.net.Close()
	return c.webcam.Close()
}
