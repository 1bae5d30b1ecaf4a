package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stingray/pkg/avoidance"
	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/hardware"
	"github.com/tigerbot-team/stingray/pkg/joystick"
	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/sequencer"
	"github.com/tigerbot-team/stingray/pkg/telemetry"
	"github.com/tigerbot-team/stingray/pkg/teleop"
	"github.com/tigerbot-team/stingray/pkg/vision"
	"github.com/tigerbot-team/stingray/pkg/vision/camera"
)

const usage = `usage: controller <mode>

modes:
    <path>     run a scripted path (path1, path2 or one from the config file)
    sonar      drive forward and steer round obstacles
    teleop     drive from the keyboard: w/s/a/d, [ ] + - to tune gains, f to quit
    joystick   as teleop, from the gamepad on $JOYSTICK_DEVICE
    detect     run the object detector and log what it sees`

func main() {
	logger := golog.NewDevelopmentLogger("stingray")
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	mode := os.Args[1]
	logger.Infow("---- Stingray ----", "mode", mode, "GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath, logger.Named("config"))
	if err != nil {
		logger.Fatalw("bad config", "path", cfgPath, "error", err)
	}
	cfg.SaveInUse(cfgPath, logger.Named("config"))

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel, logger)

	hw, err := hardware.New(cfg, logger.Named("hw"))
	if err != nil {
		logger.Fatalw("failed to open hardware", "error", err)
	}
	defer hw.Shutdown()
	hw.Start(ctx)

	var opts []motion.Option
	var rec *telemetry.Recorder
	if cfg.Telemetry.Plot != "" {
		rec = telemetry.NewRecorder()
		opts = append(opts, motion.WithObserver(rec.Observe))
		left, right := hw.Encoders()
		var pollWG sync.WaitGroup
		pollWG.Add(1)
		go rec.Poll(ctx, &pollWG, left, right, cfg.Telemetry.PollInterval)
		defer func() {
			if err := rec.SavePNG(cfg.Telemetry.Plot, 1024, 768); err != nil {
				logger.Warnw("failed to save plot", "error", err)
			}
		}()
	}
	ctrl, err := hw.Controller(opts...)
	if err != nil {
		logger.Fatalw("failed to create motion controller", "error", err)
	}

	switch mode {
	case "sonar":
		a := avoidance.New(cfg.AvoidanceConfig(), hw.RangeSensor(), ctrl, motion.RealClock(), logger.Named("sonar"))
		a.OnObstacle = func(float64) { hw.PlaySound(cfg.Sonar.Sound) }
		a.Start(ctx)
		<-ctx.Done()
		a.Stop()
	case "teleop", "joystick":
		runTeleop(ctx, mode, cfg, hw, ctrl, logger)
	case "detect":
		det, err := openCamera(cfg, logger)
		if err != nil {
			logger.Fatalw("failed to open camera", "error", err)
		}
		defer det.Close()
		w := vision.NewWatcher(det, logger.Named("vision"))
		w.OnFrame = func(boxes []vision.Box) {
			for _, b := range boxes {
				logger.Infow("seen", "box", b.String(), "rect", b.Rect)
			}
		}
		var wg sync.WaitGroup
		wg.Add(1)
		go w.Loop(ctx, &wg)
		wg.Wait()
	default:
		p, ok := cfg.AllPaths()[mode]
		if !ok {
			logger.Errorw("unknown mode", "mode", mode, "paths", pathNames(cfg))
			fmt.Println(usage)
			return
		}
		m := sequencer.NewMode(p, ctrl, motion.RealClock(), logger.Named("path"))
		m.Start(ctx)
		if err := m.Wait(); err != nil {
			logger.Warnw("path interrupted", "error", err)
		}
		m.Stop()
	}
}

func runTeleop(ctx context.Context, mode string, cfg config.Config, hw hardware.Interface, ctrl *motion.Controller, logger golog.Logger) {
	t := teleop.New(ctrl, hw.Driver(), ctrl.Config().Gains, logger.Named("teleop"))

	if cfg.Vision.VetoLabel != "" {
		det, err := openCamera(cfg, logger)
		if err != nil {
			logger.Warnw("no camera, driving without vision", "error", err)
		} else {
			defer det.Close()
			w := vision.NewWatcher(det, logger.Named("vision"))
			visionCtx, stopVision := context.WithCancel(ctx)
			var wg sync.WaitGroup
			wg.Add(1)
			go w.Loop(visionCtx, &wg)
			defer wg.Wait()
			defer stopVision()
			t.Veto = w.ForwardVeto(cfg.Vision.VetoLabel)
		}
	}

	if mode == "joystick" {
		jDev := os.Getenv("JOYSTICK_DEVICE")
		if jDev == "" {
			jDev = "/dev/input/js0"
		}
		j, err := joystick.NewJoystick(jDev)
		if err != nil {
			logger.Errorw("failed to open joystick", "device", jDev, "error", err)
			return
		}
		defer j.Close()
		if err := t.Run(ctx, j); err != nil && err != context.Canceled {
			logger.Warnw("joystick failed", "error", err)
		}
		return
	}

	restore, err := teleop.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		logger.Warnw("stdin is not a terminal, keys need Enter", "error", err)
	} else {
		defer restore()
	}
	if err := t.Run(ctx, os.Stdin); err != nil && err != context.Canceled {
		logger.Warnw("keyboard failed", "error", err)
	}
}

func openCamera(cfg config.Config, logger golog.Logger) (vision.Detector, error) {
	v := cfg.Vision
	return camera.Open(camera.Config{
		Device:      v.Device,
		Model:       v.Model,
		ModelConfig: v.ModelConfig,
		Labels:      v.Labels,
		Threshold:   v.Threshold,
		Width:       v.Width,
		Height:      v.Height,
		FPS:         v.FPS,
		InputSize:   v.InputSize,
		Show:        v.Show,
	}, logger.Named("camera"))
}

func pathNames(cfg config.Config) string {
	var names []string
	for n := range cfg.AllPaths() {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func registerSignalHandlers(cancelFunc context.CancelFunc, logger golog.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infow("signal", "signal", s)
		cancelFunc()
		time.Sleep(5 * time.Second)
		os.Exit(0)
	}()
}
