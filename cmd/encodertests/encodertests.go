package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stingray/pkg/calibration"
	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/hardware"
	"github.com/tigerbot-team/stingray/pkg/motion"
	"github.com/tigerbot-team/stingray/pkg/telemetry"
)

var scanner = bufio.NewScanner(os.Stdin)

func readFloat(prompt string) (float64, bool) {
	for {
		fmt.Println(prompt)
		if !scanner.Scan() {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err != nil {
			fmt.Printf("error: %v, please try again\n", err)
			continue
		}
		return v, true
	}
}

func main() {
	logger := golog.NewDevelopmentLogger("encodertests")
	fmt.Println("---- Encoder Calibration ----")

	cfg, err := config.Load(config.Path(), logger)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hw, err := hardware.New(cfg, logger.Named("hw"))
	if err != nil {
		fmt.Println("Failed to open hardware", err)
		return
	}
	defer hw.Shutdown()
	hw.Start(ctx)
	left, right := hw.Encoders()

	rec := telemetry.NewRecorder()
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	pollCtx, stopPoll := context.WithCancel(ctx)
	go rec.Poll(pollCtx, &pollWG, left, right, cfg.Telemetry.PollInterval)

	ctrl, err := hw.Controller(motion.WithObserver(rec.Observe))
	if err != nil {
		fmt.Println("Failed to create controller", err)
		return
	}

	fmt.Println("Turn each wheel by hand one full revolution, then press Enter.")
	scanner.Scan()
	fmt.Printf("Left: %d ticks, right: %d ticks (expected %d)\n",
		left.TotalTicks(), right.TotalTicks(), cfg.Encoders.TicksPerRev)

	secs, ok := readFloat("Seconds to drive straight:")
	if !ok {
		return
	}
	ctrl.Straight(time.Duration(secs * float64(time.Second)))
	fmt.Printf("Left: %d ticks %.1fcm, right: %d ticks %.1fcm\n",
		left.Ticks(), left.CurrentDistance(), right.Ticks(), right.CurrentDistance())

	measured, ok := readFloat("Measured distance travelled (cm):")
	if ok && left.Ticks()+right.Ticks() > 0 {
		perTick := measured * 2 / float64(left.Ticks()+right.Ticks())
		fmt.Printf("Measured %.3fcm per tick, configured %.3fcm\n", perTick, left.CMPerTick())
	}

	fmt.Printf("A 90 degree pivot should take %.0f feedback units per wheel; 1m is %.0f\n",
		calibration.TicksForTurn(90), calibration.TicksForDistance(1000))

	stopPoll()
	pollWG.Wait()
	plot := cfg.Telemetry.Plot
	if plot == "" {
		plot = "encodertests.png"
	}
	if err := rec.SavePNG(plot, 1024, 768); err != nil {
		fmt.Println("Failed to save plot", err)
		return
	}
	fmt.Println("Plot saved to", plot)
}
