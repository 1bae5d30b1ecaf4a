package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stingray/pkg/calibration"
	"github.com/tigerbot-team/stingray/pkg/config"
	"github.com/tigerbot-team/stingray/pkg/hardware"
)

func main() {
	logger := golog.NewDevelopmentLogger("servotests")
	cfg, err := config.Load(config.Path(), logger)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}
	out, err := hardware.OpenPulses(cfg.Drive)
	if err != nil {
		fmt.Println("Failed to open servo outputs", err)
		return
	}
	defer out.Close()

	servo := calibration.DefaultServoRange()
	feedback := calibration.DefaultFeedback360()
	left, right := cfg.Drive.LeftChannel, cfg.Drive.RightChannel

	fmt.Printf(`Commands:
    p <n> <us>          # Raw pulse width in microseconds
    o <n>               # Output off
    d <n> <degrees>     # Servo position, -90..90; 0=centre
    v <n> <speed>       # Continuous servo speed, -1..1; 0=stop
    a <duty-l> <duty-r> # Feedback duty cycle (per mille) to wheel angles
    cal                 # Calibration pose: left -60, right +60 for 5s
    q                   # Quit

<n>  Output channel (left=%d, right=%d)
`, left, right)

	set := func(n int, us float64) bool {
		fmt.Printf("Setting %d to %.1fus\n", n, us)
		if err := out.SetPulseWidth(n, time.Duration(us*float64(time.Microsecond))); err != nil {
			fmt.Println("Failed to write pulse width: ", err)
			return false
		}
		return true
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "q":
			out.Off(left)
			out.Off(right)
			return
		case "cal":
			if !set(left, servo.PulseForDegree(-60)) || !set(right, servo.PulseForDegree(60)) {
				return
			}
			time.Sleep(5 * time.Second)
			set(left, servo.Neutral())
			set(right, servo.Neutral())
		case "o":
			if len(parts) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			if err := out.Off(n); err != nil {
				fmt.Println("Failed to turn off output: ", err)
			}
		case "a":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			l, errL := strconv.ParseFloat(parts[1], 64)
			r, errR := strconv.ParseFloat(parts[2], 64)
			if errL != nil || errR != nil {
				fmt.Println("Expected two floats")
				continue
			}
			fmt.Printf("Left %.1f deg, right %.1f deg\n", feedback.AngleLeft(l), feedback.AngleRight(r))
		case "p", "d", "v":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[2])
				continue
			}
			switch parts[0] {
			case "p":
				v = servo.ClampPW(v)
			case "d":
				v = servo.PulseForDegree(v)
			case "v":
				v = servo.PulseForSpeed(v)
			}
			if !set(n, v) {
				return
			}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
