package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tigerbot-team/stingray/pkg/joystick"
)

// Prints raw pad events and the teleop key each one maps to.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	registerSignalHandlers(cancel)

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	var j *joystick.Joystick
	firstLog := true
	for ctx.Err() == nil {
		var err error
		j, err = joystick.NewJoystick(jDev)
		if err == nil {
			break
		}
		if firstLog {
			fmt.Printf("Waiting for joystick: %v.\n", err)
			firstLog = false
		}
		time.Sleep(1 * time.Second)
	}
	if j == nil {
		return
	}
	defer j.Close()
	fmt.Printf("Opened joystick %s\n", jDev)

	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			fmt.Printf("Failed to read from joystick: %v.\n", err)
			return
		}
		if k, ok := event.Key(); ok {
			fmt.Printf("%s -> %q\n", event, k)
		} else {
			fmt.Println(event)
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
