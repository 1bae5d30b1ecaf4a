package motion

import "time"

// Clock is the time source for the control loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

func RealClock() Clock {
	return realClock{}
}
