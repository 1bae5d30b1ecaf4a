package motion

import (
	"fmt"
	"strings"
	"time"
)

type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// ParseDirection accepts the direction names plus "straight" for Forward.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "straight":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// closedLoop is true for the longitudinal moves that run the PID.
func (d Direction) closedLoop() bool {
	return d == Forward || d == Backward
}

type Command struct {
	Direction Direction
	Duration  time.Duration
}

func (c Command) String() string {
	return fmt.Sprintf("%v(%v)", c.Direction, c.Duration)
}
