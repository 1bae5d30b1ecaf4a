package joystick

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Linux js event stream from a PS4-style pad.  Only the D-pad and a few
// buttons are used to drive the robot:
//
//    D-pad   u/d = axis 7 (up = -32767; down = +32767)
//            l/r = axis 6 (left = -32767; right = +32767)
//    Options     = button 9
//    L1 / R1     = buttons 4 / 5
//    Triangle    = button 2, Cross = button 0

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2

	// Set on the synthetic events the driver sends when the device opens.
	eventTypeInit = 0x80
)

const (
	ButtonCross    = 0
	ButtonTriangle = 2
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonOptions  = 9

	AxisDPadX = 6
	AxisDPadY = 7

	// Half travel counts as pressed.
	axisThreshold = 16384
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
	Init   bool
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// Key maps a pad event onto the teleop keyboard.  Releases, init events
// and unused controls have no key.
func (e *Event) Key() (byte, bool) {
	if e.Init {
		return 0, false
	}
	switch e.Type {
	case EventTypeAxis:
		switch e.Number {
		case AxisDPadY:
			if e.Value <= -axisThreshold {
				return 'w', true
			}
			if e.Value >= axisThreshold {
				return 's', true
			}
		case AxisDPadX:
			if e.Value <= -axisThreshold {
				return 'a', true
			}
			if e.Value >= axisThreshold {
				return 'd', true
			}
		}
	case EventTypeButton:
		if e.Value == 0 {
			return 0, false
		}
		switch e.Number {
		case ButtonOptions:
			return 'f', true
		case ButtonL1:
			return '[', true
		case ButtonR1:
			return ']', true
		case ButtonTriangle:
			return '+', true
		case ButtonCross:
			return '-', true
		}
	}
	return 0, false
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return FromReader(f), nil
}

func FromReader(r io.ReadCloser) *Joystick {
	return &Joystick{device: r}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var rawEvent rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &rawEvent)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = rawEvent.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(rawEvent.Time-j.deviceEpoch) * time.Millisecond),
		Value:  rawEvent.Value,
		Type:   EventType(rawEvent.Type &^ eventTypeInit),
		Number: rawEvent.Number,
		Init:   rawEvent.Type&eventTypeInit != 0,
	}, nil
}

// Read fills p with teleop keys, one per mapped event, so a pad can stand
// in for a keyboard.  It blocks until at least one key is available.
func (j *Joystick) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		e, err := j.ReadEvent()
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		if k, ok := e.Key(); ok {
			p[0] = k
			return 1, nil
		}
	}
}

func (j *Joystick) Close() error {
	return j.device.Close()
}
