package sound

import (
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const SampleRate = beep.SampleRate(44100)

// Output is where decoded sounds go; normally the speaker.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

func Speaker() Output {
	return speakerOutput{}
}

// Player plays wav files one at a time.  A new sound cuts off the old one.
type Player struct {
	out    Output
	log    golog.Logger
	sounds chan string
	done   chan struct{}
}

func NewPlayer(out Output, logger golog.Logger) *Player {
	p := &Player{
		out:    out,
		log:    logger,
		sounds: make(chan string, 4),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Play queues a sound.  It never blocks; if the queue is full the sound
// is dropped.
func (p *Player) Play(path string) bool {
	select {
	case p.sounds <- path:
		return true
	default:
		p.log.Debugw("sound dropped", "path", path)
		return false
	}
}

func (p *Player) Close() {
	close(p.sounds)
	<-p.done
}

func (p *Player) loop() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("sound player panicked", "panic", r)
			for s := range p.sounds {
				p.log.Warnw("unable to play", "path", s)
			}
		}
	}()

	if err := p.out.Init(SampleRate, SampleRate.N(time.Second/5)); err != nil {
		p.log.Warnw("failed to open speaker", "error", err)
		for s := range p.sounds {
			p.log.Warnw("unable to play", "path", s)
		}
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for path := range p.sounds {
		if ctrl != nil {
			p.out.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			p.out.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(path)
		if err != nil {
			p.log.Warnw("failed to open sound", "error", err)
			continue
		}
		var format beep.Format
		s, format, err = wav.Decode(f)
		if err != nil {
			f.Close()
			s = nil
			p.log.Warnw("failed to decode sound", "path", path, "error", err)
			continue
		}
		if format.SampleRate != SampleRate {
			p.log.Debugw("sample rate mismatch", "path", path, "rate", format.SampleRate)
		}
		ctrl = &beep.Ctrl{Streamer: s}
		p.out.Play(ctrl)
	}
	if s != nil {
		s.Close()
	}
}
