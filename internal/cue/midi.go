package cue

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// Default note mapping. Inhale and exhale sit an octave apart so the rising
// and falling halves of the cycle are audible without synthesis; the bell
// is a high strike.
const (
	midiChannel   = 0
	inhaleKey     = 60 // C4
	exhaleKey     = 48 // C3
	bellKey       = 84 // C6
	cueVelocity   = 100
	bellRing      = 1500 * time.Millisecond
	minNoteLength = 100 * time.Millisecond
)

// MIDISink plays cues as notes on a MIDI output port. Note-offs are
// scheduled fire-and-forget; playback latency never feeds back into the
// session timing.
type MIDISink struct {
	send func(midi.Message) error
}

// NewMIDISink opens the named output port (substring match, as gomidi
// resolves names). Returns an error if no such port is available; callers
// are expected to fall back to a LogSink.
func NewMIDISink(portName string) (*MIDISink, error) {
	out, err := midi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("midi out port %q: %w", portName, err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("midi sender for %q: %w", portName, err)
	}

	return &MIDISink{send: send}, nil
}

func (s *MIDISink) PlayInhale(d time.Duration) error {
	return s.strike(inhaleKey, d)
}

func (s *MIDISink) PlayExhale(d time.Duration) error {
	return s.strike(exhaleKey, d)
}

func (s *MIDISink) PlayBell() error {
	return s.strike(bellKey, bellRing)
}

// Pulse has no MIDI equivalent; haptics are optional, so it is a no-op.
func (s *MIDISink) Pulse(pattern []time.Duration) error {
	return nil
}

func (s *MIDISink) strike(key uint8, d time.Duration) error {
	if err := s.send(midi.NoteOn(midiChannel, key, cueVelocity)); err != nil {
		return err
	}
	if d < minNoteLength {
		d = minNoteLength
	}
	time.AfterFunc(d, func() {
		_ = s.send(midi.NoteOff(midiChannel, key))
	})
	return nil
}
