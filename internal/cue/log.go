package cue

import (
	"log/slog"
	"time"
)

// LogSink writes cues to the logger instead of playing them. Used when no
// MIDI output is configured and by the terminal driver.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) PlayInhale(d time.Duration) error {
	s.log.Info("cue", "kind", "inhale", "duration", d)
	return nil
}

func (s *LogSink) PlayExhale(d time.Duration) error {
	s.log.Info("cue", "kind", "exhale", "duration", d)
	return nil
}

func (s *LogSink) PlayBell() error {
	s.log.Info("cue", "kind", "bell")
	return nil
}

func (s *LogSink) Pulse(pattern []time.Duration) error {
	s.log.Debug("cue", "kind", "pulse", "segments", len(pattern))
	return nil
}
