// Package cue delivers the audio and haptic signals that mark phase
// boundaries. Sinks are best-effort: the engine swallows their errors and
// a failing sink must never stall a session.
package cue

import "time"

// Sink plays session cues. All methods are fire-and-forget; implementations
// should return quickly and must not block on playback.
type Sink interface {
	// PlayInhale marks the start of an inhale lasting roughly d.
	PlayInhale(d time.Duration) error
	// PlayExhale marks the start of an exhale lasting roughly d.
	PlayExhale(d time.Duration) error
	// PlayBell marks a major boundary (retention start, session end).
	PlayBell() error
	// Pulse fires a haptic pattern of alternating on/off durations.
	Pulse(pattern []time.Duration) error
}
