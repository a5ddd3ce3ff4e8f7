package domain

import (
	"errors"
	"time"
)

// Settings is the per-session configuration. It is immutable while a
// session is active and may only be edited while idle.
type Settings struct {
	BreathsPerRound int `json:"breathsPerRound"`
	TempoMs         int `json:"tempoMs"` // full inhale+exhale cycle
	TotalRounds     int `json:"totalRounds"`
}

var (
	ErrBreathsPerRound = errors.New("breathsPerRound must be at least 1")
	ErrTempo           = errors.New("tempoMs must be positive")
	ErrTotalRounds     = errors.New("totalRounds must be at least 1")
)

func DefaultSettings() Settings {
	return Settings{
		BreathsPerRound: 30,
		TempoMs:         3000,
		TotalRounds:     3,
	}
}

func (s Settings) Validate() error {
	if s.BreathsPerRound < 1 {
		return ErrBreathsPerRound
	}
	if s.TempoMs <= 0 {
		return ErrTempo
	}
	if s.TotalRounds < 1 {
		return ErrTotalRounds
	}
	return nil
}

// BreathInterval is the toggle interval of the breathing timer: half the
// tempo, so one full tempo period covers one inhale plus one exhale.
func (s Settings) BreathInterval() time.Duration {
	return time.Duration(s.TempoMs) * time.Millisecond / 2
}
