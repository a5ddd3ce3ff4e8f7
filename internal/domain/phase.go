package domain

import "fmt"

// Phase is one discrete stage of a breathing session. Exactly one phase is
// active at a time; Idle is the initial and reset state, Completed is
// terminal until the next start.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBreathing
	PhaseRetention
	PhaseRecovery
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBreathing:
		return "breathing"
	case PhaseRetention:
		return "retention"
	case PhaseRecovery:
		return "recovery"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Active reports whether the phase has a running timer behind it.
func (p Phase) Active() bool {
	return p == PhaseBreathing || p == PhaseRetention || p == PhaseRecovery
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"idle"`:
		*p = PhaseIdle
	case `"breathing"`:
		*p = PhaseBreathing
	case `"retention"`:
		*p = PhaseRetention
	case `"recovery"`:
		*p = PhaseRecovery
	case `"completed"`:
		*p = PhaseCompleted
	default:
		return fmt.Errorf("unknown phase %s", data)
	}
	return nil
}
