package domain

// RoundStat records the retention hold of one completed round.
type RoundStat struct {
	Round         int     `json:"round"`
	RetentionTime float64 `json:"retentionTime"` // seconds
}

// SessionState is the full mutable state of one breathing session. It is
// owned by the engine and mutated only inside its transition functions.
type SessionState struct {
	Phase       Phase
	Round       int  // 1-indexed
	BreathCount int  // 1-indexed within the current round
	IsInhale    bool // meaningful only while Phase == PhaseBreathing
	Elapsed     float64
	Stats       []RoundStat
}

// NewSessionState returns the state at the first inhale of round one.
// Stats from any previous session are discarded.
func NewSessionState() SessionState {
	return SessionState{
		Phase:       PhaseBreathing,
		Round:       1,
		BreathCount: 1,
		IsInhale:    true,
	}
}

// BreathOutcome is the result of one breathing-timer tick.
type BreathOutcome int

const (
	// BreathExhale: the toggle landed on an exhale.
	BreathExhale BreathOutcome = iota
	// BreathInhale: the toggle landed on the next inhale.
	BreathInhale
	// BreathRoundDone: the increment crossed breathsPerRound; the caller
	// must transition to retention instead of playing a cue.
	BreathRoundDone
)

// AdvanceBreath performs the toggle, increment and overflow check of one
// breathing tick as a single step, so only one tick can ever observe the
// threshold crossing. On BreathRoundDone the counter is left clamped at
// breathsPerRound.
func (s *SessionState) AdvanceBreath(breathsPerRound int) BreathOutcome {
	s.IsInhale = !s.IsInhale
	if !s.IsInhale {
		return BreathExhale
	}
	s.BreathCount++
	if s.BreathCount > breathsPerRound {
		s.BreathCount = breathsPerRound
		return BreathRoundDone
	}
	return BreathInhale
}

// RecordRetention appends the current round's retention hold to the stats
// log. Called exactly once per round, when retention ends.
func (s *SessionState) RecordRetention() {
	s.Stats = append(s.Stats, RoundStat{
		Round:         s.Round,
		RetentionTime: s.Elapsed,
	})
}

// NextRound resets the breath cycle for the following round.
func (s *SessionState) NextRound() {
	s.Round++
	s.BreathCount = 1
	s.IsInhale = true
	s.Phase = PhaseBreathing
}

// Summary aggregates a finished session's retention holds.
type Summary struct {
	Rounds           int     `json:"rounds"`
	TotalRetention   float64 `json:"totalRetention"`
	AverageRetention float64 `json:"averageRetention"`
	BestRetention    float64 `json:"bestRetention"`
}

func Summarize(stats []RoundStat) Summary {
	sum := Summary{Rounds: len(stats)}
	for _, st := range stats {
		sum.TotalRetention += st.RetentionTime
		if st.RetentionTime > sum.BestRetention {
			sum.BestRetention = st.RetentionTime
		}
	}
	if sum.Rounds > 0 {
		sum.AverageRetention = sum.TotalRetention / float64(sum.Rounds)
	}
	return sum
}
