// Package engine owns the breathing-session state machine: phase
// sequencing, breath counting, retention/recovery timing, cue dispatch and
// the per-round stats log. All mutation happens under one lock inside
// command and tick handlers; timers are armed and canceled only here.
package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hperssn/breathe/internal/cue"
	"github.com/hperssn/breathe/internal/domain"
	"github.com/hperssn/breathe/internal/timer"
)

const (
	// Retention accumulates wall-clock deltas on a fine tick so a delayed
	// tick never loses time; recovery decrements a fixed nominal slice per
	// tick because it is a visible countdown, not an elapsed-time record.
	retentionTick = 100 * time.Millisecond
	recoveryTick  = 100 * time.Millisecond
	recoverySlice = 0.1

	recoveryHold = 15 * time.Second
	roundPause   = time.Second
)

var ErrSessionActive = errors.New("session already active")

var holdPulse = []time.Duration{
	150 * time.Millisecond,
	75 * time.Millisecond,
	150 * time.Millisecond,
}

// Snapshot is the read-only view of session state handed to observers.
type Snapshot struct {
	SessionID   string             `json:"sessionId"`
	Phase       domain.Phase       `json:"phase"`
	Round       int                `json:"round"`
	BreathCount int                `json:"breathCount"`
	IsInhale    bool               `json:"isInhale"`
	ElapsedTime float64            `json:"elapsedTime"`
	Stats       []domain.RoundStat `json:"stats"`
}

// Engine drives one session at a time. It exclusively owns the single
// repeating timer slot plus the round-pause one-shot; a generation counter
// bumped on every arm and cancel lets handlers discard ticks that were
// queued before a cancellation but delivered after.
type Engine struct {
	mu       sync.Mutex
	settings domain.Settings
	state    domain.SessionState

	timers timer.Service
	cues   cue.Sink
	log    *slog.Logger

	gen        uint64
	tick       timer.Handle
	tickArmed  bool
	pause      timer.Handle
	pauseArmed bool
	lastTick   time.Time

	sessionID string
	events    chan Snapshot
}

func New(settings domain.Settings, timers timer.Service, cues cue.Sink, log *slog.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		settings: settings,
		state:    domain.SessionState{Phase: domain.PhaseIdle},
		timers:   timers,
		cues:     cues,
		log:      log,
		events:   make(chan Snapshot, 64),
	}, nil
}

//
// Commands
//

// Start begins a new session from Idle or Completed. Any previous stats are
// discarded. Returns ErrSessionActive while a session is running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase.Active() {
		return ErrSessionActive
	}

	e.cancelTimersLocked()
	e.sessionID = uuid.NewString()
	e.state = domain.NewSessionState()

	e.log.Info("session started",
		"session", e.sessionID,
		"breathsPerRound", e.settings.BreathsPerRound,
		"tempoMs", e.settings.TempoMs,
		"rounds", e.settings.TotalRounds)

	e.playCue(func() error { return e.cues.PlayInhale(e.settings.BreathInterval()) })
	e.armTickLocked(e.settings.BreathInterval(), e.onBreathTick)
	e.publishLocked()
	return nil
}

// EndRetention ends the current breath hold: records the round's retention
// time and moves to the recovery hold. Outside Retention it is a no-op.
func (e *Engine) EndRetention() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != domain.PhaseRetention {
		return nil
	}

	e.state.RecordRetention()
	e.log.Info("retention ended",
		"session", e.sessionID,
		"round", e.state.Round,
		"retention", e.state.Elapsed)

	e.state.Phase = domain.PhaseRecovery
	e.state.Elapsed = recoveryHold.Seconds()

	e.playCue(func() error { return e.cues.PlayInhale(recoveryHold) })
	e.playCue(func() error { return e.cues.Pulse(holdPulse) })
	e.armTickLocked(recoveryTick, e.onRecoveryTick)
	e.publishLocked()
	return nil
}

// Stop cancels all scheduled work and returns to Idle. Safe to call in any
// phase, any number of times.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTimersLocked()

	if e.state.Phase != domain.PhaseIdle {
		e.log.Info("session stopped", "session", e.sessionID, "phase", e.state.Phase)
	}
	e.state.Phase = domain.PhaseIdle
	e.state.BreathCount = 0
	e.state.Elapsed = 0
	e.publishLocked()
}

// UpdateSettings replaces the session settings. Allowed only while no
// session is active.
func (e *Engine) UpdateSettings(s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase.Active() {
		return ErrSessionActive
	}
	e.settings = s
	return nil
}

//
// Observation
//

func (e *Engine) Settings() domain.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Events is a non-blocking stream of snapshots, one per state mutation.
// Slow consumers miss intermediate snapshots rather than stalling the
// session.
func (e *Engine) Events() <-chan Snapshot {
	return e.events
}

// Summary aggregates the stats log once the session has completed.
func (e *Engine) Summary() (domain.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase != domain.PhaseCompleted {
		return domain.Summary{}, false
	}
	return domain.Summarize(e.state.Stats), true
}

//
// Tick handlers
//

func (e *Engine) onBreathTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state.Phase != domain.PhaseBreathing {
		return
	}

	// Toggle, increment and threshold check happen as one step inside
	// AdvanceBreath; only this tick can observe the round ending.
	switch e.state.AdvanceBreath(e.settings.BreathsPerRound) {
	case domain.BreathExhale:
		e.playCue(func() error { return e.cues.PlayExhale(e.settings.BreathInterval()) })
	case domain.BreathInhale:
		e.playCue(func() error { return e.cues.PlayInhale(e.settings.BreathInterval()) })
	case domain.BreathRoundDone:
		e.enterRetentionLocked()
	}
	e.publishLocked()
}

func (e *Engine) onRetentionTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state.Phase != domain.PhaseRetention {
		return
	}

	now := e.timers.Now()
	e.state.Elapsed += now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	e.publishLocked()
}

func (e *Engine) onRecoveryTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state.Phase != domain.PhaseRecovery {
		return
	}

	e.state.Elapsed -= recoverySlice
	// Repeated float subtraction can leave a residue a hair above zero.
	if e.state.Elapsed <= 1e-9 {
		e.state.Elapsed = 0
		e.cancelTickLocked()
		e.finishRecoveryLocked()
	}
	e.publishLocked()
}

func (e *Engine) onRoundPause(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state.Phase != domain.PhaseRecovery {
		return
	}
	e.pauseArmed = false

	e.state.NextRound()
	e.log.Debug("round started", "session", e.sessionID, "round", e.state.Round)

	e.playCue(func() error { return e.cues.PlayInhale(e.settings.BreathInterval()) })
	e.armTickLocked(e.settings.BreathInterval(), e.onBreathTick)
	e.publishLocked()
}

//
// Transitions
//

func (e *Engine) enterRetentionLocked() {
	e.cancelTickLocked()
	e.state.Phase = domain.PhaseRetention
	e.state.Elapsed = 0
	e.lastTick = e.timers.Now()

	e.log.Debug("retention started", "session", e.sessionID, "round", e.state.Round)

	e.playCue(e.cues.PlayBell)
	e.playCue(func() error { return e.cues.Pulse(holdPulse) })
	e.armTickLocked(retentionTick, e.onRetentionTick)
}

func (e *Engine) finishRecoveryLocked() {
	if e.state.Round < e.settings.TotalRounds {
		e.armPauseLocked(roundPause, e.onRoundPause)
		return
	}

	e.state.Phase = domain.PhaseCompleted
	e.playCue(e.cues.PlayBell)

	sum := domain.Summarize(e.state.Stats)
	e.log.Info("session completed",
		"session", e.sessionID,
		"rounds", sum.Rounds,
		"avgRetention", sum.AverageRetention,
		"bestRetention", sum.BestRetention)
}

//
// Timer bookkeeping
//

// armTickLocked replaces the repeating timer. The generation bump
// invalidates every tick closure issued before this call.
func (e *Engine) armTickLocked(interval time.Duration, fn func(gen uint64)) {
	if e.tickArmed {
		e.timers.Cancel(e.tick)
	}
	e.gen++
	gen := e.gen
	e.tick = e.timers.Every(interval, func() { fn(gen) })
	e.tickArmed = true
}

func (e *Engine) armPauseLocked(delay time.Duration, fn func(gen uint64)) {
	if e.pauseArmed {
		e.timers.Cancel(e.pause)
	}
	e.gen++
	gen := e.gen
	e.pause = e.timers.After(delay, func() { fn(gen) })
	e.pauseArmed = true
}

func (e *Engine) cancelTickLocked() {
	e.gen++
	if e.tickArmed {
		e.timers.Cancel(e.tick)
		e.tickArmed = false
	}
}

func (e *Engine) cancelTimersLocked() {
	e.cancelTickLocked()
	if e.pauseArmed {
		e.timers.Cancel(e.pause)
		e.pauseArmed = false
	}
}

//
// Side effects
//

// playCue runs one sink call, swallowing errors and panics. Audio and
// haptics are not load-bearing; the session advances regardless.
func (e *Engine) playCue(play func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("cue sink panicked", "panic", r)
		}
	}()
	if err := play(); err != nil {
		e.log.Debug("cue failed", "error", err)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	stats := make([]domain.RoundStat, len(e.state.Stats))
	copy(stats, e.state.Stats)

	return Snapshot{
		SessionID:   e.sessionID,
		Phase:       e.state.Phase,
		Round:       e.state.Round,
		BreathCount: e.state.BreathCount,
		IsInhale:    e.state.IsInhale,
		ElapsedTime: e.state.Elapsed,
		Stats:       stats,
	}
}

func (e *Engine) publishLocked() {
	select {
	case e.events <- e.snapshotLocked():
	default:
	}
}
