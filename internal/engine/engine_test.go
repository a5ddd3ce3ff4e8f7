package engine_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hperssn/breathe/internal/cue"
	"github.com/hperssn/breathe/internal/domain"
	"github.com/hperssn/breathe/internal/engine"
	"github.com/hperssn/breathe/internal/timer"
)

// recordingSink counts cues so tests can assert exact cue sequences.
type recordingSink struct {
	mu      sync.Mutex
	inhales int
	exhales int
	bells   int
	pulses  int
}

func (s *recordingSink) PlayInhale(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inhales++
	return nil
}

func (s *recordingSink) PlayExhale(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhales++
	return nil
}

func (s *recordingSink) PlayBell() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bells++
	return nil
}

func (s *recordingSink) Pulse([]time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulses++
	return nil
}

func (s *recordingSink) counts() (inhales, exhales, bells int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inhales, s.exhales, s.bells
}

var testSettings = domain.Settings{BreathsPerRound: 4, TempoMs: 2000, TotalRounds: 1}

func newTestEngine(t *testing.T, settings domain.Settings) (*engine.Engine, *timer.Manual, *recordingSink) {
	t.Helper()

	tk := timer.NewManual()
	sink := &recordingSink{}
	eng, err := engine.New(settings, tk, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return eng, tk, sink
}

// runToRetention drives a started engine through the breathing phase of the
// current round.
func runToRetention(t *testing.T, eng *engine.Engine, tk *timer.Manual, settings domain.Settings) {
	t.Helper()

	interval := settings.BreathInterval()
	for i := 0; i < 2*settings.BreathsPerRound; i++ {
		tk.Advance(interval)
	}
	if got := eng.Snapshot().Phase; got != domain.PhaseRetention {
		t.Fatalf("phase = %v, want retention", got)
	}
}

func TestStartInitialState(t *testing.T) {
	eng, _, sink := newTestEngine(t, testSettings)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseBreathing {
		t.Errorf("phase = %v, want breathing", snap.Phase)
	}
	if snap.Round != 1 {
		t.Errorf("round = %d, want 1", snap.Round)
	}
	if snap.BreathCount != 1 {
		t.Errorf("breathCount = %d, want 1", snap.BreathCount)
	}
	if !snap.IsInhale {
		t.Errorf("isInhale = false, want true")
	}
	if len(snap.Stats) != 0 {
		t.Errorf("stats not empty at start")
	}
	if snap.SessionID == "" {
		t.Errorf("expected a session ID")
	}

	inhales, _, _ := sink.counts()
	if inhales != 1 {
		t.Errorf("inhale cues = %d, want 1", inhales)
	}
}

func TestStartWhileActive(t *testing.T) {
	eng, _, _ := newTestEngine(t, testSettings)

	eng.Start()
	if err := eng.Start(); err != engine.ErrSessionActive {
		t.Fatalf("second start: got %v, want ErrSessionActive", err)
	}
}

// Walks the exact tick sequence for breathsPerRound=4, tempoMs=2000: the
// toggle lands on exhale/inhale alternately, and the tick after the fourth
// exhale crosses the threshold and rings the bell instead of cueing.
func TestBreathCycleToRetention(t *testing.T) {
	eng, tk, sink := newTestEngine(t, testSettings)
	eng.Start()

	want := []struct {
		isInhale    bool
		breathCount int
	}{
		{false, 1}, // exhale
		{true, 2},  // inhale
		{false, 2},
		{true, 3},
		{false, 3},
		{true, 4},
		{false, 4},
	}

	for i, w := range want {
		tk.Advance(time.Second)
		snap := eng.Snapshot()
		if snap.Phase != domain.PhaseBreathing {
			t.Fatalf("tick %d: phase = %v, want breathing", i+1, snap.Phase)
		}
		if snap.IsInhale != w.isInhale || snap.BreathCount != w.breathCount {
			t.Fatalf("tick %d: isInhale=%v breathCount=%d, want %v/%d",
				i+1, snap.IsInhale, snap.BreathCount, w.isInhale, w.breathCount)
		}
	}

	// Eighth tick: attempted fifth inhale exceeds the bound.
	tk.Advance(time.Second)
	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseRetention {
		t.Fatalf("phase = %v, want retention", snap.Phase)
	}
	if snap.ElapsedTime != 0 {
		t.Errorf("elapsedTime = %v, want 0 at retention start", snap.ElapsedTime)
	}

	inhales, exhales, bells := sink.counts()
	if inhales != 4 {
		t.Errorf("inhale cues = %d, want 4", inhales)
	}
	if exhales != 4 {
		t.Errorf("exhale cues = %d, want 4", exhales)
	}
	if bells != 1 {
		t.Errorf("bell cues = %d, want 1", bells)
	}
}

func TestRetentionAccumulatesWallClock(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)
	eng.Start()
	runToRetention(t, eng, tk, testSettings)

	tk.Advance(3700 * time.Millisecond)

	snap := eng.Snapshot()
	if math.Abs(snap.ElapsedTime-3.7) > 0.001 {
		t.Fatalf("elapsedTime = %v, want ~3.7", snap.ElapsedTime)
	}
}

func TestEndRetentionRecordsStat(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)
	eng.Start()
	runToRetention(t, eng, tk, testSettings)
	tk.Advance(5 * time.Second)

	if err := eng.EndRetention(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseRecovery {
		t.Fatalf("phase = %v, want recovery", snap.Phase)
	}
	if snap.ElapsedTime != 15 {
		t.Errorf("elapsedTime = %v, want 15 at recovery start", snap.ElapsedTime)
	}
	if len(snap.Stats) != 1 {
		t.Fatalf("stats length = %d, want 1", len(snap.Stats))
	}
	if snap.Stats[0].Round != 1 {
		t.Errorf("stat round = %d, want 1", snap.Stats[0].Round)
	}
	if math.Abs(snap.Stats[0].RetentionTime-5.0) > 0.001 {
		t.Errorf("stat retentionTime = %v, want ~5.0", snap.Stats[0].RetentionTime)
	}
}

func TestEndRetentionOutsideRetentionIsNoop(t *testing.T) {
	eng, _, _ := newTestEngine(t, testSettings)

	if err := eng.EndRetention(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng.Start()
	if err := eng.EndRetention(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseBreathing {
		t.Errorf("phase = %v, want breathing", snap.Phase)
	}
	if len(snap.Stats) != 0 {
		t.Errorf("stats length = %d, want 0", len(snap.Stats))
	}
}

func TestRecoveryCountsDownToCompletion(t *testing.T) {
	eng, tk, sink := newTestEngine(t, testSettings)
	eng.Start()
	runToRetention(t, eng, tk, testSettings)
	tk.Advance(2 * time.Second)
	eng.EndRetention()

	// Countdown must be monotonically non-increasing.
	prev := eng.Snapshot().ElapsedTime
	for i := 0; i < 10; i++ {
		tk.Advance(time.Second)
		cur := eng.Snapshot().ElapsedTime
		if cur > prev {
			t.Fatalf("countdown increased: %v -> %v", prev, cur)
		}
		prev = cur
	}

	tk.Advance(6 * time.Second) // past the 15s hold

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("phase = %v, want completed", snap.Phase)
	}
	if snap.ElapsedTime != 0 {
		t.Errorf("elapsedTime = %v, want 0", snap.ElapsedTime)
	}
	if len(snap.Stats) != 1 {
		t.Errorf("stats length = %d, want 1", len(snap.Stats))
	}
	if tk.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0 after completion", tk.Pending())
	}

	_, _, bells := sink.counts()
	if bells != 2 { // retention start + session end
		t.Errorf("bell cues = %d, want 2", bells)
	}

	sum, ok := eng.Summary()
	if !ok {
		t.Fatalf("summary unavailable after completion")
	}
	if sum.Rounds != 1 {
		t.Errorf("summary rounds = %d, want 1", sum.Rounds)
	}
	if math.Abs(sum.BestRetention-2.0) > 0.001 {
		t.Errorf("summary bestRetention = %v, want ~2.0", sum.BestRetention)
	}
}

func TestMultiRoundAdvance(t *testing.T) {
	settings := domain.Settings{BreathsPerRound: 2, TempoMs: 1000, TotalRounds: 2}
	eng, tk, _ := newTestEngine(t, settings)
	eng.Start()

	runToRetention(t, eng, tk, settings)
	tk.Advance(time.Second)
	eng.EndRetention()
	tk.Advance(15 * time.Second)

	// Recovery done, next round pending behind the one-second pause.
	if got := eng.Snapshot().Phase; got != domain.PhaseRecovery {
		t.Fatalf("phase = %v, want recovery during round pause", got)
	}

	tk.Advance(time.Second)

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseBreathing {
		t.Fatalf("phase = %v, want breathing in round 2", snap.Phase)
	}
	if snap.Round != 2 {
		t.Errorf("round = %d, want 2", snap.Round)
	}
	if snap.BreathCount != 1 || !snap.IsInhale {
		t.Errorf("round 2 start: breathCount=%d isInhale=%v, want 1/true", snap.BreathCount, snap.IsInhale)
	}

	runToRetention(t, eng, tk, settings)
	tk.Advance(3 * time.Second)
	eng.EndRetention()
	tk.Advance(16 * time.Second)

	snap = eng.Snapshot()
	if snap.Phase != domain.PhaseCompleted {
		t.Fatalf("phase = %v, want completed", snap.Phase)
	}
	if len(snap.Stats) != 2 {
		t.Fatalf("stats length = %d, want 2", len(snap.Stats))
	}
	if snap.Stats[1].Round != 2 {
		t.Errorf("second stat round = %d, want 2", snap.Stats[1].Round)
	}
}

func TestStopFromEveryPhase(t *testing.T) {
	reach := map[string]func(t *testing.T, eng *engine.Engine, tk *timer.Manual){
		"breathing": func(t *testing.T, eng *engine.Engine, tk *timer.Manual) {},
		"retention": func(t *testing.T, eng *engine.Engine, tk *timer.Manual) {
			runToRetention(t, eng, tk, testSettings)
		},
		"recovery": func(t *testing.T, eng *engine.Engine, tk *timer.Manual) {
			runToRetention(t, eng, tk, testSettings)
			tk.Advance(time.Second)
			eng.EndRetention()
		},
	}

	for name, setup := range reach {
		t.Run(name, func(t *testing.T) {
			eng, tk, sink := newTestEngine(t, testSettings)
			eng.Start()
			setup(t, eng, tk)

			eng.Stop()

			snap := eng.Snapshot()
			if snap.Phase != domain.PhaseIdle {
				t.Fatalf("phase = %v, want idle", snap.Phase)
			}
			if snap.BreathCount != 0 || snap.ElapsedTime != 0 {
				t.Errorf("state not reset: breathCount=%d elapsed=%v", snap.BreathCount, snap.ElapsedTime)
			}
			if tk.Pending() != 0 {
				t.Fatalf("pending timers = %d, want 0", tk.Pending())
			}

			// Nothing may mutate state after stop.
			before := eng.Snapshot()
			in0, ex0, bell0 := sink.counts()
			tk.Advance(time.Minute)
			after := eng.Snapshot()
			in1, ex1, bell1 := sink.counts()

			if before.Phase != after.Phase || before.BreathCount != after.BreathCount ||
				before.ElapsedTime != after.ElapsedTime || len(before.Stats) != len(after.Stats) {
				t.Errorf("state mutated after stop: %+v -> %+v", before, after)
			}
			if in0 != in1 || ex0 != ex1 || bell0 != bell1 {
				t.Errorf("cues fired after stop")
			}
		})
	}
}

func TestStopCancelsRoundPause(t *testing.T) {
	settings := domain.Settings{BreathsPerRound: 2, TempoMs: 1000, TotalRounds: 2}
	eng, tk, _ := newTestEngine(t, settings)
	eng.Start()
	runToRetention(t, eng, tk, settings)
	tk.Advance(time.Second)
	eng.EndRetention()
	tk.Advance(15 * time.Second) // recovery done, pause armed

	eng.Stop()

	if tk.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0", tk.Pending())
	}

	tk.Advance(5 * time.Second)
	if got := eng.Snapshot().Phase; got != domain.PhaseIdle {
		t.Fatalf("phase = %v, want idle after stop during pause", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)
	eng.Start()

	eng.Stop()
	once := eng.Snapshot()
	eng.Stop()
	twice := eng.Snapshot()

	if once.Phase != twice.Phase || once.BreathCount != twice.BreathCount ||
		once.ElapsedTime != twice.ElapsedTime {
		t.Fatalf("double stop diverged: %+v vs %+v", once, twice)
	}
	if tk.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0", tk.Pending())
	}
}

func TestStartImmediatelyStopped(t *testing.T) {
	eng, tk, sink := newTestEngine(t, testSettings)
	eng.Start()
	eng.Stop()

	tk.Advance(time.Minute)

	snap := eng.Snapshot()
	if snap.Phase != domain.PhaseIdle {
		t.Fatalf("phase = %v, want idle", snap.Phase)
	}
	inhales, exhales, bells := sink.counts()
	if inhales != 1 || exhales != 0 || bells != 0 {
		t.Errorf("cues after start+stop = %d/%d/%d, want 1/0/0", inhales, exhales, bells)
	}
}

func TestRestartAfterCompletionClearsStats(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)
	eng.Start()
	runToRetention(t, eng, tk, testSettings)
	tk.Advance(time.Second)
	eng.EndRetention()
	tk.Advance(16 * time.Second)

	if got := eng.Snapshot().Phase; got != domain.PhaseCompleted {
		t.Fatalf("phase = %v, want completed", got)
	}
	firstID := eng.Snapshot().SessionID

	if err := eng.Start(); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}

	snap := eng.Snapshot()
	if len(snap.Stats) != 0 {
		t.Errorf("stats length = %d, want 0 after restart", len(snap.Stats))
	}
	if snap.SessionID == firstID {
		t.Errorf("restart reused session ID")
	}
}

func TestUpdateSettingsOnlyWhileIdle(t *testing.T) {
	eng, _, _ := newTestEngine(t, testSettings)

	next := domain.Settings{BreathsPerRound: 10, TempoMs: 4000, TotalRounds: 2}
	if err := eng.UpdateSettings(next); err != nil {
		t.Fatalf("update while idle: %v", err)
	}
	if got := eng.Settings(); got != next {
		t.Fatalf("settings = %+v, want %+v", got, next)
	}

	eng.Start()
	if err := eng.UpdateSettings(testSettings); err != engine.ErrSessionActive {
		t.Fatalf("update while active: got %v, want ErrSessionActive", err)
	}

	eng.Stop()
	if err := eng.UpdateSettings(testSettings); err != nil {
		t.Fatalf("update after stop: %v", err)
	}
}

func TestSummaryUnavailableBeforeCompletion(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)

	if _, ok := eng.Summary(); ok {
		t.Fatalf("summary available while idle")
	}
	eng.Start()
	runToRetention(t, eng, tk, testSettings)
	if _, ok := eng.Summary(); ok {
		t.Fatalf("summary available during retention")
	}
}

// failingSink errors on every call; panickySink panics. Either way the
// session must keep advancing.
type failingSink struct{}

func (failingSink) PlayInhale(time.Duration) error { return errFail }
func (failingSink) PlayExhale(time.Duration) error { return errFail }
func (failingSink) PlayBell() error                { return errFail }
func (failingSink) Pulse([]time.Duration) error    { return errFail }

var errFail = errors.New("cue device unavailable")

type panickySink struct{}

func (panickySink) PlayInhale(time.Duration) error { panic("no audio device") }
func (panickySink) PlayExhale(time.Duration) error { panic("no audio device") }
func (panickySink) PlayBell() error                { panic("no audio device") }
func (panickySink) Pulse([]time.Duration) error    { panic("no audio device") }

func TestCueFailuresDoNotStallSession(t *testing.T) {
	sinks := map[string]cue.Sink{
		"errors": failingSink{},
		"panics": panickySink{},
	}

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			tk := timer.NewManual()
			eng, err := engine.New(testSettings, tk, sink, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if err := eng.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			for i := 0; i < 2*testSettings.BreathsPerRound; i++ {
				tk.Advance(testSettings.BreathInterval())
			}

			if got := eng.Snapshot().Phase; got != domain.PhaseRetention {
				t.Fatalf("phase = %v, want retention despite cue failures", got)
			}
		})
	}
}

func TestEventsPublishSnapshots(t *testing.T) {
	eng, tk, _ := newTestEngine(t, testSettings)
	eng.Start()

	select {
	case snap := <-eng.Events():
		if snap.Phase != domain.PhaseBreathing {
			t.Fatalf("first event phase = %v, want breathing", snap.Phase)
		}
	default:
		t.Fatalf("no event published on start")
	}

	tk.Advance(time.Second)
	select {
	case snap := <-eng.Events():
		if snap.IsInhale {
			t.Fatalf("tick event still inhale, want exhale")
		}
	default:
		t.Fatalf("no event published on tick")
	}
}
