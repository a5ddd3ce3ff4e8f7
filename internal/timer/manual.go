package timer

import (
	"sync"
	"time"
)

type entry struct {
	handle   Handle
	due      time.Time
	interval time.Duration // 0 for one-shots
	fn       func()
	done     bool
}

// Manual is a Service on a virtual clock. Nothing fires until Advance moves
// the clock; callbacks run synchronously on the advancing goroutine, in due
// order, with Now reflecting each callback's due instant. That matches the
// delivery contract the engine relies on (ordered ticks, wall-clock reads
// between them) while keeping tests deterministic.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	next    Handle
	entries []*entry
}

func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0)}
}

func (m *Manual) Every(interval time.Duration, fn func()) Handle {
	return m.schedule(interval, interval, fn)
}

func (m *Manual) After(delay time.Duration, fn func()) Handle {
	return m.schedule(delay, 0, fn)
}

func (m *Manual) schedule(delay, interval time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.entries = append(m.entries, &entry{
		handle:   m.next,
		due:      m.now.Add(delay),
		interval: interval,
		fn:       fn,
	})
	return m.next
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.handle == h {
			e.done = true
		}
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many timers are still scheduled. Lets tests assert
// the zero-active-timers invariant after a stop.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if !e.done {
			n++
		}
	}
	return n
}

// Advance moves the virtual clock forward by d, firing every due callback
// in order. Callbacks may schedule or cancel timers; newly scheduled work
// that falls due within the window fires in the same call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for {
		e := m.earliestDue(target)
		if e == nil {
			break
		}
		m.now = e.due
		if e.interval > 0 {
			e.due = e.due.Add(e.interval)
		} else {
			e.done = true
		}
		fn := e.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}

	m.now = target
	m.compact()
	m.mu.Unlock()
}

// earliestDue returns the live entry with the earliest due time not after
// target, breaking ties by scheduling order. Caller holds mu.
func (m *Manual) earliestDue(target time.Time) *entry {
	var best *entry
	for _, e := range m.entries {
		if e.done || e.due.After(target) {
			continue
		}
		if best == nil || e.due.Before(best.due) {
			best = e
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.done {
			live = append(live, e)
		}
	}
	m.entries = live
}
