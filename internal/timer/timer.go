// Package timer abstracts scheduled callback delivery so the session engine
// can run against the wall clock in production and a virtual clock in tests.
package timer

import (
	"sync"
	"time"
)

// Handle identifies one scheduled timer. The zero Handle is never issued.
type Handle uint64

// Service schedules callbacks. Cancel is idempotent: canceling an unknown
// or already-stopped handle is a no-op. Now is the clock the callbacks are
// delivered against.
type Service interface {
	// Every invokes fn repeatedly at the given interval until canceled.
	Every(interval time.Duration, fn func()) Handle
	// After invokes fn once after the given delay unless canceled first.
	After(delay time.Duration, fn func()) Handle
	Cancel(h Handle)
	Now() time.Time
}

// System delivers callbacks from goroutines on the real clock.
type System struct {
	mu     sync.Mutex
	next   Handle
	active map[Handle]func() // stop functions
}

func NewSystem() *System {
	return &System{active: make(map[Handle]func())}
}

func (s *System) Every(interval time.Duration, fn func()) Handle {
	stop := make(chan struct{})

	s.mu.Lock()
	s.next++
	h := s.next
	s.active[h] = func() { close(stop) }
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()

	return h
}

func (s *System) After(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	s.next++
	h := s.next
	s.mu.Unlock()

	t := time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.active, h)
		s.mu.Unlock()
		fn()
	})

	s.mu.Lock()
	s.active[h] = func() { t.Stop() }
	s.mu.Unlock()

	return h
}

func (s *System) Cancel(h Handle) {
	s.mu.Lock()
	stop, ok := s.active[h]
	if ok {
		delete(s.active, h)
	}
	s.mu.Unlock()

	if ok {
		stop()
	}
}

func (s *System) Now() time.Time {
	return time.Now()
}
