package nback

import (
	"sort"
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler is the only source of time the engine uses.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
	Cancel(h Handle)
	Now() time.Time
}

// TimerScheduler runs callbacks on time.AfterFunc goroutines.
type TimerScheduler struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Handle]*time.Timer)}
}

func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.timers[h]
		delete(s.timers, h)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	return h
}

func (s *TimerScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

func (s *TimerScheduler) Now() time.Time { return time.Now() }

// Pending reports timers that are scheduled and not yet fired or cancelled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler is a virtual clock. Callbacks only run from Advance or
// RunNext, on the caller's goroutine.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	next    Handle
	entries []manualEntry
}

type manualEntry struct {
	h   Handle
	due time.Time
	fn  func()
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries = append(s.entries, manualEntry{h: s.next, due: s.now.Add(delay), fn: fn})
	// stable sort keeps FIFO order among equal deadlines
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].due.Before(s.entries[j].due) })
	return s.next
}

func (s *ManualScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.h == h {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextDelay is the time until the earliest pending callback.
func (s *ManualScheduler) NextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[0].due.Sub(s.now), true
}

// Advance moves the clock forward by d, firing every callback that becomes
// due, including ones scheduled by callbacks fired along the way.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		s.mu.Lock()
		if len(s.entries) == 0 || s.entries[0].due.After(target) {
			s.now = target
			s.mu.Unlock()
			return
		}
		e := s.entries[0]
		s.entries = s.entries[1:]
		s.now = e.due
		s.mu.Unlock()
		e.fn()
	}
}

// RunNext jumps the clock to the earliest pending callback and fires it.
func (s *ManualScheduler) RunNext() bool {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return false
	}
	e := s.entries[0]
	s.entries = s.entries[1:]
	if e.due.After(s.now) {
		s.now = e.due
	}
	s.mu.Unlock()
	e.fn()
	return true
}
