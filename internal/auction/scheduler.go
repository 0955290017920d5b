package auction

import (
	"sync"
	"time"

	"auctionhouse/internal/ledger"
)

type TimerState string

const (
	Idle      TimerState = "idle"
	Running   TimerState = "running"
	Fired     TimerState = "fired"
	Cancelled TimerState = "cancelled"
)

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ExpiryHandler receives every timer expiry. gen identifies the countdown
// instance; handlers must check it with Live before acting.
type ExpiryHandler func(key ledger.ItemKey, gen uint64)

// Scheduler owns the per-item countdowns. Every Start bumps a process-wide
// generation counter, so an expiry from a replaced countdown can always be
// told apart from the live one even if its Stop lost the race.
type Scheduler struct {
	mu        sync.Mutex
	limit     time.Duration
	now       func() time.Time
	after     AfterFunc
	handler   ExpiryHandler
	gen       uint64
	closed    bool
	timers    map[ledger.ItemKey]*countdown
	cancelled map[ledger.ItemKey]struct{} // cleared by the next start
}

type countdown struct {
	gen      uint64
	deadline time.Time
	timer    Timer
	fired    bool
}

func NewScheduler(limit time.Duration, now func() time.Time, after AfterFunc) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if after == nil {
		after = realAfterFunc
	}
	return &Scheduler{
		limit:  limit,
		now:    now,
		after:  after,
		timers:    make(map[ledger.ItemKey]*countdown),
		cancelled: make(map[ledger.ItemKey]struct{}),
	}
}

func (s *Scheduler) SetHandler(h ExpiryHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Scheduler) Limit() time.Duration { return s.limit }

// Start replaces any countdown for key with a fresh one of the full limit.
func (s *Scheduler) Start(key ledger.ItemKey) uint64 {
	return s.StartIn(key, s.limit)
}

// StartIn arms a countdown of d for key. After Stop it arms nothing and
// returns 0.
func (s *Scheduler) StartIn(key ledger.ItemKey, d time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}

	delete(s.cancelled, key)
	if cd, ok := s.timers[key]; ok {
		cd.timer.Stop()
	}
	s.gen++
	gen := s.gen
	cd := &countdown{gen: gen, deadline: s.now().Add(d)}
	s.timers[key] = cd
	cd.timer = s.after(d, func() { s.expire(key, gen) })
	return gen
}

func (s *Scheduler) expire(key ledger.ItemKey, gen uint64) {
	s.mu.Lock()
	cd, ok := s.timers[key]
	if ok && cd.gen == gen {
		cd.fired = true
	}
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(key, gen)
	}
}

// Cancel drops the countdown for key without firing it and leaves key in
// the Cancelled state. It reports whether one was pending.
func (s *Scheduler) Cancel(key ledger.ItemKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dropLocked(key) {
		return false
	}
	s.cancelled[key] = struct{}{}
	return true
}

// Drop removes the countdown for key and returns it to Idle.
func (s *Scheduler) Drop(key ledger.ItemKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancelled, key)
	return s.dropLocked(key)
}

func (s *Scheduler) dropLocked(key ledger.ItemKey) bool {
	cd, ok := s.timers[key]
	if !ok {
		return false
	}
	cd.timer.Stop()
	delete(s.timers, key)
	return true
}

// Live reports whether gen is still the current countdown for key.
func (s *Scheduler) Live(key ledger.ItemKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cd, ok := s.timers[key]
	return ok && cd.gen == gen
}

// Done moves a fired countdown back to Idle. It is a no-op for a stale gen.
func (s *Scheduler) Done(key ledger.ItemKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cd, ok := s.timers[key]
	if !ok || cd.gen != gen {
		return false
	}
	delete(s.timers, key)
	return true
}

func (s *Scheduler) State(key ledger.ItemKey) TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	cd, ok := s.timers[key]
	switch {
	case !ok:
		if _, c := s.cancelled[key]; c {
			return Cancelled
		}
		return Idle
	case cd.fired:
		return Fired
	default:
		return Running
	}
}

// Remaining returns the time left on the live countdown for key.
func (s *Scheduler) Remaining(key ledger.ItemKey) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cd, ok := s.timers[key]
	if !ok {
		return 0, false
	}
	left := cd.deadline.Sub(s.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

func (s *Scheduler) Pending() []ledger.ItemKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.ItemKey, 0, len(s.timers))
	for k := range s.timers {
		out = append(out, k)
	}
	return out
}

// Stop cancels every countdown and refuses new ones. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for k, cd := range s.timers {
		cd.timer.Stop()
		delete(s.timers, k)
	}
}
