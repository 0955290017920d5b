package auction

import (
	"sort"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/ledger"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.April, 10, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, running due timers in deadline order on
// the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

type expiry struct {
	key ledger.ItemKey
	gen uint64
}

func newTestScheduler(clock *fakeClock) (*Scheduler, *[]expiry) {
	s := NewScheduler(time.Minute, clock.Now, clock.AfterFunc)
	var fired []expiry
	s.SetHandler(func(key ledger.ItemKey, gen uint64) {
		if s.Done(key, gen) {
			fired = append(fired, expiry{key, gen})
		}
	})
	return s, &fired
}

func TestSchedulerFiresOnceAfterLimit(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)
	key := ledger.ClubKey(1)

	gen := s.Start(key)
	require.Equal(t, Running, s.State(key))

	clock.Advance(59 * time.Second)
	require.Empty(t, *fired)
	left, ok := s.Remaining(key)
	require.True(t, ok)
	require.Equal(t, time.Second, left)

	clock.Advance(time.Second)
	require.Equal(t, []expiry{{key, gen}}, *fired)
	require.Equal(t, Idle, s.State(key))

	clock.Advance(10 * time.Minute)
	require.Len(t, *fired, 1)
}

func TestSchedulerRestartReplacesCountdown(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)
	key := ledger.DuelistKey(3)

	first := s.Start(key)
	clock.Advance(59 * time.Second)
	second := s.Start(key)
	require.Greater(t, second, first)
	require.False(t, s.Live(key, first))

	clock.Advance(time.Second)
	require.Empty(t, *fired)

	clock.Advance(59 * time.Second)
	require.Equal(t, []expiry{{key, second}}, *fired)
}

func TestSchedulerStaleGenerationIsIgnored(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)
	key := ledger.ClubKey(2)

	stale := s.Start(key)
	live := s.Start(key)

	// a replaced countdown whose Stop lost the race still reaches the handler
	s.expire(key, stale)
	require.Empty(t, *fired)
	require.True(t, s.Live(key, live))
	require.Equal(t, Running, s.State(key))
}

func TestSchedulerCancel(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)
	key := ledger.ClubKey(5)

	require.False(t, s.Cancel(key))
	s.Start(key)
	require.True(t, s.Cancel(key))
	require.Equal(t, Cancelled, s.State(key))

	clock.Advance(2 * time.Minute)
	require.Empty(t, *fired)

	s.Start(key)
	require.Equal(t, Running, s.State(key))
	require.True(t, s.Drop(key))
	require.Equal(t, Idle, s.State(key))
}

func TestSchedulerStopRefusesNewCountdowns(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)
	key := ledger.ClubKey(6)

	s.Start(key)
	s.Stop()
	require.Zero(t, s.Start(key))
	require.Zero(t, s.StartIn(key, time.Second))
	require.Empty(t, s.Pending())
	require.Equal(t, Idle, s.State(key))

	clock.Advance(2 * time.Minute)
	require.Empty(t, *fired)
}

func TestSchedulerIndependentKeys(t *testing.T) {
	clock := newFakeClock()
	s, fired := newTestScheduler(clock)

	s.Start(ledger.ClubKey(1))
	clock.Advance(30 * time.Second)
	s.Start(ledger.ClubKey(2))
	require.Len(t, s.Pending(), 2)

	clock.Advance(30 * time.Second)
	require.Len(t, *fired, 1)
	require.Equal(t, ledger.ClubKey(1), (*fired)[0].key)

	clock.Advance(30 * time.Second)
	keys := []string{(*fired)[0].key.String(), (*fired)[1].key.String()}
	sort.Strings(keys)
	require.Equal(t, []string{"club/1", "club/2"}, keys)

	s.Start(ledger.ClubKey(3))
	s.Stop()
	require.Empty(t, s.Pending())
}
