package budget

import (
	"sync"
	"time"
)

// Tracker is a whole-game wall-clock budget for one agent.
// remaining stays within [0, total] at all times.
type Tracker struct {
	mu        sync.Mutex
	total     time.Duration
	remaining time.Duration
	started   time.Time
	running   bool
	now       func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now. Tests use it to drive elapsed time.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(total time.Duration, opts ...Option) *Tracker {
	if total < 0 {
		total = 0
	}
	t := &Tracker{total: total, remaining: total, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seconds builds a Tracker from a float second count.
func Seconds(total float64, opts ...Option) *Tracker {
	return NewTracker(time.Duration(total*float64(time.Second)), opts...)
}

// StartTurn records the turn start. A second call restarts the turn.
func (t *Tracker) StartTurn() {
	t.mu.Lock()
	t.started = t.now()
	t.running = true
	t.mu.Unlock()
}

// EndTurn charges the time since StartTurn and returns it.
// Without a running turn it charges nothing.
func (t *Tracker) EndTurn() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	t.running = false
	elapsed := t.now().Sub(t.started)
	if elapsed < 0 {
		elapsed = 0
	}
	t.chargeLocked(elapsed)
	return elapsed
}

func (t *Tracker) chargeLocked(d time.Duration) {
	t.remaining -= d
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// Restore sets the remaining budget, clamped to [0, total]. Used when a
// session is resumed from a snapshot.
func (t *Tracker) Restore(remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case remaining < 0:
		remaining = 0
	case remaining > t.total:
		remaining = t.total
	}
	t.remaining = remaining
}

func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Tracker) Total() time.Duration { return t.total }

func (t *Tracker) Exhausted() bool { return t.Remaining() == 0 }

func (t *Tracker) RemainingSeconds() float64 { return t.Remaining().Seconds() }
