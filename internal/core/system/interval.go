package system

import (
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
)

// IntervalSystem runs a wrapped system on a countdown timer. Each pass the
// timer loses the pass delta; the wrapped system fires when it reaches zero
// and the timer re-arms by the interval.
type IntervalSystem struct {
	inner    ecs.System
	every    time.Duration
	timer    time.Duration
	catchUp  bool
	once     bool
	disabled bool
	pending  int
}

// Interval fires sys every interval of World time. With catchUp a pass that
// covers several intervals runs sys once per interval; without it the overdue
// intervals collapse into a single run. A non-positive interval fires on
// every pass.
func Interval(sys ecs.System, every time.Duration, catchUp bool) *IntervalSystem {
	return &IntervalSystem{inner: sys, every: every, timer: every, catchUp: catchUp}
}

// Delayed fires sys once, after the given World time has passed, and then
// disables itself.
func Delayed(sys ecs.System, after time.Duration) *IntervalSystem {
	return &IntervalSystem{inner: sys, every: after, timer: after, once: true}
}

func (s *IntervalSystem) Inner() ecs.System { return s.inner }

// Remaining is the World time left before the next firing.
func (s *IntervalSystem) Remaining() time.Duration { return s.timer }

// Reset re-arms the timer to a full interval and, for a delayed system,
// switches it back on.
func (s *IntervalSystem) Reset() {
	s.timer = s.every
	s.pending = 0
	s.disabled = false
}

func (s *IntervalSystem) ShouldRun(w *ecs.World, now, delta time.Duration) bool {
	s.pending = 0
	if s.disabled {
		return false
	}
	s.timer -= delta
	if s.timer > 0 {
		return false
	}
	n := 1
	switch {
	case s.once:
		s.disabled = true
	case s.every <= 0:
		s.timer = 0
	case s.catchUp:
		n += int(-s.timer / s.every)
		s.timer += time.Duration(n) * s.every
	default:
		s.timer = s.every
	}
	if !s.inner.ShouldRun(w, now, delta) {
		return false
	}
	s.pending = n
	return true
}

// Run fires the wrapped system once per pending interval. Catch-up runs
// share now and delta; between them the wrapped system is stamped with the
// current tick, so its recency clauses match an entity once, not once per run.
func (s *IntervalSystem) Run(w *ecs.World, now, delta time.Duration) error {
	n := s.pending
	s.pending = 0
	for i := 0; i < n; i++ {
		if i > 0 {
			s.SetLastTick(w.Tick())
		}
		if err := s.inner.Run(w, now, delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *IntervalSystem) Enabled() bool { return !s.disabled }

func (s *IntervalSystem) SetEnabled(on bool) {
	s.disabled = !on
	if t, ok := s.inner.(ecs.Toggler); ok && on {
		t.SetEnabled(true)
	}
}

func (s *IntervalSystem) Start(w *ecs.World) error {
	if st, ok := s.inner.(ecs.Starter); ok {
		return st.Start(w)
	}
	return nil
}

func (s *IntervalSystem) LastTick() ecs.Tick {
	if t, ok := s.inner.(ecs.Ticked); ok {
		return t.LastTick()
	}
	return 0
}

func (s *IntervalSystem) SetLastTick(tick ecs.Tick) {
	if t, ok := s.inner.(ecs.Ticked); ok {
		t.SetLastTick(tick)
	}
}

func (s *IntervalSystem) Name() string {
	if n, ok := s.inner.(ecs.Named); ok {
		return n.Name()
	}
	return ""
}
