package ecs

import (
	"fmt"
	"reflect"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/event"
)

// System is the interface every ECS system implements. ShouldRun is asked
// once per pass; Run executes only when it answered true.
type System interface {
	ShouldRun(w *World, now, delta time.Duration) bool
	Run(w *World, now, delta time.Duration) error
}

// Starter is implemented by systems with a one-time start hook.
type Starter interface {
	Start(w *World) error
}

// Ticked is implemented by systems that remember the World tick of their
// last run. Recency clauses of entity systems are evaluated against it.
type Ticked interface {
	LastTick() Tick
	SetLastTick(Tick)
}

// Toggler is implemented by systems that can be switched on and off.
type Toggler interface {
	SetEnabled(bool)
	Enabled() bool
}

// Named systems report their name in logs and errors.
type Named interface {
	Name() string
}

// Predicate is a caller-supplied run gate.
type Predicate func(w *World, now, delta time.Duration) bool

// BaseSystem provides the enabled flag, run predicate and last-tick
// bookkeeping. Embed it and implement Run.
type BaseSystem struct {
	name      string
	disabled  bool
	predicate Predicate
	lastTick  Tick
}

func (b *BaseSystem) Name() string        { return b.name }
func (b *BaseSystem) SetName(name string) { b.name = name }
func (b *BaseSystem) Enabled() bool       { return !b.disabled }
func (b *BaseSystem) SetEnabled(on bool)  { b.disabled = !on }
func (b *BaseSystem) Enable()             { b.disabled = false }
func (b *BaseSystem) Disable()            { b.disabled = true }
func (b *BaseSystem) When(p Predicate)    { b.predicate = p }
func (b *BaseSystem) LastTick() Tick      { return b.lastTick }
func (b *BaseSystem) SetLastTick(t Tick)  { b.lastTick = t }

func (b *BaseSystem) ShouldRun(w *World, now, delta time.Duration) bool {
	if b.disabled {
		return false
	}
	return b.predicate == nil || b.predicate(w, now, delta)
}

// EntityFunc is the per-entity body of an EntitySystem.
type EntityFunc func(w *World, e Entity, now, delta time.Duration) error

// EntityProcessor is a system that can be driven one entity at a time. Only
// processors may be placed in an EntityStep.
type EntityProcessor interface {
	System
	Aspect() Aspect
	LastTick() Tick
	RunEntity(w *World, e Entity, now, delta time.Duration) error
}

// EntitySystem runs once for every live entity matching its aspect, in
// table order. Recency clauses compare against the system's last run, so
// they mean "changed since I last ran".
type EntitySystem struct {
	BaseSystem
	aspect Aspect
	fn     EntityFunc
}

func NewEntitySystem(aspect Aspect, fn EntityFunc) *EntitySystem {
	return &EntitySystem{aspect: aspect, fn: fn}
}

func (s *EntitySystem) Aspect() Aspect { return s.aspect }

func (s *EntitySystem) RunEntity(w *World, e Entity, now, delta time.Duration) error {
	return s.fn(w, e, now, delta)
}

func (s *EntitySystem) Run(w *World, now, delta time.Duration) error {
	since := s.lastTick
	for e := range w.Entities() {
		if !s.aspect.Match(w, e, since) {
			continue
		}
		if err := s.RunEntity(w, e, now, delta); err != nil {
			return fmt.Errorf("entity %s: %w", e, err)
		}
	}
	return nil
}

// QueueFunc is the per-item body of a QueueSystem.
type QueueFunc[T any] func(w *World, item T, now, delta time.Duration) error

// QueueProcessor is a system that consumes items of one queue type. Only
// processors of the matching type may be placed in a QueueStep.
type QueueProcessor[T any] interface {
	System
	RunQueueItem(w *World, item T, now, delta time.Duration) error
}

// queueBound lets the World validate queue registration without knowing T.
type queueBound interface {
	ItemType() reflect.Type
}

// QueueSystem drains a private reader of the World queue for T, once per
// item in post order.
type QueueSystem[T any] struct {
	BaseSystem
	fn        QueueFunc[T]
	fromStart bool
	reader    *event.Reader[T]
	stepFed   bool // a QueueStep feeds items; no private reader
}

func NewQueueSystem[T any](fn QueueFunc[T]) *QueueSystem[T] {
	return &QueueSystem[T]{fn: fn}
}

// FromStart makes the reader created at Start see the retained backlog.
func (s *QueueSystem[T]) FromStart() *QueueSystem[T] {
	s.fromStart = true
	return s
}

func (s *QueueSystem[T]) ItemType() reflect.Type { return TypeOf[T]() }

func (s *QueueSystem[T]) Start(w *World) error {
	if s.reader != nil || s.stepFed {
		return nil
	}
	r, err := NewReader[T](w, s.fromStart)
	if err != nil {
		return err
	}
	s.reader = r
	return nil
}

func (s *QueueSystem[T]) ShouldRun(w *World, now, delta time.Duration) bool {
	if !s.BaseSystem.ShouldRun(w, now, delta) {
		return false
	}
	return s.stepFed || s.reader == nil || s.reader.HasMore()
}

func (s *QueueSystem[T]) RunQueueItem(w *World, item T, now, delta time.Duration) error {
	return s.fn(w, item, now, delta)
}

func (s *QueueSystem[T]) Run(w *World, now, delta time.Duration) error {
	if s.stepFed {
		return nil
	}
	if err := s.Start(w); err != nil {
		return err
	}
	for {
		item, ok := s.reader.Next()
		if !ok {
			return nil
		}
		if err := s.RunQueueItem(w, item, now, delta); err != nil {
			return err
		}
	}
}

func (s *QueueSystem[T]) feedFromStep() {
	s.stepFed = true
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
}

func systemName(sys System) string {
	if n, ok := sys.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", sys)
}
