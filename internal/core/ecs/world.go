package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSet and DefaultStep receive systems added without placement.
	DefaultSet  = "default"
	DefaultStep = "update"

	// Tick stamps are shifted down by RebaseWindow once the World tick passes
	// RebaseThreshold, keeping int32 stamps far from overflow.
	RebaseThreshold Tick = 1 << 30
	RebaseWindow    Tick = 1 << 29
)

// World is the top-level ECS container. It owns the entity pool, component
// stores, queues, uniques and the system sets, plus a deferred destruction
// queue flushed by Maintain.
type World struct {
	log          *zap.Logger
	pool         *EntityPool
	registry     *Registry
	queues       map[reflect.Type]queueHandle
	queueOrder   []reflect.Type
	uniques      map[reflect.Type]any
	sets         map[string]*SystemSet
	setOrder     []string
	systems      []System
	destroyQueue []Entity

	tick    Tick
	now     time.Duration
	started bool

	rebaseThreshold Tick
	rebaseWindow    Tick
}

type queueHandle interface {
	Maintain()
}

// WorldOption configures NewWorld.
type WorldOption func(*World)

// WithLogger routes wiring and failure logs to log.
func WithLogger(log *zap.Logger) WorldOption {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

// WithTickRebase overrides RebaseThreshold and RebaseWindow.
func WithTickRebase(threshold, window Tick) WorldOption {
	return func(w *World) {
		if threshold > 0 && window > 0 && window <= threshold {
			w.rebaseThreshold = threshold
			w.rebaseWindow = window
		}
	}
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		log:             zap.NewNop(),
		pool:            NewEntityPool(),
		registry:        NewRegistry(),
		queues:          make(map[reflect.Type]queueHandle),
		uniques:         make(map[reflect.Type]any),
		sets:            make(map[string]*SystemSet),
		destroyQueue:    make([]Entity, 0, 64),
		tick:            1,
		rebaseThreshold: RebaseThreshold,
		rebaseWindow:    RebaseWindow,
	}
	for _, opt := range opts {
		opt(w)
	}
	// The default set cannot collide with anything yet.
	_ = w.AddSystemSet(DefaultSet, DefaultStep)
	return w
}

func (w *World) Logger() *zap.Logger { return w.log }
func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Tick is the current logical tick. It advances after every system that runs
// and again at the end of every set pass, so changes made by a later system
// carry a stamp newer than an earlier system's last run.
func (w *World) Tick() Tick { return w.tick }

// Time is the accumulated simulation time.
func (w *World) Time() time.Duration { return w.now }

// AddTime advances simulation time. Each set hands its systems the time
// accumulated since that set's previous pass.
func (w *World) AddTime(delta time.Duration) {
	w.now += delta
}

// Create allocates an entity and attaches the given components. Each
// component is routed to the store registered for its dynamic type.
func (w *World) Create(components ...any) Entity {
	e := w.pool.Create()
	for _, c := range components {
		w.mustStore(reflect.TypeOf(c)).setAny(e, c)
	}
	return e
}

func (w *World) IsAlive(e Entity) bool { return w.pool.Alive(e) }

// DestroyNow clears e's components and frees its slot immediately.
func (w *World) DestroyNow(e Entity) {
	if !w.pool.Alive(e) {
		return
	}
	w.registry.RemoveAll(e)
	w.pool.Destroy(e)
}

// DestroyLater queues e for destruction at the next Maintain.
func (w *World) DestroyLater(e Entity) {
	if !w.pool.Alive(e) {
		return
	}
	w.destroyQueue = append(w.destroyQueue, e)
}

// Maintain destroys all queued entities and clears their components. It runs
// after every system and may be called directly.
func (w *World) Maintain() {
	if len(w.destroyQueue) == 0 {
		return
	}
	// Destroy callbacks may queue more work; drain until stable.
	for len(w.destroyQueue) > 0 {
		queue := w.destroyQueue
		w.destroyQueue = make([]Entity, 0, cap(queue))
		for _, e := range queue {
			w.DestroyNow(e)
		}
	}
}

// Entities yields the entities alive when iteration starts, in table order.
// Entities destroyed since are skipped, and entities created during the
// iteration, including those that reuse a freed slot, are not visited.
func (w *World) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		live := make([]Entity, 0, w.pool.Count())
		for i := 0; i < w.pool.Len(); i++ {
			if e, ok := w.pool.Current(int32(i)); ok {
				live = append(live, e)
			}
		}
		for _, e := range live {
			if !w.pool.Alive(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// ComponentTypes lists registered component types in registration order.
func (w *World) ComponentTypes() []reflect.Type { return w.registry.Types() }

// ComponentType resolves a registered component type by its reflect name.
func (w *World) ComponentType(name string) (reflect.Type, bool) {
	return w.registry.TypeByName(name)
}

// ComponentsOf yields every component currently attached to e, in
// registration order of their types.
func (w *World) ComponentsOf(e Entity) iter.Seq2[reflect.Type, any] {
	return func(yield func(reflect.Type, any) bool) {
		for _, s := range w.registry.stores {
			v, ok := s.valueOf(e)
			if !ok {
				continue
			}
			if !yield(s.Type(), v) {
				return
			}
		}
	}
}

// RecordOf returns the change history of component type t on e.
func (w *World) RecordOf(t reflect.Type, e Entity) (Record, bool) {
	s := w.registry.lookup(t)
	if s == nil {
		return Record{}, false
	}
	return s.Record(e)
}

// SetComponent attaches v using the store for its dynamic type.
func (w *World) SetComponent(e Entity, v any) error {
	t := reflect.TypeOf(v)
	s := w.registry.lookup(t)
	if s == nil {
		return fmt.Errorf("set %v: %w", t, ErrUnregisteredComponent)
	}
	s.setAny(e, v)
	return nil
}

// Compact drops component removal history stamped at or before tick.
func (w *World) Compact(before Tick) int {
	n := 0
	for _, s := range w.registry.stores {
		n += s.Compact(before)
	}
	return n
}

func (w *World) mustStore(t reflect.Type) store {
	s := w.registry.lookup(t)
	if s == nil {
		panic(fmt.Sprintf("ecs: %v: %v", t, ErrUnregisteredComponent))
	}
	return s
}

// finishPass closes a set pass: deferred destruction, queue rotation, tick.
func (w *World) finishPass() {
	w.Maintain()
	for _, t := range w.queueOrder {
		w.queues[t].Maintain()
	}
	w.advance()
}

func (w *World) advance() {
	w.tick++
	if w.tick > w.rebaseThreshold {
		w.rebase(w.rebaseWindow)
	}
}

func (w *World) rebase(shift Tick) {
	for _, s := range w.registry.stores {
		s.rebase(shift)
	}
	for _, sys := range w.systems {
		if t, ok := sys.(Ticked); ok {
			t.SetLastTick(max(t.LastTick()-shift, 0))
		}
	}
	w.tick -= shift
	w.log.Info("tick rebased",
		zap.Int32("shift", int32(shift)),
		zap.Int32("tick", int32(w.tick)),
	)
}
