package ecs

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Option places steps and systems. Options that do not apply to a call are
// ignored.
type Option func(*placement)

type placement struct {
	set      string
	step     string
	place    string
	disabled bool
}

// InSet targets the named set instead of DefaultSet.
func InSet(name string) Option { return func(p *placement) { p.set = name } }

// InStep targets a step address: "<step>", "pre-<step>" or "post-<step>".
func InStep(addr string) Option { return func(p *placement) { p.step = addr } }

// Before inserts a new step ahead of an existing one.
func Before(step string) Option { return func(p *placement) { p.place = "before:" + step } }

// After inserts a new step behind an existing one.
func After(step string) Option { return func(p *placement) { p.place = "after:" + step } }

// Placement takes a raw "before:<step>" / "after:<step>" string.
func Placement(place string) Option { return func(p *placement) { p.place = place } }

// Disabled adds a system switched off.
func Disabled() Option { return func(p *placement) { p.disabled = true } }

func resolve(opts []Option) placement {
	p := placement{set: DefaultSet, step: DefaultStep}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AddSystemSet creates an ordered set holding plain steps.
func (w *World) AddSystemSet(name string, steps ...string) error {
	return w.addSet(name, false, steps, func(n string) Step { return NewSystemStep(n) })
}

// AddEntitySystemSet creates an entity-first set: for each entity, every
// step and lane runs before the next entity is considered.
func (w *World) AddEntitySystemSet(name string, steps ...string) error {
	return w.addSet(name, true, steps, func(n string) Step { return NewEntityStep(n) })
}

func (w *World) addSet(name string, entityFirst bool, steps []string, mk func(string) Step) error {
	if name == "" {
		return fmt.Errorf("empty set name: %w", ErrUnknownSet)
	}
	if _, ok := w.sets[name]; ok {
		return fmt.Errorf("set %s: %w", name, ErrDuplicateSet)
	}
	set := &SystemSet{name: name, entityFirst: entityFirst}
	for _, st := range steps {
		if err := set.insert(mk(st), ""); err != nil {
			return err
		}
	}
	w.sets[name] = set
	w.setOrder = append(w.setOrder, name)
	w.log.Debug("system set added",
		zap.String("set", name),
		zap.Bool("entity_first", entityFirst),
		zap.Strings("steps", steps),
	)
	return nil
}

// SystemSet returns the named set.
func (w *World) SystemSet(name string) (*SystemSet, error) {
	set, ok := w.sets[name]
	if !ok {
		return nil, fmt.Errorf("set %s: %w", name, ErrUnknownSet)
	}
	return set, nil
}

// SetNames lists sets in creation order.
func (w *World) SetNames() []string {
	out := make([]string, len(w.setOrder))
	copy(out, w.setOrder)
	return out
}

// AddStep adds a plain step. Use InSet, Before, After or Placement to
// position it; by default it is appended to DefaultSet.
func (w *World) AddStep(name string, opts ...Option) error {
	return w.addStep(NewSystemStep(name), opts)
}

// AddEntityStep adds a step that only accepts entity processors.
func (w *World) AddEntityStep(name string, opts ...Option) error {
	return w.addStep(NewEntityStep(name), opts)
}

// AddQueueStep adds a step bound to the World queue for T. Its reader only
// sees items pushed after the step was created.
func AddQueueStep[T any](w *World, name string, opts ...Option) error {
	q, err := Queue[T](w)
	if err != nil {
		return fmt.Errorf("queue step %s: %w", name, err)
	}
	return w.addStep(&QueueStep[T]{name: name, reader: q.Reader(false)}, opts)
}

func (w *World) addStep(step Step, opts []Option) error {
	p := resolve(opts)
	set, err := w.SystemSet(p.set)
	if err != nil {
		return fmt.Errorf("add step %s: %w", step.Name(), err)
	}
	if err := set.insert(step, p.place); err != nil {
		return err
	}
	w.log.Debug("step added",
		zap.String("set", p.set),
		zap.String("step", step.Name()),
		zap.String("place", p.place),
	)
	return nil
}

// AddSystem attaches sys to a step lane. By default it lands in the normal
// lane of DefaultStep in DefaultSet.
func (w *World) AddSystem(sys System, opts ...Option) error {
	p := resolve(opts)
	name := systemName(sys)
	set, err := w.SystemSet(p.set)
	if err != nil {
		return fmt.Errorf("add system %s: %w", name, err)
	}
	lane, stepName := ParseAddress(p.step)
	step, ok := set.Step(stepName)
	if !ok {
		return fmt.Errorf("add system %s: set %s: step %s: %w", name, p.set, stepName, ErrUnknownStep)
	}
	if err := w.checkRegistered(sys); err != nil {
		return fmt.Errorf("add system %s: %w", name, err)
	}
	if err := step.Add(lane, sys); err != nil {
		return fmt.Errorf("add system %s: set %s: %w", name, p.set, err)
	}
	if p.disabled {
		if t, ok := sys.(Toggler); ok {
			t.SetEnabled(false)
		}
	}
	w.systems = append(w.systems, sys)
	w.log.Debug("system added",
		zap.String("system", name),
		zap.String("set", p.set),
		zap.String("step", stepName),
		zap.Stringer("lane", lane),
	)
	if w.started {
		if s, ok := sys.(Starter); ok {
			if err := s.Start(w); err != nil {
				return fmt.Errorf("start system %s: %w", name, err)
			}
		}
	}
	return nil
}

func (w *World) checkRegistered(sys System) error {
	if p, ok := sys.(EntityProcessor); ok {
		for _, t := range p.Aspect().Types() {
			if w.registry.lookup(t) == nil {
				return fmt.Errorf("aspect %v: %w", t, ErrUnregisteredComponent)
			}
		}
	}
	if q, ok := sys.(queueBound); ok {
		if _, ok := w.queues[q.ItemType()]; !ok {
			return fmt.Errorf("queue %v: %w", q.ItemType(), ErrUnregisteredQueue)
		}
	}
	return nil
}

// Systems lists every added system in the order it was added.
func (w *World) Systems() []System {
	out := make([]System, len(w.systems))
	copy(out, w.systems)
	return out
}

// Start runs every system's start hook once. Systems added afterwards are
// started as they are added.
func (w *World) Start() error {
	if w.started {
		return nil
	}
	for _, sys := range w.systems {
		if s, ok := sys.(Starter); ok {
			if err := s.Start(w); err != nil {
				return fmt.Errorf("start system %s: %w", systemName(sys), err)
			}
		}
	}
	w.started = true
	return nil
}

// RunSystems runs DefaultSet.
func (w *World) RunSystems() error {
	return w.RunSystemSet(DefaultSet)
}

// RunSystemSet runs one pass of the named set, then applies deferred
// destruction, rotates queues and advances the tick. A system error stops
// the pass but the closing bookkeeping still happens.
func (w *World) RunSystemSet(name string) error {
	set, err := w.SystemSet(name)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	delta := w.now - set.lastRun
	set.lastRun = w.now
	defer w.finishPass()
	return set.run(w, w.now, delta)
}

// runSystem gates, runs and stamps one system, then maintains the World and
// advances the tick.
func (w *World) runSystem(set, step string, sys System, now, delta time.Duration) error {
	if !sys.ShouldRun(w, now, delta) {
		return nil
	}
	err := sys.Run(w, now, delta)
	w.stamp(sys)
	w.Maintain()
	w.advance()
	if err != nil {
		return w.systemError(set, step, sys, err)
	}
	return nil
}

// runEntityFirst runs the active processors of steps for one entity at a
// time, in step then lane order. The processors act as one unit: they are
// stamped together and the World is maintained once, after the last entity,
// so an entity queued for destruction mid-pass is still visited.
func (w *World) runEntityFirst(set string, steps []*EntityStep, now, delta time.Duration) error {
	type active struct {
		step   string
		proc   EntityProcessor
		aspect Aspect
		since  Tick
	}
	var procs []active
	for _, st := range steps {
		for _, lane := range st.lanes {
			for _, p := range lane {
				if p.ShouldRun(w, now, delta) {
					procs = append(procs, active{step: st.name, proc: p, aspect: p.Aspect(), since: p.LastTick()})
				}
			}
		}
	}
	if len(procs) == 0 {
		return nil
	}
	defer func() {
		for _, a := range procs {
			w.stamp(a.proc)
		}
		w.Maintain()
		w.advance()
	}()
	for e := range w.Entities() {
		for _, a := range procs {
			if !a.aspect.Match(w, e, a.since) {
				continue
			}
			if err := a.proc.RunEntity(w, e, now, delta); err != nil {
				return w.systemError(set, a.step, a.proc, fmt.Errorf("entity %s: %w", e, err))
			}
		}
	}
	return nil
}

func (w *World) stamp(sys System) {
	if t, ok := sys.(Ticked); ok {
		t.SetLastTick(w.tick)
	}
}

func (w *World) systemError(set, step string, sys System, err error) error {
	name := systemName(sys)
	w.log.Error("system failed",
		zap.String("set", set),
		zap.String("step", step),
		zap.String("system", name),
		zap.Int32("tick", int32(w.tick)),
		zap.Error(err),
	)
	return fmt.Errorf("set %s: step %s: system %s: %w", set, step, name, err)
}
