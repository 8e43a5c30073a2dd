package ecs

import (
	"fmt"
	"strings"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/event"
)

// Lane defines execution ordering within a single step.
type Lane int

const (
	Pre    Lane = iota // runs before the step's normal systems
	Normal             // the step's main work
	Post               // runs after the step's normal systems

	laneCount
)

const (
	prePrefix  = "pre-"
	postPrefix = "post-"
)

func (l Lane) String() string {
	switch l {
	case Pre:
		return "pre"
	case Normal:
		return "normal"
	case Post:
		return "post"
	default:
		return "unknown"
	}
}

// ParseAddress splits a system address into its lane and step name:
// "pre-move" is the pre lane of step "move", "post-move" its post lane and
// "move" its normal lane.
func ParseAddress(addr string) (Lane, string) {
	if name, ok := strings.CutPrefix(addr, prePrefix); ok {
		return Pre, name
	}
	if name, ok := strings.CutPrefix(addr, postPrefix); ok {
		return Post, name
	}
	return Normal, addr
}

func checkStepName(name string) error {
	if name == "" {
		return fmt.Errorf("empty step name: %w", ErrInvalidPlacement)
	}
	if strings.HasPrefix(name, prePrefix) || strings.HasPrefix(name, postPrefix) {
		return fmt.Errorf("step %q: %w", name, ErrReservedStepName)
	}
	return nil
}

// Step holds the systems of one pipeline stage in three lanes. Steps are
// created through the World so that their set and kind are checked.
type Step interface {
	Name() string
	Add(lane Lane, sys System) error
	// Systems lists the step's systems in run order.
	Systems() []System

	run(w *World, set string, now, delta time.Duration) error
}

// SystemStep runs each lane's systems one after the other, with World
// maintenance after every system that ran.
type SystemStep struct {
	name  string
	lanes [laneCount][]System
}

func NewSystemStep(name string) *SystemStep {
	return &SystemStep{name: name}
}

func (s *SystemStep) Name() string { return s.name }

func (s *SystemStep) Add(lane Lane, sys System) error {
	if lane < Pre || lane >= laneCount {
		return fmt.Errorf("step %s: lane %d: %w", s.name, lane, ErrInvalidPlacement)
	}
	s.lanes[lane] = append(s.lanes[lane], sys)
	return nil
}

func (s *SystemStep) Systems() []System {
	var out []System
	for _, lane := range s.lanes {
		out = append(out, lane...)
	}
	return out
}

func (s *SystemStep) run(w *World, set string, now, delta time.Duration) error {
	for _, lane := range s.lanes {
		for _, sys := range lane {
			if err := w.runSystem(set, s.name, sys, now, delta); err != nil {
				return err
			}
		}
	}
	return nil
}

// EntityStep drives entity processors entity-first: every active processor
// of the step handles one entity before the next entity is considered.
type EntityStep struct {
	name  string
	lanes [laneCount][]EntityProcessor
}

func NewEntityStep(name string) *EntityStep {
	return &EntityStep{name: name}
}

func (s *EntityStep) Name() string { return s.name }

func (s *EntityStep) Add(lane Lane, sys System) error {
	if lane < Pre || lane >= laneCount {
		return fmt.Errorf("step %s: lane %d: %w", s.name, lane, ErrInvalidPlacement)
	}
	p, ok := sys.(EntityProcessor)
	if !ok {
		return fmt.Errorf("entity step %s: %s: %w", s.name, systemName(sys), ErrStepKind)
	}
	s.lanes[lane] = append(s.lanes[lane], p)
	return nil
}

func (s *EntityStep) Systems() []System {
	var out []System
	for _, lane := range s.lanes {
		for _, p := range lane {
			out = append(out, p)
		}
	}
	return out
}

func (s *EntityStep) run(w *World, set string, now, delta time.Duration) error {
	return w.runEntityFirst(set, []*EntityStep{s}, now, delta)
}

// QueueStep is bound to the World queue for T. It drains its own reader once
// per pass and hands every item to each active processor in lane order. Items
// posted while every processor is inactive are skipped.
type QueueStep[T any] struct {
	name   string
	lanes  [laneCount][]QueueProcessor[T]
	reader *event.Reader[T]
}

func (s *QueueStep[T]) Name() string { return s.name }

func (s *QueueStep[T]) Add(lane Lane, sys System) error {
	if lane < Pre || lane >= laneCount {
		return fmt.Errorf("step %s: lane %d: %w", s.name, lane, ErrInvalidPlacement)
	}
	p, ok := sys.(QueueProcessor[T])
	if !ok {
		return fmt.Errorf("queue step %s (%s): %s: %w", s.name, TypeOf[T](), systemName(sys), ErrStepKind)
	}
	if fed, ok := sys.(interface{ feedFromStep() }); ok {
		fed.feedFromStep()
	}
	s.lanes[lane] = append(s.lanes[lane], p)
	return nil
}

func (s *QueueStep[T]) Systems() []System {
	var out []System
	for _, lane := range s.lanes {
		for _, p := range lane {
			out = append(out, p)
		}
	}
	return out
}

func (s *QueueStep[T]) run(w *World, set string, now, delta time.Duration) error {
	var active []QueueProcessor[T]
	for _, lane := range s.lanes {
		for _, p := range lane {
			if p.ShouldRun(w, now, delta) {
				active = append(active, p)
			}
		}
	}
	if len(active) == 0 {
		// Nobody consumes this pass; let the queue trim what was posted.
		s.reader.Skip()
		return nil
	}
	for item := range s.reader.All() {
		for _, p := range active {
			err := p.RunQueueItem(w, item, now, delta)
			w.stamp(p)
			w.Maintain()
			w.advance()
			if err != nil {
				return w.systemError(set, s.name, p, err)
			}
		}
	}
	return nil
}

// SystemSet is a named, ordered sequence of steps.
type SystemSet struct {
	name        string
	entityFirst bool
	steps       []Step
	lastRun     time.Duration // World time of the previous pass
}

func (s *SystemSet) Name() string { return s.name }

// EntityFirst reports whether the set iterates entities outside its steps.
func (s *SystemSet) EntityFirst() bool { return s.entityFirst }

func (s *SystemSet) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *SystemSet) Step(name string) (Step, bool) {
	if i := s.index(name); i >= 0 {
		return s.steps[i], true
	}
	return nil, false
}

func (s *SystemSet) index(name string) int {
	for i, st := range s.steps {
		if st.Name() == name {
			return i
		}
	}
	return -1
}

// insert places step according to place: "" appends, "before:<name>" and
// "after:<name>" position relative to an existing step.
func (s *SystemSet) insert(step Step, place string) error {
	if err := checkStepName(step.Name()); err != nil {
		return fmt.Errorf("set %s: %w", s.name, err)
	}
	if s.index(step.Name()) >= 0 {
		return fmt.Errorf("set %s: step %s: %w", s.name, step.Name(), ErrDuplicateStep)
	}
	if _, ok := step.(*EntityStep); s.entityFirst && !ok {
		return fmt.Errorf("entity set %s: step %s: %w", s.name, step.Name(), ErrStepKind)
	}
	at, err := s.position(place)
	if err != nil {
		return err
	}
	s.steps = append(s.steps, nil)
	copy(s.steps[at+1:], s.steps[at:])
	s.steps[at] = step
	return nil
}

func (s *SystemSet) position(place string) (int, error) {
	if place == "" {
		return len(s.steps), nil
	}
	kind, ref, ok := strings.Cut(place, ":")
	if !ok || (kind != "before" && kind != "after") {
		return 0, fmt.Errorf("set %s: %q: %w", s.name, place, ErrInvalidPlacement)
	}
	i := s.index(ref)
	if i < 0 {
		return 0, fmt.Errorf("set %s: %s %s: %w", s.name, kind, ref, ErrUnknownStep)
	}
	if kind == "after" {
		i++
	}
	return i, nil
}

func (s *SystemSet) run(w *World, now, delta time.Duration) error {
	if s.entityFirst {
		steps := make([]*EntityStep, len(s.steps))
		for i, st := range s.steps {
			steps[i] = st.(*EntityStep)
		}
		return w.runEntityFirst(s.name, steps, now, delta)
	}
	for _, st := range s.steps {
		if err := st.run(w, s.name, now, delta); err != nil {
			return err
		}
	}
	return nil
}
