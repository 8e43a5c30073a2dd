package ecs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fnSystem struct {
	BaseSystem
	fn func(w *World) error
}

func sys(name string, fn func(w *World) error) *fnSystem {
	s := &fnSystem{fn: fn}
	s.SetName(name)
	return s
}

func (s *fnSystem) Run(w *World, _, _ time.Duration) error { return s.fn(w) }

func TestStepPlacement(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.AddStep("physics", Before(DefaultStep)))
	require.NoError(t, w.AddStep("render", After(DefaultStep)))
	require.NoError(t, w.AddStep("input", Placement("before:physics")))
	require.NoError(t, w.AddStep("cleanup"))

	set, err := w.SystemSet(DefaultSet)
	require.NoError(t, err)
	var names []string
	for _, st := range set.Steps() {
		names = append(names, st.Name())
	}
	assert.Equal(t, []string{"input", "physics", "update", "render", "cleanup"}, names)
}

func TestWiringErrors(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.AddEntitySystemSet("turn", "act"))
	noop := func(*World) error { return nil }

	for _, tc := range []struct {
		name string
		err  error
		want error
	}{
		{"duplicate set", w.AddSystemSet(DefaultSet), ErrDuplicateSet},
		{"unknown set", w.AddStep("x", InSet("nope")), ErrUnknownSet},
		{"duplicate step", w.AddStep(DefaultStep), ErrDuplicateStep},
		{"reserved prefix", w.AddStep("pre-move"), ErrReservedStepName},
		{"empty step", w.AddStep(""), ErrInvalidPlacement},
		{"bad placement", w.AddStep("x", Placement("beside:update")), ErrInvalidPlacement},
		{"unknown anchor", w.AddStep("x", Before("nope")), ErrUnknownStep},
		{"plain step in entity set", w.AddStep("x", InSet("turn")), ErrStepKind},
		{"unknown system step", w.AddSystem(sys("a", noop), InStep("nope")), ErrUnknownStep},
		{"plain system in entity step", w.AddSystem(sys("a", noop), InSet("turn"), InStep("act")), ErrStepKind},
		{"unregistered aspect", w.AddSystem(NewEntitySystem(NewAspect(TypeOf[position]()), nil)), ErrUnregisteredComponent},
		{"unregistered queue", w.AddSystem(NewQueueSystem[string](nil)), ErrUnregisteredQueue},
		{"unregistered queue step", AddQueueStep[string](w, "msgs"), ErrUnregisteredQueue},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.want)
		})
	}
	assert.Empty(t, w.Systems())
	assert.Equal(t, []string{DefaultSet, "turn"}, w.SetNames())
}

func TestLaneOrder(t *testing.T) {
	w := NewWorld()
	var order []string
	record := func(name string) *fnSystem {
		return sys(name, func(*World) error {
			order = append(order, name)
			return nil
		})
	}
	require.NoError(t, w.AddSystem(record("post"), InStep("post-update")))
	require.NoError(t, w.AddSystem(record("normal-1")))
	require.NoError(t, w.AddSystem(record("pre"), InStep("pre-update")))
	require.NoError(t, w.AddSystem(record("normal-2"), InStep("update")))

	require.NoError(t, w.RunSystems())
	assert.Equal(t, []string{"pre", "normal-1", "normal-2", "post"}, order)
}

func TestEntityFirstSet(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.AddEntitySystemSet("turn", "think", "act"))
	a := w.Create(position{})
	b := w.Create(position{})
	w.Create(health{})

	var order []string
	visit := func(step string) *EntitySystem {
		return NewEntitySystem(NewAspect(TypeOf[position]()), func(_ *World, e Entity, _, _ time.Duration) error {
			order = append(order, fmt.Sprintf("%s:%d", step, e.Index))
			return nil
		})
	}
	require.NoError(t, w.AddSystem(visit("act"), InSet("turn"), InStep("act")))
	require.NoError(t, w.AddSystem(visit("think"), InSet("turn"), InStep("think")))
	require.NoError(t, w.AddSystem(visit("pre-act"), InSet("turn"), InStep("pre-act")))

	require.NoError(t, w.RunSystemSet("turn"))
	assert.Equal(t, []string{
		fmt.Sprintf("think:%d", a.Index), fmt.Sprintf("pre-act:%d", a.Index), fmt.Sprintf("act:%d", a.Index),
		fmt.Sprintf("think:%d", b.Index), fmt.Sprintf("pre-act:%d", b.Index), fmt.Sprintf("act:%d", b.Index),
	}, order)
}

func TestEntitySystemRecency(t *testing.T) {
	w := newTestWorld(t)
	var seen []Entity
	spawned := NewEntitySystem(Aspect{}.AddedSince(TypeOf[position]()), func(_ *World, e Entity, _, _ time.Duration) error {
		seen = append(seen, e)
		return nil
	})
	require.NoError(t, w.AddSystem(spawned))

	a := w.Create(position{})
	require.NoError(t, w.RunSystems())
	assert.Equal(t, []Entity{a}, seen)

	seen = nil
	require.NoError(t, w.RunSystems())
	assert.Empty(t, seen)

	b := w.Create(position{})
	require.NoError(t, w.RunSystems())
	assert.Equal(t, []Entity{b}, seen)
}

func TestDeferredDestruction(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 3; i++ {
		w.Create(health{i})
	}
	visited := 0
	reaper := NewEntitySystem(NewAspect(TypeOf[health]()), func(w *World, e Entity, _, _ time.Duration) error {
		visited++
		w.DestroyLater(e)
		assert.True(t, w.IsAlive(e))
		return nil
	})
	counted := -1
	counter := sys("count", func(w *World) error {
		counted = MustComponents[health](w).Len()
		return nil
	})
	require.NoError(t, w.AddSystem(reaper))
	require.NoError(t, w.AddSystem(counter))

	require.NoError(t, w.RunSystems())
	assert.Equal(t, 3, visited)
	assert.Equal(t, 0, counted, "maintenance runs between systems")
	assert.Equal(t, 0, w.Pool().Count())
}

func TestSystemErrorStillFinishesPass(t *testing.T) {
	boom := errors.New("boom")
	w := newTestWorld(t)
	doomed := w.Create()
	ran := false
	require.NoError(t, w.AddSystem(sys("doom", func(w *World) error {
		w.DestroyLater(doomed)
		return boom
	})))
	require.NoError(t, w.AddSystem(sys("after", func(*World) error {
		ran = true
		return nil
	})))

	err := w.RunSystems()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "set default: step update: system doom: boom", err.Error())
	assert.False(t, ran)
	assert.False(t, w.IsAlive(doomed))
	assert.Equal(t, Tick(3), w.Tick(), "one advance for the failed system, one for the pass")
}

func TestEntityErrorNamesEntity(t *testing.T) {
	w := newTestWorld(t)
	e := w.Create(position{})
	require.NoError(t, w.AddSystem(NewEntitySystem(NewAspect(TypeOf[position]()), func(*World, Entity, time.Duration, time.Duration) error {
		return errors.New("stuck")
	})))
	err := w.RunSystems()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity "+e.String()+": stuck")
}

func TestDisabledAndPredicate(t *testing.T) {
	w := NewWorld()
	runs, asked := 0, 0
	s := sys("gated", func(*World) error {
		runs++
		return nil
	})
	s.When(func(*World, time.Duration, time.Duration) bool {
		asked++
		return asked%2 == 0
	})
	require.NoError(t, w.AddSystem(s))

	for i := 0; i < 4; i++ {
		require.NoError(t, w.RunSystems())
	}
	assert.Equal(t, 2, runs)

	s.Disable()
	for i := 0; i < 4; i++ {
		require.NoError(t, w.RunSystems())
	}
	assert.Equal(t, 2, runs)
}

type starter struct {
	fnSystem
	started int
}

func (s *starter) Start(*World) error {
	s.started++
	return nil
}

func TestStartHooks(t *testing.T) {
	w := NewWorld()
	early := &starter{fnSystem: fnSystem{fn: func(*World) error { return nil }}}
	require.NoError(t, w.AddSystem(early))
	assert.Equal(t, 0, early.started)

	require.NoError(t, w.RunSystems())
	require.NoError(t, w.RunSystems())
	assert.Equal(t, 1, early.started)

	late := &starter{fnSystem: fnSystem{fn: func(*World) error { return nil }}}
	require.NoError(t, w.AddSystem(late))
	assert.Equal(t, 1, late.started, "systems added after start are started at once")
}

func TestQueueSystem(t *testing.T) {
	w := NewWorld()
	RegisterQueue[string](w)
	Push(w, "backlog")

	var all, fresh []string
	require.NoError(t, w.AddSystem(NewQueueSystem(func(_ *World, msg string, _, _ time.Duration) error {
		all = append(all, msg)
		return nil
	}).FromStart()))
	require.NoError(t, w.AddSystem(NewQueueSystem(func(_ *World, msg string, _, _ time.Duration) error {
		fresh = append(fresh, msg)
		return nil
	})))

	require.NoError(t, w.RunSystems())
	assert.Equal(t, []string{"backlog"}, all)
	assert.Empty(t, fresh)

	Push(w, "hello")
	require.NoError(t, w.RunSystems())
	assert.Equal(t, []string{"backlog", "hello"}, all)
	assert.Equal(t, []string{"hello"}, fresh)

	q, err := Queue[string](w)
	require.NoError(t, err)
	require.NoError(t, w.RunSystems())
	require.NoError(t, w.RunSystems())
	assert.Equal(t, 0, q.Len(), "read items are trimmed")
}

func TestQueueStepFeedsProcessorsPerItem(t *testing.T) {
	w := NewWorld()
	RegisterQueue[int](w)
	require.NoError(t, AddQueueStep[int](w, "damage", Before(DefaultStep)))

	var order []string
	proc := func(tag string) *QueueSystem[int] {
		return NewQueueSystem(func(_ *World, n int, _, _ time.Duration) error {
			order = append(order, fmt.Sprintf("%s%d", tag, n))
			return nil
		})
	}
	require.NoError(t, w.AddSystem(proc("b"), InStep("damage")))
	require.NoError(t, w.AddSystem(proc("a"), InStep("pre-damage")))
	assert.ErrorIs(t, w.AddSystem(NewQueueSystem[string](nil), InStep("damage")), ErrUnregisteredQueue)

	Push(w, 1)
	Push(w, 2)
	require.NoError(t, w.RunSystems())
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, order)

	q, _ := Queue[int](w)
	assert.Equal(t, 1, q.Readers(), "step-fed systems own no reader")
}

func TestUniques(t *testing.T) {
	type clock struct{ Turn int }
	w := NewWorld()
	_, ok := Unique[clock](w)
	assert.False(t, ok)
	assert.Panics(t, func() { MustUnique[clock](w) })

	p := SetUnique(w, clock{Turn: 1})
	p.Turn++
	assert.Equal(t, 2, MustUnique[clock](w).Turn)

	RegisterUnique(w, clock{Turn: 10})
	assert.Equal(t, 10, MustUnique[clock](w).Turn)
	assert.True(t, RemoveUnique[clock](w))
	assert.False(t, RemoveUnique[clock](w))
}

func TestTickRebase(t *testing.T) {
	w := NewWorld(WithTickRebase(10, 5))
	RegisterComponent[position](w)
	var seen int
	watcher := NewEntitySystem(Aspect{}.UpdatedSince(TypeOf[position]()), func(*World, Entity, time.Duration, time.Duration) error {
		seen++
		return nil
	})
	require.NoError(t, w.AddSystem(watcher))

	e := w.Create(position{})
	rebased := false
	for i := 0; i < 10 && !rebased; i++ {
		before := w.Tick()
		require.NoError(t, w.RunSystems())
		rebased = w.Tick() < before
	}
	require.True(t, rebased)
	assert.Equal(t, Tick(6), w.Tick())
	assert.Equal(t, Tick(4), watcher.LastTick())

	rec, _ := w.RecordOf(TypeOf[position](), e)
	assert.Equal(t, Tick(0), rec.Added)

	seen = 0
	Update[position](w, e)
	require.NoError(t, w.RunSystems())
	assert.Equal(t, 1, seen)

	seen = 0
	require.NoError(t, w.RunSystems())
	assert.Equal(t, 0, seen, "nothing changed since the rebased last run")
}

func TestLaterSystemChangesAreRecent(t *testing.T) {
	w := newTestWorld(t)
	e := w.Create(health{10})
	hits := 0
	require.NoError(t, w.AddSystem(NewEntitySystem(Aspect{}.UpdatedSince(TypeOf[health]()), func(*World, Entity, time.Duration, time.Duration) error {
		hits++
		return nil
	})))
	pass := 0
	require.NoError(t, w.AddSystem(sys("wound", func(w *World) error {
		pass++
		if pass == 2 {
			hp, _ := Update[health](w, e)
			hp.HP--
		}
		return nil
	})))

	for i := 0; i < 4; i++ {
		require.NoError(t, w.RunSystems())
	}
	assert.Equal(t, 2, hits, "initial add plus the wound in pass two")
}

func TestEntityFirstDestroyLaterStillVisits(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.AddEntitySystemSet("turn", "act"))
	a := w.Create(position{})
	b := w.Create(position{})

	var visited []Entity
	require.NoError(t, w.AddSystem(NewEntitySystem(NewAspect(TypeOf[position]()), func(w *World, e Entity, _, _ time.Duration) error {
		visited = append(visited, e)
		if e == a {
			w.DestroyLater(b)
		}
		return nil
	}), InSet("turn"), InStep("act")))

	require.NoError(t, w.RunSystemSet("turn"))
	assert.Equal(t, []Entity{a, b}, visited)
	assert.False(t, w.IsAlive(b))
}

func TestEntitiesCreatedMidPassAreNotVisited(t *testing.T) {
	w := newTestWorld(t)
	a := w.Create(position{})
	b := w.Create(position{})
	c := w.Create(position{})

	var visited []Entity
	var reborn Entity
	require.NoError(t, w.AddSystem(NewEntitySystem(NewAspect(TypeOf[position]()), func(w *World, e Entity, _, _ time.Duration) error {
		visited = append(visited, e)
		if e == a {
			w.DestroyNow(c)
			reborn = w.Create(position{})
		}
		return nil
	})))

	require.NoError(t, w.RunSystems())
	assert.Equal(t, c.Index, reborn.Index, "the freed slot is reused")
	assert.Equal(t, []Entity{a, b}, visited)
	assert.True(t, w.IsAlive(reborn))
}

func TestIdleQueueStepLetsQueueTrim(t *testing.T) {
	w := NewWorld()
	q := RegisterQueue[int](w)
	require.NoError(t, AddQueueStep[int](w, "damage"))
	runs := 0
	require.NoError(t, w.AddSystem(NewQueueSystem(func(*World, int, time.Duration, time.Duration) error {
		runs++
		return nil
	}), InStep("damage"), Disabled()))

	for i := 0; i < 3; i++ {
		Push(w, i)
	}
	require.NoError(t, w.RunSystems())
	require.NoError(t, w.RunSystems())
	assert.Equal(t, 0, runs)
	assert.Equal(t, 0, q.Len())
}

func TestComponentsOfAndSetComponent(t *testing.T) {
	w := newTestWorld(t)
	e := w.Create(position{1, 2})
	require.NoError(t, w.SetComponent(e, health{4}))

	got := map[string]any{}
	for typ, v := range w.ComponentsOf(e) {
		got[typ.Name()] = v
	}
	assert.Equal(t, map[string]any{"position": position{1, 2}, "health": health{4}}, got)
}
