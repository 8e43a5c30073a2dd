package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/funnisimo/gw-ecs/internal/core/schedule"
	"github.com/funnisimo/gw-ecs/internal/core/system"
	"github.com/funnisimo/gw-ecs/internal/scripting"
	"go.uber.org/zap"
)

// Actor is anything that takes turns. Higher speed acts more often.
type Actor struct {
	Name  string
	Speed int
}

type Health struct {
	HP  int
	Max int
}

// Acting marks the entity whose turn it is.
type Acting struct{}

// TurnOrder is the World unique holding the actor schedule.
type TurnOrder struct {
	*schedule.Schedule[ecs.Entity]
	Turns int
}

const (
	turnSet    = "turn"
	baseDelay  = 1000
	channelLog = "combat"
)

var actorNames = []string{"orc", "goblin", "rat", "bat", "kobold", "jackal", "newt", "ant"}

func turnDelay(speed int) int64 {
	return int64(baseDelay / max(speed, 1))
}

// setupDemo registers the demo's components, queue, uniques and systems on w.
// Every tick the default set picks the next actor off the schedule and the
// entity-first turn set lets it act.
func setupDemo(w *ecs.World, rng *rand.Rand, log *zap.Logger) error {
	ecs.RegisterComponent[Acting](w)
	ecs.RegisterComponent[Health](w)
	actors := ecs.RegisterComponent[Actor](w)
	ecs.RegisterQueue[scripting.Message](w)
	order := ecs.SetUnique(w, TurnOrder{Schedule: schedule.New[ecs.Entity]()})

	// Keep the schedule in step with the Actor store.
	actors.Watch(ecs.WatchFuncs[Actor]{
		OnSet: func(e ecs.Entity, a Actor) {
			order.Remove(e)
			order.Add(e, turnDelay(a.Speed))
		},
		OnRemove: func(e ecs.Entity, _ Actor) { order.Remove(e) },
	})

	if err := w.AddEntitySystemSet(turnSet, "act", "resolve"); err != nil {
		return err
	}

	pick := system.Func("pick", func(w *ecs.World, _, _ time.Duration) error {
		e, ok := order.Pop()
		if !ok {
			return nil
		}
		if !w.IsAlive(e) {
			return nil
		}
		order.Turns++
		ecs.Set(w, e, Acting{})
		return nil
	})

	attack := ecs.NewEntitySystem(
		ecs.NewAspect(ecs.TypeOf[Acting](), ecs.TypeOf[Actor](), ecs.TypeOf[Health]()),
		func(w *ecs.World, e ecs.Entity, _, _ time.Duration) error {
			me, _ := ecs.Fetch[Actor](w, e)
			target, ok := pickTarget(w, e, rng)
			if !ok {
				ecs.Push(w, scripting.Message{Channel: channelLog, Text: me.Name + " waits"})
				return nil
			}
			hp, _ := ecs.Update[Health](w, target)
			them, _ := ecs.Fetch[Actor](w, target)
			dmg := 1 + rng.Intn(3)
			hp.HP -= dmg
			text := fmt.Sprintf("%s hits %s for %d", me.Name, them.Name, dmg)
			if hp.HP <= 0 {
				text += fmt.Sprintf(", %s dies", them.Name)
				w.DestroyLater(target)
			}
			ecs.Push(w, scripting.Message{Channel: channelLog, Text: text})
			return nil
		},
	)

	resolve := ecs.NewEntitySystem(
		ecs.NewAspect(ecs.TypeOf[Acting](), ecs.TypeOf[Actor]()),
		func(w *ecs.World, e ecs.Entity, _, _ time.Duration) error {
			ecs.Remove[Acting](w, e)
			a, _ := ecs.Fetch[Actor](w, e)
			order.Remove(e)
			order.Add(e, turnDelay(a.Speed))
			return nil
		},
	)

	regen := system.Interval(ecs.NewEntitySystem(
		ecs.NewAspect(ecs.TypeOf[Health]()),
		func(w *ecs.World, e ecs.Entity, _, _ time.Duration) error {
			if hp, _ := ecs.Fetch[Health](w, e); hp.HP >= hp.Max {
				return nil
			}
			hp, _ := ecs.Update[Health](w, e)
			hp.HP++
			return nil
		},
	), time.Second, false)

	reinforce := system.Delayed(system.Func("reinforcements", func(w *ecs.World, _, _ time.Duration) error {
		spawnActor(w, rng)
		ecs.Push(w, scripting.Message{Channel: channelLog, Text: "reinforcements arrive"})
		return nil
	}), 3*time.Second)

	logMessages := ecs.NewQueueSystem(func(_ *ecs.World, m scripting.Message, _, _ time.Duration) error {
		log.Info(m.Text, zap.String("channel", m.Channel))
		return nil
	})
	logMessages.SetName("messages")

	for _, add := range []struct {
		sys  ecs.System
		opts []ecs.Option
	}{
		{pick, nil},
		{regen, []ecs.Option{ecs.InStep("post-" + ecs.DefaultStep)}},
		{reinforce, nil},
		{logMessages, []ecs.Option{ecs.InStep("post-" + ecs.DefaultStep)}},
		{attack, []ecs.Option{ecs.InSet(turnSet), ecs.InStep("act")}},
		{resolve, []ecs.Option{ecs.InSet(turnSet), ecs.InStep("resolve")}},
	} {
		if err := w.AddSystem(add.sys, add.opts...); err != nil {
			return err
		}
	}
	return nil
}

// spawnActor creates a random actor. The Actor watcher schedules it.
func spawnActor(w *ecs.World, rng *rand.Rand) ecs.Entity {
	hp := 5 + rng.Intn(6)
	return w.Create(
		Health{HP: hp, Max: hp},
		Actor{Name: actorNames[rng.Intn(len(actorNames))], Speed: 5 + rng.Intn(10)},
	)
}

// pickTarget chooses a random other actor with health.
func pickTarget(w *ecs.World, self ecs.Entity, rng *rand.Rand) (ecs.Entity, bool) {
	targets := ecs.NewAspect(ecs.TypeOf[Actor](), ecs.TypeOf[Health]())
	var candidates []ecs.Entity
	for e := range w.Entities() {
		if e != self && targets.Match(w, e, 0) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return ecs.Entity{}, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

