package system

import (
	"fmt"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
)

// Runner executes a World's system sets in a fixed order each tick.
type Runner struct {
	world *ecs.World
	sets  []string
}

// NewRunner drives w. With no sets given it runs ecs.DefaultSet.
func NewRunner(w *ecs.World, sets ...string) *Runner {
	if len(sets) == 0 {
		sets = []string{ecs.DefaultSet}
	}
	return &Runner{world: w, sets: sets}
}

func (r *Runner) World() *ecs.World { return r.world }

// Register appends a set to the per-tick order. The set must exist.
func (r *Runner) Register(set string) error {
	if _, err := r.world.SystemSet(set); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	r.sets = append(r.sets, set)
	return nil
}

// Tick advances World time by dt and runs every registered set once. The
// first failing set stops the tick.
func (r *Runner) Tick(dt time.Duration) error {
	r.world.AddTime(dt)
	for _, set := range r.sets {
		if err := r.world.RunSystemSet(set); err != nil {
			return err
		}
	}
	return nil
}

// TickSet advances time and runs a single set, e.g. a high-frequency input
// set polled between full ticks.
func (r *Runner) TickSet(set string, dt time.Duration) error {
	r.world.AddTime(dt)
	return r.world.RunSystemSet(set)
}
