package system

import (
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
)

// RunFunc is the body of a FuncSystem.
type RunFunc func(w *ecs.World, now, delta time.Duration) error

// FuncSystem adapts a plain function to ecs.System.
type FuncSystem struct {
	ecs.BaseSystem
	fn RunFunc
}

func Func(name string, fn RunFunc) *FuncSystem {
	s := &FuncSystem{fn: fn}
	s.SetName(name)
	return s
}

func (s *FuncSystem) Run(w *ecs.World, now, delta time.Duration) error {
	return s.fn(w, now, delta)
}
