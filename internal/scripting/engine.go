package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM running scripted systems.
// Single-goroutine access only (the tick loop).
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	world *ecs.World // World of the system currently calling into Lua
}

// NewEngine creates a Lua engine and loads every script in scriptsDir, then
// those of its immediate subdirectories in name order. A missing directory
// loads nothing.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.openWorld()

	if scriptsDir == "" {
		return e, nil
	}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	entries, err := os.ReadDir(scriptsDir)
	if err != nil && !os.IsNotExist(err) {
		vm.Close()
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := e.loadDir(filepath.Join(scriptsDir, entry.Name())); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", entry.Name(), err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source in the engine's VM.
func (e *Engine) DoString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

// HasFunction reports whether a global Lua function named fn exists.
func (e *Engine) HasFunction(fn string) bool {
	_, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	return ok
}

// System binds the global Lua function fn as a system. When a global
// <fn>_should_run exists it gates every pass.
func (e *Engine) System(fn string) (ecs.System, error) {
	if !e.HasFunction(fn) {
		return nil, fmt.Errorf("lua function %s not found", fn)
	}
	s := &ScriptSystem{engine: e, fn: fn}
	s.SetName("lua:" + fn)
	if e.HasFunction(fn + "_should_run") {
		s.gate = fn + "_should_run"
	}
	return s, nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// ScriptSystem runs a Lua function once per pass with a context table
// holding tick, now and delta (seconds).
type ScriptSystem struct {
	ecs.BaseSystem
	engine *Engine
	fn     string
	gate   string
}

func (s *ScriptSystem) Function() string { return s.fn }

func (s *ScriptSystem) ShouldRun(w *ecs.World, now, delta time.Duration) bool {
	if !s.BaseSystem.ShouldRun(w, now, delta) {
		return false
	}
	if s.gate == "" {
		return true
	}
	ret, err := s.engine.call(w, s.gate, now, delta)
	if err != nil {
		s.engine.log.Error("lua gate error", zap.String("fn", s.gate), zap.Error(err))
		return false
	}
	return lua.LVAsBool(ret)
}

func (s *ScriptSystem) Run(w *ecs.World, now, delta time.Duration) error {
	if _, err := s.engine.call(w, s.fn, now, delta); err != nil {
		return fmt.Errorf("lua %s: %w", s.fn, err)
	}
	return nil
}

// call invokes fn(ctx) with w bound to the world module and returns its
// first result.
func (e *Engine) call(w *ecs.World, fn string, now, delta time.Duration) (lua.LValue, error) {
	f := e.vm.GetGlobal(fn)
	if f == lua.LNil {
		return lua.LNil, fmt.Errorf("lua function %s not found", fn)
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("tick", lua.LNumber(w.Tick()))
	ctx.RawSetString("now", lua.LNumber(now.Seconds()))
	ctx.RawSetString("delta", lua.LNumber(delta.Seconds()))

	prev := e.world
	e.world = w
	defer func() { e.world = prev }()

	if err := e.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		return lua.LNil, err
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	return ret, nil
}
