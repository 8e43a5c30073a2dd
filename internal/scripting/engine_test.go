package scripting

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, src string) *Engine {
	t.Helper()
	e, err := NewEngine("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	require.NoError(t, e.DoString(src))
	return e
}

func TestScriptSystemRunsWithContext(t *testing.T) {
	e := newEngine(t, `
seen = {}
function spawn(ctx)
  table.insert(seen, ctx.delta)
  world.create()
  world.push("log", "tick " .. ctx.tick)
end
`)
	w := ecs.NewWorld()
	q := ecs.RegisterQueue[Message](w)
	r := q.Reader(false)

	sys, err := e.System("spawn")
	require.NoError(t, err)
	require.NoError(t, w.AddSystem(sys))

	w.AddTime(500 * time.Millisecond)
	require.NoError(t, w.RunSystems())
	w.AddTime(250 * time.Millisecond)
	require.NoError(t, w.RunSystems())

	assert.Equal(t, 2, w.Pool().Count())
	assert.Equal(t, []Message{{Channel: "log", Text: "tick 1"}, {Channel: "log", Text: "tick 3"}}, slices.Collect(r.All()))
	require.NoError(t, e.DoString(`assert(seen[1] == 0.5 and seen[2] == 0.25)`))
}

func TestScriptGate(t *testing.T) {
	e := newEngine(t, `
runs = 0
function regen(ctx) runs = runs + 1 end
asked = 0
function regen_should_run(ctx)
  asked = asked + 1
  return asked % 2 == 0
end
`)
	w := ecs.NewWorld()
	sys, err := e.System("regen")
	require.NoError(t, err)
	require.NoError(t, w.AddSystem(sys))
	for i := 0; i < 4; i++ {
		require.NoError(t, w.RunSystems())
	}
	require.NoError(t, e.DoString(`assert(runs == 2, "runs=" .. runs)`))
}

func TestScriptDestroyLater(t *testing.T) {
	e := newEngine(t, `
function reap(ctx)
  world.destroy_later(victim_index, victim_gen)
  alive_during = world.alive()
end
`)
	w := ecs.NewWorld()
	victim := w.Create()
	require.NoError(t, e.DoString(`victim_index = 0 victim_gen = 1`))
	sys, err := e.System("reap")
	require.NoError(t, err)
	require.NoError(t, w.AddSystem(sys))
	require.NoError(t, w.RunSystems())

	assert.False(t, w.IsAlive(victim))
	require.NoError(t, e.DoString(`assert(alive_during == 1)`))
}

func TestScriptErrors(t *testing.T) {
	e := newEngine(t, `
function broken(ctx) error("kaboom") end
function pusher(ctx) world.push("a", "b") end
`)
	_, err := e.System("nope")
	assert.Error(t, err)

	w := ecs.NewWorld()
	broken, err := e.System("broken")
	require.NoError(t, err)
	require.NoError(t, w.AddSystem(broken))
	err = w.RunSystems()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system lua:broken")
	assert.Contains(t, err.Error(), "kaboom")

	w2 := ecs.NewWorld()
	pusher, err := e.System("pusher")
	require.NoError(t, err)
	require.NoError(t, w2.AddSystem(pusher))
	assert.ErrorContains(t, w2.RunSystems(), "queue type not registered")

	assert.Error(t, e.DoString(`world.tick()`), "world is unbound outside a system")
	assert.Error(t, e.DoString(`this is not lua`))
}

func TestNewEngineLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`function from_root(ctx) end`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ai"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai", "b.lua"), []byte(`function from_sub(ctx) end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))

	e, err := NewEngine(dir, nil)
	require.NoError(t, err)
	defer e.Close()
	assert.True(t, e.HasFunction("from_root"))
	assert.True(t, e.HasFunction("from_sub"))

	_, err = NewEngine(filepath.Join(dir, "missing"), nil)
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte(`function (`), 0o644))
	_, err = NewEngine(dir, nil)
	assert.Error(t, err)
}
