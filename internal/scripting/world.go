package scripting

import (
	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Message is what scripts post with world.push. Register its queue with
// ecs.RegisterQueue[scripting.Message] before scripts push.
type Message struct {
	Channel string
	Text    string
}

// openWorld installs the global `world` table. Its functions act on the
// World of the system currently running and raise a Lua error outside one.
func (e *Engine) openWorld() {
	mod := e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"tick":          e.luaTick,
		"alive":         e.luaAlive,
		"create":        e.luaCreate,
		"destroy_later": e.luaDestroyLater,
		"push":          e.luaPush,
		"log":           e.luaLog,
	})
	e.vm.SetGlobal("world", mod)
}

func (e *Engine) bound(L *lua.LState) *ecs.World {
	if e.world == nil {
		L.RaiseError("world is only available inside a running system")
	}
	return e.world
}

// world.tick() -> current World tick
func (e *Engine) luaTick(L *lua.LState) int {
	L.Push(lua.LNumber(e.bound(L).Tick()))
	return 1
}

// world.alive() -> number of live entities
func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LNumber(e.bound(L).Pool().Count()))
	return 1
}

// world.create() -> index, generation
func (e *Engine) luaCreate(L *lua.LState) int {
	ent := e.bound(L).Create()
	L.Push(lua.LNumber(ent.Index))
	L.Push(lua.LNumber(ent.Generation))
	return 2
}

// world.destroy_later(index, generation)
func (e *Engine) luaDestroyLater(L *lua.LState) int {
	w := e.bound(L)
	ent := ecs.Entity{Index: int32(L.CheckInt(1)), Generation: int32(L.CheckInt(2))}
	w.DestroyLater(ent)
	return 0
}

// world.push(channel, text)
func (e *Engine) luaPush(L *lua.LState) int {
	w := e.bound(L)
	msg := Message{Channel: L.CheckString(1), Text: L.CheckString(2)}
	q, err := ecs.Queue[Message](w)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	q.Push(msg)
	return 0
}

// world.log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
