package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the battle.* table into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: the battle global is defined with log, random, and
// effectiveness functions.
func (a *ScriptAdvisor) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(a.luaLog))
	L.SetField(mod, "random", L.NewFunction(a.luaRandom))
	L.SetField(mod, "effectiveness", L.NewFunction(a.luaEffectiveness))
	L.SetGlobal("battle", mod)
}

// battle.log(msg) writes msg to the advisor logger at info level.
func (a *ScriptAdvisor) luaLog(L *lua.LState) int {
	a.logger.Info("lua advisor", zap.String("script", a.path), zap.String("msg", L.CheckString(1)))
	return 0
}

// battle.random(n) returns a uniform integer in [1, n].
func (a *ScriptAdvisor) luaRandom(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 1 {
		L.ArgError(1, "n must be positive")
		return 0
	}
	L.Push(lua.LNumber(a.roller.Pick("script random", n).Value + 1))
	return 1
}

// battle.effectiveness(move_type, defending_type...) returns the type multiplier.
func (a *ScriptAdvisor) luaEffectiveness(L *lua.LState) int {
	atk := L.CheckString(1)
	defending := make([]string, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		defending = append(defending, L.CheckString(i))
	}
	L.Push(lua.LNumber(a.chart.Multiplier(atk, defending)))
	return 1
}
