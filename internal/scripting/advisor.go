package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

// HookName is the global Lua function a script must define.
const HookName = "choose_move"

// ErrNoHook is returned when the loaded scripts do not define HookName.
var ErrNoHook = errors.New("scripting: choose_move is not defined")

// ErrNoMove is returned when choose_move returns without naming a move.
var ErrNoMove = errors.New("scripting: choose_move returned no move")

// ScriptAdvisor is a battle.Advisor backed by a sandboxed Lua VM.
//
// The VM is single-threaded; Advise calls are serialized by mu.
type ScriptAdvisor struct {
	mu        sync.Mutex
	L         *lua.LState
	cancel    context.CancelFunc
	path      string
	instLimit int
	roller    *dice.Roller
	chart     *typechart.Chart
	logger    *zap.Logger
}

// NewScriptAdvisor loads path into a fresh sandbox. path may name a single
// .lua file or a directory whose *.lua files are run in lexicographic order.
//
// Precondition: roller, chart, and logger must be non-nil; instLimit >= 0.
// Postcondition: returns a ready advisor, or an error if a script fails to
// load or choose_move is undefined.
func NewScriptAdvisor(path string, instLimit int, roller *dice.Roller, chart *typechart.Chart, logger *zap.Logger) (*ScriptAdvisor, error) {
	files, err := luaFiles(path)
	if err != nil {
		return nil, err
	}

	a := &ScriptAdvisor{
		path:      path,
		instLimit: limitOrDefault(instLimit),
		roller:    roller,
		chart:     chart,
		logger:    logger,
	}
	L, cancel := NewSandboxedState(a.instLimit)
	a.RegisterModules(L)

	for _, f := range files {
		if err := L.DoFile(f); err != nil {
			cancel()
			L.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", f, err)
		}
	}
	if _, ok := L.GetGlobal(HookName).(*lua.LFunction); !ok {
		cancel()
		L.Close()
		return nil, fmt.Errorf("%w in %q", ErrNoHook, path)
	}

	a.L, a.cancel = L, cancel
	return a, nil
}

func luaFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Advise implements battle.Advisor by calling choose_move(request).
//
// The script may return a move name string or a table with move, strategy,
// and commentary fields. Each call gets a fresh instruction budget and stops
// early when ctx is done.
func (a *ScriptAdvisor) Advise(ctx context.Context, req battle.AdviceRequest) (battle.Advice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.L == nil {
		return battle.Advice{}, errors.New("scripting: advisor is closed")
	}

	callCtx, cancel := newCountingContext(ctx, a.instLimit)
	defer cancel()
	a.L.SetContext(callCtx)

	if err := a.L.CallByParam(lua.P{
		Fn:      a.L.GetGlobal(HookName),
		NRet:    1,
		Protect: true,
	}, requestTable(a.L, req)); err != nil {
		a.logger.Warn("scripting: Lua runtime error",
			zap.String("script", a.path),
			zap.String("hook", HookName),
			zap.Error(err),
		)
		return battle.Advice{}, fmt.Errorf("scripting: %s: %w", HookName, err)
	}
	ret := a.L.Get(-1)
	a.L.Pop(1)

	advice := adviceFrom(ret)
	if advice.Move == "" {
		return battle.Advice{}, ErrNoMove
	}
	return advice, nil
}

// Close releases the VM.
func (a *ScriptAdvisor) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.L == nil {
		return
	}
	a.cancel()
	a.L.Close()
	a.L = nil
}

func adviceFrom(v lua.LValue) battle.Advice {
	switch t := v.(type) {
	case lua.LString:
		return battle.Advice{Move: string(t)}
	case *lua.LTable:
		return battle.Advice{
			Move:       stringField(t, "move"),
			Strategy:   stringField(t, "strategy"),
			Commentary: stringField(t, "commentary"),
		}
	}
	return battle.Advice{}
}

func stringField(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func requestTable(L *lua.LState, req battle.AdviceRequest) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("turn", lua.LNumber(req.Turn))
	t.RawSetString("attacker", snapshotTable(L, req.Attacker))
	t.RawSetString("defender", snapshotTable(L, req.Defender))
	opts := L.NewTable()
	for _, o := range req.Options {
		ot := L.NewTable()
		ot.RawSetString("name", lua.LString(o.Move.Name))
		ot.RawSetString("power", lua.LNumber(o.Move.Power))
		ot.RawSetString("type", lua.LString(o.Move.Type))
		ot.RawSetString("class", lua.LString(o.Move.DamageClass))
		ot.RawSetString("effectiveness", lua.LNumber(o.Effectiveness))
		opts.Append(ot)
	}
	t.RawSetString("options", opts)
	return t
}

func snapshotTable(L *lua.LState, s battle.Snapshot) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(s.Name))
	t.RawSetString("hp", lua.LNumber(s.HP))
	t.RawSetString("max_hp", lua.LNumber(s.MaxHP))
	t.RawSetString("ap", lua.LNumber(s.AP))
	t.RawSetString("status", lua.LString(s.Status.String()))
	types := L.NewTable()
	for _, typ := range s.Types {
		types.Append(lua.LString(typ))
	}
	t.RawSetString("types", types)
	return t
}
