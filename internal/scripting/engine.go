package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/world"
	"github.com/sasha-s/go-deadlock"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. An LState is not goroutine safe and
// walkers query it from their own goroutines, so every call holds mu.
type Engine struct {
	mu  deadlock.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Core scripts first, then feature scripts.
	for _, sub := range []string{"core", "world", "ai"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
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

// HasFunc reports whether a global Lua function is defined.
func (e *Engine) HasFunc(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal(name).Type() == lua.LTFunction
}

// CalcStepDelay calls Lua calc_step_delay(kind, speed, base_ms) and returns
// the delay in milliseconds. ok is false when the script is missing or fails.
func (e *Engine) CalcStepDelay(kind string, speed, baseMS int) (ms int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_step_delay")
	if fn == lua.LNil {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(kind), lua.LNumber(speed), lua.LNumber(baseMS)); err != nil {
		e.log.Error("lua calc_step_delay error", zap.Error(err))
		return 0, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, isNum := result.(lua.LNumber)
	if !isNum {
		e.log.Error("lua calc_step_delay returned non-number", zap.String("type", result.Type().String()))
		return 0, false
	}
	return int(n), true
}

// WanderSteps calls Lua wander_steps(roam) for the number of steps an idle
// NPC walks at once.
func (e *Engine) WanderSteps(roam int) int {
	return e.callIntFunc("wander_steps", roam)
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// Speeder is implemented by actors with a move speed bonus.
type Speeder interface {
	MoveSpeed() int
}

// StepDelays is the step delay provider used by walkers. The script decides
// the delay when it defines calc_step_delay; otherwise the base delay is
// scaled by the actor's speed bonus. The result never drops below Min.
type StepDelays struct {
	Engine *Engine // may be nil
	Base   time.Duration
	Min    time.Duration
}

var _ world.StepDelayProvider = (*StepDelays)(nil)

func (s *StepDelays) StepDelay(w world.Walkable) time.Duration {
	speed := 0
	if sp, ok := w.(Speeder); ok {
		speed = sp.MoveSpeed()
	}

	d := time.Duration(0)
	if s.Engine != nil {
		if ms, ok := s.Engine.CalcStepDelay(w.Kind().String(), speed, int(s.Base/time.Millisecond)); ok {
			d = time.Duration(ms) * time.Millisecond
		}
	}
	if d == 0 {
		// +100% speed halves the delay.
		d = s.Base * 100 / time.Duration(100+max(speed, -50))
	}
	if d < s.Min {
		d = s.Min
	}
	return d
}
