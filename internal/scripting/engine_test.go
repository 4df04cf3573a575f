package scripting

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, script string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "core"), 0o755); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "core", "movement.lua"), []byte(script), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e
}

const movementScript = `
function calc_step_delay(kind, speed, base_ms)
  if kind == "npc" then
    return base_ms * 2
  end
  return base_ms - speed
end

function wander_steps(roam)
  return roam
end
`

func TestCalcStepDelay(t *testing.T) {
	e := newTestEngine(t, movementScript)
	if ms, ok := e.CalcStepDelay("player", 100, 500); !ok || ms != 400 {
		t.Fatalf("player = %d, %v", ms, ok)
	}
	if ms, ok := e.CalcStepDelay("npc", 0, 500); !ok || ms != 1000 {
		t.Fatalf("npc = %d, %v", ms, ok)
	}
	if n := e.WanderSteps(3); n != 3 {
		t.Fatalf("wander steps = %d", n)
	}
}

func TestCalcStepDelayMissingScript(t *testing.T) {
	e := newTestEngine(t, "")
	if _, ok := e.CalcStepDelay("player", 0, 500); ok {
		t.Fatal("missing function reported ok")
	}
	if e.HasFunc("calc_step_delay") {
		t.Fatal("HasFunc true without script")
	}
}

func TestCalcStepDelayScriptError(t *testing.T) {
	e := newTestEngine(t, `function calc_step_delay(kind, speed, base_ms) error("broken") end`)
	if _, ok := e.CalcStepDelay("player", 0, 500); ok {
		t.Fatal("failing script reported ok")
	}
}

func TestLoadBrokenScript(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "core"), 0o755)
	os.WriteFile(filepath.Join(dir, "core", "bad.lua"), []byte("function ("), 0o644)
	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("syntax error accepted")
	}
}

func TestStepDelaysProvider(t *testing.T) {
	player := world.NewPlayer(world.PlayerConfig{Name: "p", Speed: 100})
	npc := world.NewNPC(world.NPCConfig{Name: "n"})

	plain := &StepDelays{Base: 500 * time.Millisecond, Min: 100 * time.Millisecond}
	if d := plain.StepDelay(player); d != 250*time.Millisecond {
		t.Fatalf("plain player = %v", d)
	}
	if d := plain.StepDelay(npc); d != 500*time.Millisecond {
		t.Fatalf("plain npc = %v", d)
	}

	scripted := &StepDelays{Engine: newTestEngine(t, movementScript), Base: 500 * time.Millisecond, Min: 450 * time.Millisecond}
	if d := scripted.StepDelay(player); d != 450*time.Millisecond {
		t.Fatalf("scripted player clamped = %v", d)
	}
	if d := scripted.StepDelay(npc); d != time.Second {
		t.Fatalf("scripted npc = %v", d)
	}
}

func TestEngineConcurrentCalls(t *testing.T) {
	e := newTestEngine(t, movementScript)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(speed int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if ms, ok := e.CalcStepDelay("player", speed, 500); !ok || ms != 500-speed {
					t.Errorf("speed %d: %d, %v", speed, ms, ok)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
