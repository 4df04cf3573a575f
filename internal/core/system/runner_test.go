package system

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recSystem struct {
	name  string
	phase Phase
	log   *[]string
	panic bool
}

func (s *recSystem) Phase() Phase { return s.phase }
func (s *recSystem) Name() string { return s.name }

func (s *recSystem) Update(time.Duration) {
	*s.log = append(*s.log, s.name)
	if s.panic {
		panic("boom")
	}
}

func TestRunnerPhaseOrder(t *testing.T) {
	var order []string
	r := NewRunner(zap.NewNop())
	r.Register(&recSystem{name: "persist", phase: PhasePersist, log: &order})
	r.Register(&recSystem{name: "input", phase: PhaseInput, log: &order})
	r.Register(&recSystem{name: "update-a", phase: PhaseUpdate, log: &order})
	r.Register(&recSystem{name: "update-b", phase: PhaseUpdate, log: &order})

	r.Tick(time.Millisecond)

	want := []string{"input", "update-a", "update-b", "persist"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunnerTickPhase(t *testing.T) {
	var order []string
	r := NewRunner(zap.NewNop())
	r.Register(&recSystem{name: "input", phase: PhaseInput, log: &order})
	r.Register(&recSystem{name: "update", phase: PhaseUpdate, log: &order})

	r.TickPhase(PhaseInput, time.Millisecond)
	if len(order) != 1 || order[0] != "input" {
		t.Fatalf("order = %v", order)
	}
}

func TestRunnerRecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var order []string
	r := NewRunner(zap.New(core))
	r.Register(&recSystem{name: "bad", phase: PhaseUpdate, log: &order, panic: true})
	r.Register(&recSystem{name: "good", phase: PhaseCleanup, log: &order})

	r.Tick(time.Millisecond)

	if len(order) != 2 || order[1] != "good" {
		t.Fatalf("order = %v, want bad then good", order)
	}
	entries := logs.FilterMessage("system panicked").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d panics, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["system"]; got != "bad" {
		t.Fatalf("system field = %v", got)
	}
}
