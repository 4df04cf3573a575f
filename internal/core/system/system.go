package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session command queues
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: world logic (wandering)
	PhasePostUpdate              // 3: drop expiry
	PhaseOutput                  // 4: flush outbound
	PhasePersist                 // 5: position saves
	PhaseCleanup                 // 6: teardown
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Named systems show up by name in runner logs.
type Named interface {
	Name() string
}
