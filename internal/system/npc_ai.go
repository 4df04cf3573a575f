package system

import (
	"math/rand"
	"time"

	coresys "github.com/MUnique/OpenMU-sub010/internal/core/system"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"
)

// WanderPlanner decides how many steps an idle NPC walks at once.
// *scripting.Engine implements it.
type WanderPlanner interface {
	WanderSteps(roam int) int
}

// NpcWanderSystem sends idle NPCs on short random walks inside their roam
// area. Maps are processed in parallel, at most workers at a time.
// Phase 2 (Update).
type NpcWanderSystem struct {
	maps    *world.Registry
	planner WanderPlanner // nil = up to roam steps
	chance  float64
	workers int
	rng     *rand.Rand // tick goroutine only
	log     *zap.Logger
}

func NewNpcWanderSystem(maps *world.Registry, planner WanderPlanner, chance float64, workers int, seed int64, log *zap.Logger) *NpcWanderSystem {
	if workers <= 0 {
		workers = 1
	}
	return &NpcWanderSystem{
		maps:    maps,
		planner: planner,
		chance:  chance,
		workers: workers,
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
	}
}

func (s *NpcWanderSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *NpcWanderSystem) Name() string { return "npc-wander" }

func (s *NpcWanderSystem) Update(_ time.Duration) {
	if s.chance <= 0 {
		return
	}
	swg := sizedwaitgroup.New(s.workers)
	for _, gm := range s.maps.Maps() {
		// Each job gets its own source; *rand.Rand is not safe for
		// concurrent use.
		rng := rand.New(rand.NewSource(s.rng.Int63()))
		swg.Add()
		go func(gm *world.GameMap, rng *rand.Rand) {
			defer swg.Done()
			s.tickMap(gm, rng)
		}(gm, rng)
	}
	swg.Wait()
}

func (s *NpcWanderSystem) tickMap(gm *world.GameMap, rng *rand.Rand) {
	started := 0
	for _, obj := range gm.Objects() {
		npc, ok := obj.(*world.NPC)
		if !ok || npc.Roam() == 0 || npc.Walker().IsWalking() || !npc.CanWalk() {
			continue
		}
		if rng.Float64() >= s.chance {
			continue
		}
		if s.wander(gm, npc, rng) {
			started++
		}
	}
	if started > 0 {
		s.log.Debug("npcs wandering", zap.Uint16("map", gm.ID()), zap.Int("count", started))
	}
}

// wander walks npc up to n steps in one random heading, stopping at the edge
// of its roam area or the map.
func (s *NpcWanderSystem) wander(gm *world.GameMap, npc *world.NPC, rng *rand.Rand) bool {
	n := int(npc.Roam())
	if s.planner != nil {
		n = s.planner.WanderSteps(n)
	}
	if n <= 0 {
		return false
	}
	dir := world.Direction(rng.Intn(8))
	side := gm.Definition().Side

	cur := npc.Position()
	steps := make([]world.WalkStep, 0, n)
	for i := 0; i < n; i++ {
		nxt, ok := cur.Step(dir, side)
		if !ok || !npc.InRoamArea(nxt) {
			break
		}
		steps = append(steps, world.WalkStep{Dir: dir, To: nxt})
		cur = nxt
	}
	if len(steps) == 0 {
		return false
	}
	npc.Walker().WalkTo(cur, steps)
	return true
}
