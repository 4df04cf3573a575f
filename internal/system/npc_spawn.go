package system

import (
	"errors"
	"math/rand"

	"github.com/MUnique/OpenMU-sub010/internal/data"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// SpawnNPCs places the NPCs of entries on their maps. Each NPC lands within
// RandomX/RandomY of the entry's point, clamped to the map. Entries for
// unknown maps are skipped with a warning; other placement errors are
// collected and returned alongside the number of NPCs placed.
func SpawnNPCs(maps *world.Registry, entries []data.SpawnEntry, delays world.StepDelayProvider, rng *rand.Rand, log *zap.Logger) (int, error) {
	placed := 0
	var errs []error
	for _, e := range entries {
		gm, err := maps.Get(e.MapID)
		if err != nil {
			log.Warn("spawn on unknown map skipped", zap.String("npc", e.Name), zap.Uint16("map", e.MapID))
			continue
		}
		side := gm.Definition().Side
		for i := 0; i < e.Count; i++ {
			at := world.Point{
				X: jitter(e.X, e.RandomX, side, rng),
				Y: jitter(e.Y, e.RandomY, side, rng),
			}
			npc := world.NewNPC(world.NPCConfig{
				TemplateID: e.NpcID,
				Name:       e.Name,
				Spawn:      at,
				Roam:       e.Roam,
				Speed:      e.Speed,
				Delays:     delays,
				Log:        log,
			})
			if err := gm.Add(npc); err != nil {
				errs = append(errs, err)
				continue
			}
			placed++
		}
	}
	log.Info("npcs spawned", zap.Int("count", placed), zap.Int("entries", len(entries)))
	return placed, errors.Join(errs...)
}

func jitter(base, spread uint8, side int, rng *rand.Rand) uint8 {
	v := int(base)
	if spread > 0 {
		v += rng.Intn(2*int(spread)+1) - int(spread)
	}
	if v < 0 {
		v = 0
	}
	if v >= side {
		v = side - 1
	}
	return uint8(v)
}
