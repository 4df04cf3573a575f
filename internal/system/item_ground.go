package system

import (
	"fmt"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	coresys "github.com/MUnique/OpenMU-sub010/internal/core/system"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// DropSystem places items and money on the ground and removes them once their
// time is up. Phase 3 (PostUpdate).
type DropSystem struct {
	maps *world.Registry
	bus  *event.Bus
	now  func() time.Time
	log  *zap.Logger
}

func NewDropSystem(maps *world.Registry, bus *event.Bus, log *zap.Logger) *DropSystem {
	return &DropSystem{maps: maps, bus: bus, now: time.Now, log: log}
}

func (s *DropSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *DropSystem) Name() string { return "drops" }

// DropItem puts count of itemID on the ground at pos. Players in sight see it
// as a fresh drop.
func (s *DropSystem) DropItem(gm *world.GameMap, pos world.Point, itemID, count int32, owner int64) (*world.DroppedItem, error) {
	d := world.NewDroppedItem(itemID, count, pos, gm.Definition().DropTTL, s.now())
	d.Owner = owner
	if err := gm.Add(d); err != nil {
		return nil, fmt.Errorf("drop item %d: %w", itemID, err)
	}
	s.log.Debug("item dropped",
		zap.Uint16("map", gm.ID()),
		zap.Int32("item_id", itemID),
		zap.Int32("count", count),
		zap.Stringer("pos", pos),
	)
	return d, nil
}

// DropMoney puts amount of money on the ground at pos.
func (s *DropSystem) DropMoney(gm *world.GameMap, pos world.Point, amount uint32) (*world.DroppedMoney, error) {
	d := world.NewDroppedMoney(amount, pos, gm.Definition().DropTTL, s.now())
	if err := gm.Add(d); err != nil {
		return nil, fmt.Errorf("drop money: %w", err)
	}
	return d, nil
}

// PickUp removes a drop from the ground. Returns false if someone else got
// there first.
func (s *DropSystem) PickUp(gm *world.GameMap, drop world.Locateable) bool {
	if !drop.Kind().IsDrop() {
		return false
	}
	return gm.Remove(drop)
}

func (s *DropSystem) Update(_ time.Duration) {
	now := s.now()
	for _, gm := range s.maps.Maps() {
		expired := 0
		for _, obj := range gm.Objects() {
			e, ok := obj.(world.Expirable)
			if !ok || !world.Expired(e, now) {
				continue
			}
			id := obj.ID()
			if !gm.Remove(obj) {
				continue
			}
			expired++
			if s.bus != nil {
				event.Emit(s.bus, event.DropExpired{MapID: gm.ID(), ObjectID: uint16(id), Object: obj})
			}
		}
		if expired > 0 {
			s.log.Debug("drops expired", zap.Uint16("map", gm.ID()), zap.Int("count", expired))
		}
	}
}
