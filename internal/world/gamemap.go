package world

import (
	"fmt"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// MapDefinition is the static description of a map.
type MapDefinition struct {
	ID       uint16
	Name     string
	Side     int
	CellSide int
	Spawn    Point
	DropTTL  time.Duration
}

// GameMap is one live map: the AOI manager plus id allocation and the
// id → object table.
type GameMap struct {
	def    MapDefinition
	aoi    *Manager
	actors *IDPool
	drops  *IDPool
	bus    *event.Bus
	log    *zap.Logger

	mu      deadlock.RWMutex
	objects map[ObjectID]Locateable
}

// NewGameMap fails when the definition describes an invalid grid. bus may
// be nil.
func NewGameMap(def MapDefinition, bus *event.Bus, log *zap.Logger) (*GameMap, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Uint16("map", def.ID))
	aoi, err := NewManager(def.Side, def.CellSide, log)
	if err != nil {
		return nil, fmt.Errorf("map %d (%s): %w", def.ID, def.Name, err)
	}
	if !aoi.Grid().Contains(def.Spawn) {
		return nil, fmt.Errorf("map %d (%s): spawn %s: %w", def.ID, def.Name, def.Spawn, ErrOutOfBounds)
	}
	return &GameMap{
		def:     def,
		aoi:     aoi,
		actors:  NewIDPool(ActorIDMin, ActorIDMax),
		drops:   NewIDPool(DropIDMin, DropIDMax),
		bus:     bus,
		log:     log,
		objects: make(map[ObjectID]Locateable, 256),
	}, nil
}

func (gm *GameMap) ID() uint16                { return gm.def.ID }
func (gm *GameMap) Name() string              { return gm.def.Name }
func (gm *GameMap) Definition() MapDefinition { return gm.def }
func (gm *GameMap) AOI() *Manager             { return gm.aoi }

// Contains reports whether p is a tile of this map.
func (gm *GameMap) Contains(p Point) bool { return gm.aoi.Grid().Contains(p) }

func (gm *GameMap) poolFor(k Kind) *IDPool {
	if k.IsDrop() {
		return gm.drops
	}
	return gm.actors
}

// Add assigns obj an id from the range matching its kind and places it at
// its current position.
func (gm *GameMap) Add(obj Locateable) error {
	p := obj.placement()
	p.mu.Lock()
	if p.gm != nil {
		p.mu.Unlock()
		return ErrAlreadyPlaced
	}
	p.gm = gm
	p.mu.Unlock()

	pool := gm.poolFor(obj.Kind())
	id, ok := pool.Acquire()
	if !ok {
		p.detach()
		return fmt.Errorf("map %d: %s: %w", gm.def.ID, obj.Kind(), ErrNoFreeID)
	}
	p.attach(id, gm)

	gm.mu.Lock()
	gm.objects[id] = obj
	gm.mu.Unlock()

	if err := gm.aoi.AddObject(obj); err != nil {
		gm.mu.Lock()
		delete(gm.objects, id)
		gm.mu.Unlock()
		pool.Release(id)
		p.detach()
		return fmt.Errorf("map %d: %w", gm.def.ID, err)
	}

	pos := obj.Position()
	if gm.bus != nil {
		event.Emit(gm.bus, event.ObjectPlaced{
			MapID: gm.def.ID, ObjectID: uint16(id), Kind: obj.Kind().String(),
			X: pos.X, Y: pos.Y, Object: obj,
		})
	}
	gm.log.Debug("object placed",
		zap.Uint16("id", uint16(id)),
		zap.Stringer("kind", obj.Kind()),
		zap.Stringer("pos", pos),
	)
	return nil
}

// Remove takes obj off the map and returns its id to the pool. Returns false
// if obj is not on this map, which happens benignly when two teardown paths
// race.
func (gm *GameMap) Remove(obj Locateable) bool {
	p := obj.placement()
	if p.Map() != gm {
		return false
	}
	if w, ok := obj.(interface{ Walker() *Walker }); ok {
		if wk := w.Walker(); wk != nil {
			wk.Stop()
		}
	}

	lock := p.MoveLock()
	lock.Lock()
	removed := gm.aoi.RemoveObject(obj)
	lock.Unlock()
	if !removed {
		return false
	}

	id := p.ID()
	pos := obj.Position()
	gm.mu.Lock()
	if gm.objects[id] == obj {
		delete(gm.objects, id)
	}
	gm.mu.Unlock()
	gm.poolFor(obj.Kind()).Release(id)
	p.detach()

	if gm.bus != nil {
		event.Emit(gm.bus, event.ObjectRemoved{
			MapID: gm.def.ID, ObjectID: uint16(id), Kind: obj.Kind().String(),
			X: pos.X, Y: pos.Y, Object: obj,
		})
	}
	gm.log.Debug("object removed",
		zap.Uint16("id", uint16(id)),
		zap.Stringer("kind", obj.Kind()),
	)
	return true
}

// Move moves obj to target using obj's own move lock.
func (gm *GameMap) Move(obj Locateable, target Point, kind MoveKind) bool {
	p := obj.placement()
	if p.Map() != gm {
		return false
	}
	_, ok := gm.aoi.MoveObject(obj, target, p.MoveLock(), kind)
	return ok
}

// walkStep writes one walk step and indexes it while holding obj's move lock,
// so the step serializes with teleports and removals of the same object.
// wanted is checked once the lock is held; a cancelled step changes nothing.
func (gm *GameMap) walkStep(obj Walkable, st WalkStep, wanted func() bool) bool {
	p := obj.placement()
	lock := p.MoveLock()
	lock.Lock()
	defer lock.Unlock()
	if p.Map() != gm || !wanted() {
		return false
	}
	obj.SetDirection(st.Dir)
	obj.SetPosition(st.To)
	_, ok := gm.aoi.MoveObject(obj, st.To, heldLock{}, MoveWalk)
	return ok
}

// heldLock stands in for a move lock the caller already holds.
type heldLock struct{}

func (heldLock) Lock()   {}
func (heldLock) Unlock() {}

// Respawn removes and re-adds obj in the AOI manager, keeping its id. All
// watch-sets relative to obj are recomputed, e.g. after a visibility change.
func (gm *GameMap) Respawn(obj Locateable) bool {
	p := obj.placement()
	if p.Map() != gm {
		return false
	}
	lock := p.MoveLock()
	lock.Lock()
	defer lock.Unlock()
	if !gm.aoi.RemoveObject(obj) {
		return false
	}
	if err := gm.aoi.AddObject(obj); err != nil {
		gm.log.Warn("respawn failed", zap.Uint16("id", uint16(p.ID())), zap.Error(err))
		return false
	}
	return true
}

// GetInRange returns the objects within Euclidean distance r of p.
func (gm *GameMap) GetInRange(p Point, r uint8) []Locateable {
	return gm.aoi.GetInRange(p, r)
}

// GetObject returns the object placed under id, or nil.
func (gm *GameMap) GetObject(id ObjectID) Locateable {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.objects[id]
}

// Objects returns a snapshot of every placed object.
func (gm *GameMap) Objects() []Locateable {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	out := make([]Locateable, 0, len(gm.objects))
	for _, o := range gm.objects {
		out = append(out, o)
	}
	return out
}

func (gm *GameMap) ObjectCount() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.objects)
}

// Players returns a snapshot of the players on this map.
func (gm *GameMap) Players() []*Player {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	var out []*Player
	for _, o := range gm.objects {
		if pl, ok := o.(*Player); ok {
			out = append(out, pl)
		}
	}
	return out
}

// Close stops every walker on the map. Objects stay placed.
func (gm *GameMap) Close() {
	for _, o := range gm.Objects() {
		if w, ok := o.(interface{ Walker() *Walker }); ok {
			if wk := w.Walker(); wk != nil {
				wk.Stop()
			}
		}
	}
}
