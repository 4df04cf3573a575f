package world

import (
	"fmt"
	"sort"

	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// MapSource provides the static map definitions.
type MapSource interface {
	MapDefinition(id uint16) (MapDefinition, bool)
	MapIDs() []uint16
}

// Registry owns the live maps. Maps are created on first use and live until
// the registry is closed.
type Registry struct {
	src MapSource
	bus *event.Bus
	log *zap.Logger

	mu   deadlock.RWMutex
	maps map[uint16]*GameMap
}

func NewRegistry(src MapSource, bus *event.Bus, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		src:  src,
		bus:  bus,
		log:  log,
		maps: make(map[uint16]*GameMap),
	}
}

// Get returns map id, creating it from its definition on first use.
func (r *Registry) Get(id uint16) (*GameMap, error) {
	r.mu.RLock()
	gm := r.maps[id]
	r.mu.RUnlock()
	if gm != nil {
		return gm, nil
	}

	def, ok := r.src.MapDefinition(id)
	if !ok {
		return nil, fmt.Errorf("map %d: %w", id, ErrUnknownMap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gm := r.maps[id]; gm != nil {
		return gm, nil
	}
	gm, err := NewGameMap(def, r.bus, r.log)
	if err != nil {
		return nil, err
	}
	r.maps[id] = gm
	r.log.Info("map created", zap.Uint16("map", id), zap.String("name", def.Name))
	return gm, nil
}

// Lookup returns map id if it has been created, or nil.
func (r *Registry) Lookup(id uint16) *GameMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maps[id]
}

// LoadAll creates every defined map.
func (r *Registry) LoadAll() error {
	for _, id := range r.src.MapIDs() {
		if _, err := r.Get(id); err != nil {
			return err
		}
	}
	return nil
}

// Maps returns the live maps ordered by id.
func (r *Registry) Maps() []*GameMap {
	r.mu.RLock()
	out := make([]*GameMap, 0, len(r.maps))
	for _, gm := range r.maps {
		out = append(out, gm)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close stops every walker on every map.
func (r *Registry) Close() {
	for _, gm := range r.Maps() {
		gm.Close()
	}
}
