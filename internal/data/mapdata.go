package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/world"
	"gopkg.in/yaml.v3"
)

// MapInfo holds metadata for a single map, loaded from map_list.yaml.
type MapInfo struct {
	MapID    uint16 `yaml:"map_id"`
	Name     string `yaml:"name"`
	Side     int    `yaml:"side"`
	CellSide int    `yaml:"cell_side"` // 0 = server default
	SpawnX   uint8  `yaml:"spawn_x"`
	SpawnY   uint8  `yaml:"spawn_y"`
	DropTTL  int    `yaml:"drop_ttl"` // seconds, 0 = server default, <0 = permanent
}

// MapDefaults fill in fields a map entry leaves unset.
type MapDefaults struct {
	CellSide int
	DropTTL  time.Duration
}

// MapTable provides map metadata lookups. It satisfies world.MapSource.
type MapTable struct {
	maps     map[uint16]*MapInfo
	defaults MapDefaults
}

type mapListFile struct {
	Maps []MapInfo `yaml:"maps"`
}

// LoadMapList loads map metadata from YAML. Entries that cannot form a valid
// grid are rejected here rather than when the map is first used.
func LoadMapList(path string, defaults MapDefaults) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	return parseMapList(raw, defaults)
}

func parseMapList(raw []byte, defaults MapDefaults) (*MapTable, error) {
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	table := &MapTable{
		maps:     make(map[uint16]*MapInfo, len(file.Maps)),
		defaults: defaults,
	}
	for i := range file.Maps {
		info := &file.Maps[i]
		if _, dup := table.maps[info.MapID]; dup {
			return nil, fmt.Errorf("map list: duplicate map %d", info.MapID)
		}
		def := table.definition(info)
		if def.Side <= 0 || def.Side > world.MaxMapSide || def.CellSide <= 0 || def.Side%def.CellSide != 0 {
			return nil, fmt.Errorf("map list: map %d (%s): side %d, cell %d: %w",
				info.MapID, info.Name, def.Side, def.CellSide, world.ErrInvalidGrid)
		}
		if int(def.Spawn.X) >= def.Side || int(def.Spawn.Y) >= def.Side {
			return nil, fmt.Errorf("map list: map %d (%s): spawn %s: %w",
				info.MapID, info.Name, def.Spawn, world.ErrOutOfBounds)
		}
		table.maps[info.MapID] = info
	}
	return table, nil
}

func (t *MapTable) definition(info *MapInfo) world.MapDefinition {
	def := world.MapDefinition{
		ID:       info.MapID,
		Name:     info.Name,
		Side:     info.Side,
		CellSide: info.CellSide,
		Spawn:    world.Point{X: info.SpawnX, Y: info.SpawnY},
		DropTTL:  t.defaults.DropTTL,
	}
	if def.CellSide == 0 {
		def.CellSide = t.defaults.CellSide
	}
	switch {
	case info.DropTTL > 0:
		def.DropTTL = time.Duration(info.DropTTL) * time.Second
	case info.DropTTL < 0:
		def.DropTTL = 0
	}
	return def
}

// Count returns the number of maps loaded.
func (t *MapTable) Count() int {
	return len(t.maps)
}

// GetInfo returns metadata for a map, or nil if not found.
func (t *MapTable) GetInfo(mapID uint16) *MapInfo {
	return t.maps[mapID]
}

// MapDefinition returns the world definition of a map.
func (t *MapTable) MapDefinition(mapID uint16) (world.MapDefinition, bool) {
	info := t.maps[mapID]
	if info == nil {
		return world.MapDefinition{}, false
	}
	return t.definition(info), true
}

// MapIDs returns every map id in ascending order.
func (t *MapTable) MapIDs() []uint16 {
	ids := make([]uint16, 0, len(t.maps))
	for id := range t.maps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
