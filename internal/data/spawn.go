package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines where and how many NPCs to spawn.
type SpawnEntry struct {
	NpcID   int32  `yaml:"npc_id"`
	Name    string `yaml:"name"`
	MapID   uint16 `yaml:"map_id"`
	X       uint8  `yaml:"x"`
	Y       uint8  `yaml:"y"`
	Count   int    `yaml:"count"`
	RandomX uint8  `yaml:"randomx"`
	RandomY uint8  `yaml:"randomy"`
	Roam    uint8  `yaml:"roam"`  // wander radius around the spawn point
	Speed   int    `yaml:"speed"` // move speed bonus in percent
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	for i := range f.Spawns {
		if f.Spawns[i].Count <= 0 {
			f.Spawns[i].Count = 1
		}
	}
	return f.Spawns, nil
}
