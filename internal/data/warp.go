package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WarpDest is a named destination players can warp to.
type WarpDest struct {
	Name  string `yaml:"name"`
	MapID uint16 `yaml:"map_id"`
	X     uint8  `yaml:"x"`
	Y     uint8  `yaml:"y"`
}

type warpListFile struct {
	Warps []WarpDest `yaml:"warps"`
}

// WarpTable holds warp destinations indexed by name.
type WarpTable struct {
	dests map[string]*WarpDest
}

// LoadWarpTable loads warp destinations from a YAML file.
func LoadWarpTable(path string) (*WarpTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read warp_list: %w", err)
	}
	var f warpListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse warp_list: %w", err)
	}
	t := &WarpTable{dests: make(map[string]*WarpDest, len(f.Warps))}
	for i := range f.Warps {
		d := &f.Warps[i]
		t.dests[d.Name] = d
	}
	return t, nil
}

// Get returns a warp destination by name, or nil if not found.
func (t *WarpTable) Get(name string) *WarpDest {
	return t.dests[name]
}

// Count returns the number of loaded destinations.
func (t *WarpTable) Count() int {
	return len(t.dests)
}
