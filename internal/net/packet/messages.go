package packet

import (
	"encoding/json"

	"github.com/MUnique/OpenMU-sub010/internal/world"
)

// Message types sent to clients.
const (
	TypeWelcome = "welcome"
	TypeSelf    = "self"
	TypePlayers = "players"
	TypeNPCs    = "npcs"
	TypeItems   = "items"
	TypeMoney   = "money"
	TypeOut     = "out"
	TypeGone    = "gone"
	TypeMoved   = "moved"
	TypeError   = "error"
)

// ObjectInfo describes one object as the client sees it.
type ObjectInfo struct {
	ID   uint16 `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	X    uint8  `json:"x"`
	Y    uint8  `json:"y"`
	Dir  uint8  `json:"dir"`
}

// MapInfo tells a client which map it is on.
type MapInfo struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
	Side int    `json:"side"`
}

// Message is the envelope of every server message. Fields not used by a
// type are omitted.
type Message struct {
	Type    string       `json:"type"`
	Fresh   bool         `json:"fresh,omitempty"`
	Walk    bool         `json:"walk,omitempty"`
	Objects []ObjectInfo `json:"objects,omitempty"`
	IDs     []uint16     `json:"ids,omitempty"`
	Self    *ObjectInfo  `json:"self,omitempty"`
	Map     *MapInfo     `json:"map,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Describe snapshots obj for the wire.
func Describe(obj world.Locateable) ObjectInfo {
	return DescribeSighting(world.Sight(obj))
}

// DescribeSighting converts an already captured sighting.
func DescribeSighting(s world.Sighting) ObjectInfo {
	return ObjectInfo{
		ID:   uint16(s.ID),
		Kind: s.Kind.String(),
		Name: s.Name,
		X:    s.Position.X,
		Y:    s.Position.Y,
		Dir:  uint8(s.Direction),
	}
}

func DescribeAll(seen []world.Sighting) []ObjectInfo {
	out := make([]ObjectInfo, len(seen))
	for i, s := range seen {
		out[i] = DescribeSighting(s)
	}
	return out
}

func IDs(seen []world.Sighting) []uint16 {
	out := make([]uint16, len(seen))
	for i, s := range seen {
		out[i] = uint16(s.ID)
	}
	return out
}

// Welcome tells the client which map it is about to be placed on.
func Welcome(gm *world.GameMap) Message {
	def := gm.Definition()
	return Message{
		Type: TypeWelcome,
		Map:  &MapInfo{ID: def.ID, Name: def.Name, Side: def.Side},
	}
}

// Self describes the client's own character after placement.
func Self(obj world.Locateable) Message {
	info := Describe(obj)
	return Message{Type: TypeSelf, Self: &info}
}

func Error(text string) Message {
	return Message{Type: TypeError, Error: text}
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}
