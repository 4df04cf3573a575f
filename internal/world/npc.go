package world

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// NPCConfig holds what is needed to build an NPC.
type NPCConfig struct {
	TemplateID int32
	Name       string
	Spawn      Point
	// Roam is how far the NPC may wander from its spawn point; 0 keeps it
	// in place.
	Roam   uint8
	Speed  int
	Delays StepDelayProvider
	Log    *zap.Logger
}

// NPC is a server-controlled actor. It is observable but watches nothing.
type NPC struct {
	Placement

	templateID int32
	name       string
	spawn      Point
	roam       uint8
	observers  ObserverSet
	walker     *Walker

	stateMu deadlock.RWMutex
	speed   int
	frozen  bool
}

func NewNPC(cfg NPCConfig) *NPC {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	n := &NPC{
		templateID: cfg.TemplateID,
		name:       cfg.Name,
		spawn:      cfg.Spawn,
		roam:       cfg.Roam,
		speed:      cfg.Speed,
	}
	n.SetPosition(cfg.Spawn)
	n.walker = NewWalker(n, cfg.Delays, log.With(zap.String("npc", cfg.Name)))
	return n
}

func (n *NPC) Kind() Kind              { return KindNPC }
func (n *NPC) TemplateID() int32       { return n.templateID }
func (n *NPC) Name() string            { return n.name }
func (n *NPC) Spawn() Point            { return n.spawn }
func (n *NPC) Roam() uint8             { return n.roam }
func (n *NPC) Observers() *ObserverSet { return &n.observers }
func (n *NPC) Walker() *Walker         { return n.walker }
func (n *NPC) String() string          { return "npc " + n.name }

func (n *NPC) MoveSpeed() int {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.speed
}

func (n *NPC) SetFrozen(v bool) {
	n.stateMu.Lock()
	n.frozen = v
	n.stateMu.Unlock()
}

func (n *NPC) CanWalk() bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return !n.frozen
}

// InRoamArea reports whether p is within the NPC's roam radius of its spawn.
func (n *NPC) InRoamArea(p Point) bool {
	return n.spawn.InRange(p, n.roam, MetricQuadratic)
}
