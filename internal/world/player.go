package world

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// DefaultInfoRange is the watch range of a player in tiles.
const DefaultInfoRange uint8 = 20

// PlayerConfig holds what is needed to build a Player.
type PlayerConfig struct {
	CharID    int64
	Name      string
	InfoRange uint8
	Speed     int
	View      View
	Delays    StepDelayProvider
	Log       *zap.Logger
}

// Player is a connected character. It watches the buckets around it and is
// watched by other players.
type Player struct {
	Placement

	charID    int64
	name      string
	observers ObserverSet
	adapter   *Adapter
	walker    *Walker

	stateMu   deadlock.RWMutex
	infoRange uint8
	speed     int
	frozen    bool
}

func NewPlayer(cfg PlayerConfig) *Player {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.InfoRange == 0 {
		cfg.InfoRange = DefaultInfoRange
	}
	p := &Player{
		charID:    cfg.CharID,
		name:      cfg.Name,
		infoRange: cfg.InfoRange,
		speed:     cfg.Speed,
	}
	log = log.With(zap.String("player", cfg.Name))
	p.adapter = NewAdapter(p, cfg.View, log)
	p.walker = NewWalker(p, cfg.Delays, log)
	return p
}

func (p *Player) Kind() Kind              { return KindPlayer }
func (p *Player) CharID() int64           { return p.charID }
func (p *Player) Name() string            { return p.name }
func (p *Player) Observers() *ObserverSet { return &p.observers }
func (p *Player) Adapter() *Adapter       { return p.adapter }
func (p *Player) Walker() *Walker         { return p.walker }
func (p *Player) String() string          { return "player " + p.name }

func (p *Player) InfoRange() uint8 {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.infoRange
}

// SetInfoRange changes the watch range. It takes effect with the next
// watch-set computation; call GameMap.Respawn to apply it immediately.
func (p *Player) SetInfoRange(r uint8) {
	p.stateMu.Lock()
	p.infoRange = r
	p.stateMu.Unlock()
}

// MoveSpeed is the speed bonus in percent used by step delay providers.
func (p *Player) MoveSpeed() int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.speed
}

func (p *Player) SetMoveSpeed(v int) {
	p.stateMu.Lock()
	p.speed = v
	p.stateMu.Unlock()
}

// SetFrozen blocks walking, e.g. while stunned or in a dialog.
func (p *Player) SetFrozen(v bool) {
	p.stateMu.Lock()
	p.frozen = v
	p.stateMu.Unlock()
}

func (p *Player) CanWalk() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return !p.frozen
}
