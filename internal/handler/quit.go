package handler

import (
	"context"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/persist"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// HandleQuit closes the session. Cleanup happens in LeaveWorld once the game
// loop sees the session die.
func HandleQuit(sess Client, _ packet.Command, deps *Deps) {
	if p := sess.Player(); p != nil {
		deps.Log.Info("player quit", zap.String("name", p.Name()))
	}
	sess.Close()
}

// LeaveWorld saves and removes the session's player. Safe to call for
// sessions that never entered the world.
func LeaveWorld(sess Client, deps *Deps) {
	p := sess.Player()
	if p == nil {
		return
	}
	sess.SetPlayer(nil)

	gm := p.Map()
	SavePosition(p, deps)
	var mapID uint16
	if gm != nil {
		mapID = gm.ID()
		gm.Remove(p)
	} else {
		p.Walker().Stop()
	}
	if deps.online[p.Name()] == sess {
		delete(deps.online, p.Name())
	}
	if deps.Bus != nil {
		event.Emit(deps.Bus, event.PlayerLeft{CharID: p.CharID(), Name: p.Name(), MapID: mapID})
	}
	deps.Log.Info("player left world", zap.String("name", p.Name()), zap.Uint16("map", mapID))
}

// PositionOf snapshots where p stands. ok is false when p is not placed.
func PositionOf(p *world.Player) (row persist.PositionRow, ok bool) {
	gm := p.Map()
	if gm == nil {
		return row, false
	}
	pos := p.Position()
	return persist.PositionRow{
		Name:      p.Name(),
		MapID:     gm.ID(),
		X:         pos.X,
		Y:         pos.Y,
		Heading:   uint8(p.Direction()),
		UpdatedAt: time.Now(),
	}, true
}

// SavePosition stores p's position when persistence is enabled.
func SavePosition(p *world.Player, deps *Deps) {
	if deps.Positions == nil {
		return
	}
	row, ok := PositionOf(p)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := deps.Positions.Save(ctx, row); err != nil {
		deps.Log.Error("save position failed", zap.String("name", p.Name()), zap.Error(err))
	}
}
