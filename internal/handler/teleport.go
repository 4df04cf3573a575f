package handler

import (
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// HandleTeleport moves the player instantly within its map.
func HandleTeleport(sess Client, cmd packet.Command, deps *Deps) {
	p := sess.Player()
	if p == nil {
		return
	}
	gm := p.Map()
	if gm == nil {
		return
	}
	target := world.Point{X: cmd.X, Y: cmd.Y}
	if !gm.Contains(target) {
		sess.SendError("target off map")
		return
	}
	p.Walker().Stop()
	gm.Move(p, target, world.MoveInstant)

	deps.Log.Debug("teleport", zap.String("player", p.Name()), zap.Stringer("to", target))
}

// HandleWarp sends the player to a named destination, possibly on another
// map.
func HandleWarp(sess Client, cmd packet.Command, deps *Deps) {
	p := sess.Player()
	if p == nil || deps.Warps == nil {
		return
	}
	dest := deps.Warps.Get(cmd.Dest)
	if dest == nil {
		sess.SendError("unknown destination")
		return
	}
	if err := Warp(sess, dest.MapID, world.Point{X: dest.X, Y: dest.Y}, deps); err != nil {
		deps.Log.Warn("warp failed",
			zap.String("player", p.Name()),
			zap.String("dest", dest.Name),
			zap.Error(err),
		)
		sess.SendError("warp failed")
	}
}

// Warp moves the player to pos on mapID. Within the same map this is an
// instant move; across maps the player is removed and added again and gets a
// new object id. On failure the player is put back where it was.
func Warp(sess Client, mapID uint16, pos world.Point, deps *Deps) error {
	p := sess.Player()
	from := p.Map()
	if from == nil {
		return world.ErrUnknownMap
	}
	to, err := deps.Maps.Get(mapID)
	if err != nil {
		return err
	}
	if !to.Contains(pos) {
		return world.ErrOutOfBounds
	}

	p.Walker().Stop()
	if to == from {
		from.Move(p, pos, world.MoveInstant)
		return nil
	}

	prev := p.Position()
	from.Remove(p)
	p.SetPosition(pos)
	sess.Send(packet.Welcome(to))
	if err := to.Add(p); err != nil {
		p.SetPosition(prev)
		sess.Send(packet.Welcome(from))
		if rerr := from.Add(p); rerr != nil {
			deps.Log.Error("player lost during warp", zap.String("player", p.Name()), zap.Error(rerr))
			sess.Close()
		} else {
			sess.Send(packet.Self(p))
		}
		return err
	}
	sess.Send(packet.Self(p))

	deps.Log.Info("player warped",
		zap.String("player", p.Name()),
		zap.Uint16("from", from.ID()),
		zap.Uint16("to", to.ID()),
		zap.Stringer("pos", pos),
	)
	return nil
}
