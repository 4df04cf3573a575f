package handler

import (
	"context"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

const dbTimeout = 3 * time.Second

const maxNameLen = 16

// HandleHello names the client's character and enters the world.
func HandleHello(sess Client, cmd packet.Command, deps *Deps) {
	name := cmd.Name
	if name == "" || len(name) > maxNameLen {
		sess.SendError("invalid name")
		return
	}
	if _, ok := deps.Online(name); ok {
		sess.SendError("name already online")
		return
	}
	if err := EnterWorld(sess, name, deps); err != nil {
		deps.Log.Warn("enter world failed", zap.String("name", name), zap.Error(err))
		sess.SendError("cannot enter world")
	}
}

// EnterWorld places a new player for sess at its saved position, or at the
// default map's spawn point.
func EnterWorld(sess Client, name string, deps *Deps) error {
	gm, pos, heading, err := startPosition(name, deps)
	if err != nil {
		return err
	}

	p := world.NewPlayer(world.PlayerConfig{
		CharID:    deps.nextCharID.Add(1),
		Name:      name,
		InfoRange: deps.Config.World.InfoRange,
		View:      sess,
		Delays:    deps.Delays,
		Log:       deps.Log,
	})
	p.SetPosition(pos)
	p.SetDirection(heading)

	// The client learns its map before the first scope message.
	sess.Send(packet.Welcome(gm))
	if err := gm.Add(p); err != nil {
		return err
	}
	sess.SetPlayer(p)
	sess.SetState(packet.StateInWorld)
	sess.Send(packet.Self(p))

	if deps.online == nil {
		deps.online = make(map[string]Client)
	}
	deps.online[name] = sess
	if deps.Bus != nil {
		event.Emit(deps.Bus, event.PlayerEntered{CharID: p.CharID(), Name: name, MapID: gm.ID()})
	}

	deps.Log.Info("player entered world",
		zap.String("name", name),
		zap.Uint16("map", gm.ID()),
		zap.Stringer("pos", pos),
	)
	return nil
}

func startPosition(name string, deps *Deps) (*world.GameMap, world.Point, world.Direction, error) {
	if deps.Positions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		row, err := deps.Positions.Load(ctx, name)
		cancel()
		if err != nil {
			deps.Log.Warn("load position failed, using spawn", zap.String("name", name), zap.Error(err))
		} else if row != nil {
			gm, err := deps.Maps.Get(row.MapID)
			pos := world.Point{X: row.X, Y: row.Y}
			if err == nil && gm.Contains(pos) {
				heading := world.Direction(row.Heading)
				if !heading.Valid() {
					heading = world.DirSouth
				}
				return gm, pos, heading, nil
			}
			deps.Log.Warn("stored position unusable, using spawn",
				zap.String("name", name),
				zap.Uint16("map", row.MapID),
			)
		}
	}

	gm, err := deps.Maps.Get(deps.Config.World.DefaultMap)
	if err != nil {
		return nil, world.Point{}, 0, err
	}
	return gm, gm.Definition().Spawn, world.DirSouth, nil
}
