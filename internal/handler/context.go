package handler

import (
	"context"
	"sync/atomic"

	"github.com/MUnique/OpenMU-sub010/internal/config"
	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	"github.com/MUnique/OpenMU-sub010/internal/data"
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/persist"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// Client is the connection a command arrived on. *net.Session implements it.
type Client interface {
	world.View
	State() packet.SessionState
	SetState(packet.SessionState)
	Player() *world.Player
	SetPlayer(*world.Player)
	Send(packet.Message)
	SendError(string)
	Close()
}

// PositionStore loads and saves player positions. *persist.PositionRepo
// implements it.
type PositionStore interface {
	Load(ctx context.Context, name string) (*persist.PositionRow, error)
	Save(ctx context.Context, row persist.PositionRow) error
}

// Dropper puts money on the ground. *system.DropSystem implements it.
type Dropper interface {
	DropMoney(gm *world.GameMap, pos world.Point, amount uint32) (*world.DroppedMoney, error)
}

// Deps holds shared dependencies injected into all command handlers.
// Handlers run on the game loop goroutine only.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Maps      *world.Registry
	Warps     *data.WarpTable
	Positions PositionStore // nil = positions are not persisted
	Delays    world.StepDelayProvider
	Bus       *event.Bus
	Drops     Dropper // nil = drop command disabled

	online     map[string]Client
	nextCharID atomic.Int64
}

// Online returns the client playing name, if any.
func (d *Deps) Online(name string) (Client, bool) {
	c, ok := d.online[name]
	return c, ok
}

// OnlineCount is the number of placed players.
func (d *Deps) OnlineCount() int {
	return len(d.online)
}

// RegisterAll registers all command handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.OpHello,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, cmd packet.Command) {
			HandleHello(sess.(Client), cmd, deps)
		},
	)

	inWorld := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.OpWalk, inWorld,
		func(sess any, cmd packet.Command) {
			HandleWalk(sess.(Client), cmd, deps)
		},
	)
	reg.Register(packet.OpStop, inWorld,
		func(sess any, cmd packet.Command) {
			HandleStop(sess.(Client), cmd, deps)
		},
	)
	reg.Register(packet.OpTeleport, inWorld,
		func(sess any, cmd packet.Command) {
			HandleTeleport(sess.(Client), cmd, deps)
		},
	)
	reg.Register(packet.OpWarp, inWorld,
		func(sess any, cmd packet.Command) {
			HandleWarp(sess.(Client), cmd, deps)
		},
	)
	reg.Register(packet.OpDrop, inWorld,
		func(sess any, cmd packet.Command) {
			HandleDrop(sess.(Client), cmd, deps)
		},
	)
	reg.Register(packet.OpQuit,
		[]packet.SessionState{packet.StateHandshake, packet.StateInWorld},
		func(sess any, cmd packet.Command) {
			HandleQuit(sess.(Client), cmd, deps)
		},
	)
}
