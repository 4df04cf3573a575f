package handler

import (
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"go.uber.org/zap"
)

// HandleDrop puts cmd.Amount money at the player's feet.
func HandleDrop(sess Client, cmd packet.Command, deps *Deps) {
	p := sess.Player()
	if p == nil || deps.Drops == nil {
		return
	}
	gm := p.Map()
	if gm == nil || cmd.Amount == 0 {
		return
	}
	if _, err := deps.Drops.DropMoney(gm, p.Position(), cmd.Amount); err != nil {
		deps.Log.Warn("drop failed", zap.String("player", p.Name()), zap.Error(err))
		sess.SendError("cannot drop here")
	}
}
