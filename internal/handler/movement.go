package handler

import (
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// HandleWalk starts walking the player towards (cmd.X, cmd.Y). A walk in
// progress is replaced.
func HandleWalk(sess Client, cmd packet.Command, deps *Deps) {
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
	if !p.CanWalk() {
		sess.SendError("cannot walk now")
		return
	}

	steps := world.PlanSteps(p.Position(), target, gm.Definition().Side)
	if len(steps) == 0 {
		return
	}
	p.Walker().WalkTo(target, steps)

	deps.Log.Debug("walk",
		zap.String("player", p.Name()),
		zap.Stringer("to", target),
		zap.Int("steps", len(steps)),
	)
}

// HandleStop cancels the player's walk. The player stays where the last
// completed step put it.
func HandleStop(sess Client, _ packet.Command, _ *Deps) {
	if p := sess.Player(); p != nil {
		p.Walker().Stop()
	}
}
