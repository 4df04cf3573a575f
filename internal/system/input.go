package system

import (
	"time"

	coresys "github.com/MUnique/OpenMU-sub010/internal/core/system"
	"github.com/MUnique/OpenMU-sub010/internal/handler"
	gonet "github.com/MUnique/OpenMU-sub010/internal/net"
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"go.uber.org/zap"
)

// SessionSource delivers connected and dead sessions. *net.Server implements it.
type SessionSource interface {
	NewSessions() <-chan *gonet.Session
	DeadSessions() <-chan uint64
}

// InputSystem drains command queues from all sessions and dispatches them
// through the command registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *gonet.SessionStore
	deps       *handler.Deps
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *packet.Registry, store *gonet.SessionStore, deps *handler.Deps, maxPerTick int) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 1
	}
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		deps:       deps,
		maxPerTick: maxPerTick,
		log:        deps.Log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Name() string { return "input" }

func (s *InputSystem) Update(_ time.Duration) {
	// New sessions first: a dead id always refers to a session that was
	// queued as new before it.
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
			continue
		default:
		}
		break
	}

	for {
		select {
		case id := <-s.source.DeadSessions():
			if sess := s.store.Remove(id); sess != nil {
				s.disconnect(sess)
			}
			continue
		default:
		}
		break
	}

	var closed []*gonet.Session
	s.store.ForEach(func(sess *gonet.Session) {
		if sess.IsClosed() {
			closed = append(closed, sess)
			return
		}
		s.drain(sess)
	})
	// Sessions whose dead notice was dropped.
	for _, sess := range closed {
		s.store.Remove(sess.ID)
		s.disconnect(sess)
	}
}

func (s *InputSystem) drain(sess *gonet.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case cmd := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), cmd); err != nil {
				s.log.Debug("command dispatch failed",
					zap.Uint64("session", sess.ID),
					zap.String("op", cmd.Op),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

func (s *InputSystem) disconnect(sess *gonet.Session) {
	sess.Close()
	handler.LeaveWorld(sess, s.deps)
	s.log.Info("client disconnected", zap.Uint64("session", sess.ID))
}

// CloseAll disconnects every session. Used on shutdown after the last save.
func (s *InputSystem) CloseAll() {
	var all []*gonet.Session
	s.store.ForEach(func(sess *gonet.Session) { all = append(all, sess) })
	for _, sess := range all {
		s.store.Remove(sess.ID)
		s.disconnect(sess)
	}
}
