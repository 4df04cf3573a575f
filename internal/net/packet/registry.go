package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake     SessionState = iota // connected, awaiting hello
	StateInWorld                           // placed on a map
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Command ops sent by clients.
const (
	OpHello    = "hello"
	OpWalk     = "walk"
	OpStop     = "stop"
	OpTeleport = "teleport"
	OpWarp     = "warp"
	OpDrop     = "drop"
	OpQuit     = "quit"
)

// Command is one decoded client request.
type Command struct {
	Op     string `json:"op"`
	Name   string `json:"name,omitempty"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	Dest   string `json:"dest,omitempty"`
	Amount uint32 `json:"amount,omitempty"`
}

// ErrEmptyOp is returned for commands without an op.
var ErrEmptyOp = errors.New("empty op")

// HandlerFunc is the callback signature for command handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, cmd Command)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps ops to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps an op to a handler, restricted to the given session states.
func (reg *Registry) Register(op string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[op] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Has reports whether op has a handler.
func (reg *Registry) Has(op string) bool {
	_, ok := reg.handlers[op]
	return ok
}

// Dispatch finds the handler for cmd.Op, validates the session state and
// calls the handler. Unknown ops are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, cmd Command) error {
	if cmd.Op == "" {
		return ErrEmptyOp
	}
	entry, ok := reg.handlers[cmd.Op]
	if !ok {
		reg.log.Debug("unknown op", zap.String("op", cmd.Op), zap.Stringer("state", state))
		return nil
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("op not allowed in state",
			zap.String("op", cmd.Op),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("op %q not allowed in state %s", cmd.Op, state)
	}
	return reg.safeCall(entry.fn, sess, cmd)
}

// safeCall keeps one bad command from taking down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, cmd Command) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panicked",
				zap.String("op", cmd.Op),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for op %q: %v", cmd.Op, rec)
		}
	}()
	fn(sess, cmd)
	return nil
}
