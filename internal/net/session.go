package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxCommandSize = 1024

// Session represents a single websocket client. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
//
// Session is also the world.View of its player: scope notifications arrive
// from whichever goroutine moved an object and are queued without blocking.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan packet.Command // game loop reads commands from here
	OutQueue chan []byte         // writer goroutine reads from here

	IP     string
	player *world.Player // set on hello, game loop only

	limiter      *rate.Limiter // nil = unlimited; readLoop only
	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

var _ world.View = (*Session)(nil)

// SessionOptions are the per-connection limits.
type SessionOptions struct {
	InQueueSize       int
	OutQueueSize      int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	CommandsPerSecond int // 0 = unlimited
	Burst             int
}

func NewSession(conn *websocket.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan packet.Command, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	if opts.CommandsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = opts.CommandsPerSecond
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.CommandsPerSecond), burst)
	}
	s.state.Store(int32(packet.StateHandshake))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Player returns the character placed for this session, or nil.
func (s *Session) Player() *world.Player { return s.player }

func (s *Session) SetPlayer(p *world.Player) { s.player = p }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	s.conn.SetReadLimit(maxCommandSize)
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a message for the writer. If OutQueue is full the client is
// too slow and the session is disconnected (backpressure).
func (s *Session) Send(m packet.Message) {
	if s.closed.Load() {
		return
	}
	data, err := packet.Encode(m)
	if err != nil {
		s.log.Error("encode message", zap.String("type", m.Type), zap.Error(err))
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow client")
		s.Close()
	}
}

// SendError reports a rejected command to the client.
func (s *Session) SendError(text string) {
	s.Send(packet.Error(text))
}

func (s *Session) PlayersInScope(players []world.Sighting) {
	s.Send(packet.Message{Type: packet.TypePlayers, Objects: packet.DescribeAll(players)})
}

func (s *Session) NPCsInScope(npcs []world.Sighting) {
	s.Send(packet.Message{Type: packet.TypeNPCs, Objects: packet.DescribeAll(npcs)})
}

func (s *Session) ItemsDropped(items []world.Sighting, fresh bool) {
	s.Send(packet.Message{Type: packet.TypeItems, Fresh: fresh, Objects: packet.DescribeAll(items)})
}

func (s *Session) MoneyDropped(money []world.Sighting, fresh bool) {
	s.Send(packet.Message{Type: packet.TypeMoney, Fresh: fresh, Objects: packet.DescribeAll(money)})
}

func (s *Session) ObjectsOutOfScope(objs []world.Sighting) {
	s.Send(packet.Message{Type: packet.TypeOut, IDs: packet.IDs(objs)})
}

func (s *Session) DropsDisappeared(drops []world.Sighting) {
	s.Send(packet.Message{Type: packet.TypeGone, IDs: packet.IDs(drops)})
}

func (s *Session) ObjectMoved(obj world.Sighting, kind world.MoveKind) {
	s.Send(packet.Message{
		Type:    packet.TypeMoved,
		Walk:    kind == world.MoveWalk,
		Objects: []packet.ObjectInfo{packet.DescribeSighting(obj)},
	})
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// readLoop decodes commands and pushes them onto InQueue for the game loop.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("command rate exceeded, disconnecting")
			return
		}

		cmd, err := packet.DecodeCommand(data)
		if err != nil {
			s.log.Debug("bad command", zap.Error(err))
			s.SendError("malformed command")
			continue
		}

		// Block until InQueue has space or the session closes. Dropping a
		// walk or stop would leave the client out of sync with the server.
		select {
		case s.InQueue <- cmd:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop writes queued messages to the connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOne(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOne(data []byte) bool {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
