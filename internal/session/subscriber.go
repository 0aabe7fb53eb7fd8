package session

import (
	"sync"
	"sync/atomic"
	"time"

	"locked-study/server/internal/net/proto"
)

// ConnState is the lifecycle of one connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateJoined       ConnState = "joined"
	StateActive       ConnState = "active"
	StateIdle         ConnState = "idle"
	StateLeft         ConnState = "left"
)

// Conn is the transport a subscriber writes to. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one live connection bound to a player in a room.
type Subscriber struct {
	roomID   string
	playerID string
	codec    proto.Codec
	conn     Conn
	timeout  time.Duration
	idle     time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	state   ConnState

	lastCommandSeq atomic.Uint64
	lastSeen       atomic.Int64
	lastHeartbeat  atomic.Int64
	lastRTT        atomic.Int64
	closed         atomic.Bool
}

func newSubscriber(roomID, playerID string, conn Conn, codec proto.Codec, cfg Config, now time.Time) *Subscriber {
	if codec == nil {
		codec = proto.JSON
	}
	sub := &Subscriber{
		roomID:   roomID,
		playerID: playerID,
		codec:    codec,
		conn:     conn,
		timeout:  cfg.WriteTimeout,
		idle:     cfg.IdleAfter,
		state:    StateConnecting,
	}
	sub.lastSeen.Store(now.UnixNano())
	return sub
}

func (s *Subscriber) RoomID() string     { return s.roomID }
func (s *Subscriber) PlayerID() string   { return s.playerID }
func (s *Subscriber) Codec() proto.Codec { return s.codec }

// WriteMessage serialises writes to the underlying connection.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	return s.conn.WriteMessage(messageType, data)
}

// Send writes an encoded frame using the subscriber's codec frame type.
func (s *Subscriber) Send(data []byte) error {
	return s.WriteMessage(s.codec.MessageType(), data)
}

func (s *Subscriber) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	for {
		current := s.lastCommandSeq.Load()
		if seq <= current || s.lastCommandSeq.CompareAndSwap(current, seq) {
			return
		}
	}
}

// Touch records inbound traffic and promotes the connection to active.
func (s *Subscriber) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
	s.mu.Lock()
	if s.state == StateJoined || s.state == StateIdle {
		s.state = StateActive
	}
	s.mu.Unlock()
}

// State reports the lifecycle state. An active connection that has been
// silent for longer than the idle threshold reads as idle.
func (s *Subscriber) State(now time.Time) ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && s.idle > 0 && now.Sub(time.Unix(0, s.lastSeen.Load())) > s.idle {
		s.state = StateIdle
	}
	return s.state
}

func (s *Subscriber) setState(state ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Subscriber) recordHeartbeat(now time.Time, rtt time.Duration) {
	s.lastHeartbeat.Store(now.UnixMilli())
	s.lastRTT.Store(int64(rtt))
}

// close shuts the transport once.
func (s *Subscriber) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}
