package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/room"
	"locked-study/server/internal/state"
	"locked-study/server/internal/telemetry"
	"locked-study/server/logging"
	loggingNetwork "locked-study/server/logging/network"
)

const (
	// CommandRejectInvalidCommand indicates the message did not map to a
	// room command.
	CommandRejectInvalidCommand = "invalid_command"
	// CommandRejectUnknownActor indicates the connection is no longer bound
	// to a room member.
	CommandRejectUnknownActor = "unknown_actor"

	DefaultReconnectGrace = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultIdleAfter      = 30 * time.Second

	metricDeliveredFrames = "session_frames_delivered_total"
	metricWriteFailures   = "session_write_failures_total"
	metricEncodeFailures  = "session_encode_failures_total"
)

// Config tunes connection handling.
type Config struct {
	ReconnectGrace time.Duration
	WriteTimeout   time.Duration
	IdleAfter      time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconnectGrace: DefaultReconnectGrace,
		WriteTimeout:   DefaultWriteTimeout,
		IdleAfter:      DefaultIdleAfter,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.ReconnectGrace <= 0 {
		normalized.ReconnectGrace = DefaultReconnectGrace
	}
	if normalized.WriteTimeout <= 0 {
		normalized.WriteTimeout = DefaultWriteTimeout
	}
	if normalized.IdleAfter <= 0 {
		normalized.IdleAfter = DefaultIdleAfter
	}
	return normalized
}

// Deps are the hub's collaborators.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     func() time.Time
}

type graceKey struct {
	roomID   string
	playerID string
}

// graceWindow is one pending removal. gen identifies the window so a timer
// that fires after being replaced can tell it is stale.
type graceWindow struct {
	timer *time.Timer
	gen   uint64
}

// DiagnosticsPlayer summarises one connection.
type DiagnosticsPlayer struct {
	RoomID        string    `json:"roomId"`
	PlayerID      string    `json:"playerId"`
	State         ConnState `json:"state"`
	Codec         string    `json:"codec"`
	LastHeartbeat int64     `json:"lastHeartbeat"`
	RTTMillis     int64     `json:"rttMillis"`
}

// Hub binds websocket connections to room members and fans room deliveries
// out to them.
type Hub struct {
	cfg       Config
	store     *room.Store
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     func() time.Time

	mu          sync.Mutex
	subscribers map[string]map[string]*Subscriber
	grace       map[graceKey]graceWindow
	graceGen    uint64
}

// NewHub constructs a hub and installs it as the store's deliverer.
func NewHub(store *room.Store, cfg Config, deps Deps) *Hub {
	if deps.Logger == nil {
		deps.Logger = telemetry.NopLogger()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	h := &Hub{
		cfg:         cfg.normalized(),
		store:       store,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		publisher:   deps.Publisher,
		clock:       deps.Clock,
		subscribers: make(map[string]map[string]*Subscriber),
		grace:       make(map[graceKey]graceWindow),
	}
	if store != nil {
		store.SetDeliverer(h)
	}
	return h
}

// Store returns the room registry behind the hub.
func (h *Hub) Store() *room.Store {
	return h.store
}

// Subscribe binds conn to a member of a room. The member receives the full
// room snapshot as its first frame. A newer connection for the same player
// replaces the older one, and a pending grace timer is cancelled.
func (h *Hub) Subscribe(roomID, playerID string, conn Conn, codec proto.Codec) (*Subscriber, state.Snapshot, error) {
	roomID = room.NormalizeID(roomID)
	r, ok := h.store.Room(roomID)
	if !ok {
		return nil, state.Snapshot{}, state.ErrRoomNotFound
	}

	sub := newSubscriber(roomID, playerID, conn, codec, h.cfg, h.clock())
	h.mu.Lock()
	h.cancelGraceLocked(graceKey{roomID: roomID, playerID: playerID})
	members := h.subscribers[roomID]
	if members == nil {
		members = make(map[string]*Subscriber)
		h.subscribers[roomID] = members
	}
	previous := members[playerID]
	members[playerID] = sub
	h.mu.Unlock()

	if previous != nil {
		previous.setState(StateLeft)
		previous.close()
	}

	snapshot, err := r.Connect(playerID)
	if err != nil {
		h.unregister(sub)
		sub.setState(StateLeft)
		return nil, state.Snapshot{}, err
	}
	sub.setState(StateJoined)
	return sub, snapshot, nil
}

func (h *Hub) unregister(sub *Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.subscribers[sub.roomID]
	if members == nil || members[sub.playerID] != sub {
		return false
	}
	delete(members, sub.playerID)
	if len(members) == 0 {
		delete(h.subscribers, sub.roomID)
	}
	return true
}

// Disconnect detaches a connection. The player keeps its slot for the
// reconnect grace window and is removed when the window expires.
func (h *Hub) Disconnect(sub *Subscriber, reason string) {
	if sub == nil {
		return
	}
	sub.setState(StateLeft)
	sub.close()
	if !h.unregister(sub) {
		return
	}
	r, ok := h.store.Room(sub.roomID)
	if !ok {
		return
	}
	if err := r.Disconnect(sub.playerID, reason); err != nil {
		// The player already left through leave_room.
		return
	}

	key := graceKey{roomID: sub.roomID, playerID: sub.playerID}
	h.mu.Lock()
	h.cancelGraceLocked(key)
	h.graceGen++
	gen := h.graceGen
	h.grace[key] = graceWindow{
		timer: time.AfterFunc(h.cfg.ReconnectGrace, func() { h.expire(key, gen) }),
		gen:   gen,
	}
	h.mu.Unlock()
}

func (h *Hub) cancelGraceLocked(key graceKey) {
	if window, ok := h.grace[key]; ok {
		window.timer.Stop()
		delete(h.grace, key)
	}
}

// expire closes grace window gen. A window that was cancelled or replaced
// after its timer fired is ignored, and the room only removes the player if
// it is still disconnected.
func (h *Hub) expire(key graceKey, gen uint64) {
	h.mu.Lock()
	window, ok := h.grace[key]
	if !ok || window.gen != gen {
		h.mu.Unlock()
		return
	}
	delete(h.grace, key)
	_, reconnected := h.subscribers[key.roomID][key.playerID]
	h.mu.Unlock()
	if reconnected {
		return
	}
	r, ok := h.store.Room(key.roomID)
	if !ok {
		return
	}
	if r.RemoveIfDisconnected(key.playerID, "timeout") {
		h.logger.Printf("[session] removed %s from %s after reconnect grace", key.playerID, key.roomID)
	}
}

// PendingRemovals reports players inside their reconnect window.
func (h *Hub) PendingRemovals() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.grace)
}

// Submit stages a client message as a room command. The returned command
// carries the room tick at staging time.
func (h *Hub) Submit(sub *Subscriber, msg proto.ClientMessage) (room.Command, bool, string) {
	var zero room.Command
	now := h.clock()
	sub.Touch(now)

	cmd, ok := proto.ClientCommand(msg)
	if !ok {
		h.rejected(sub, msg, CommandRejectInvalidCommand)
		return zero, false, CommandRejectInvalidCommand
	}
	r, ok := h.store.Room(sub.roomID)
	if !ok {
		h.rejected(sub, msg, room.CommandRejectRoomClosed)
		return zero, false, room.CommandRejectRoomClosed
	}
	if !r.HasPlayer(sub.playerID) {
		h.rejected(sub, msg, CommandRejectUnknownActor)
		return zero, false, CommandRejectUnknownActor
	}

	cmd.ActorID = sub.playerID
	cmd.IssuedAt = now
	if ok, reason := r.Enqueue(cmd); !ok {
		h.rejected(sub, msg, reason)
		return zero, false, reason
	}
	return cmd, true, ""
}

func (h *Hub) rejected(sub *Subscriber, msg proto.ClientMessage, reason string) {
	loggingNetwork.CommandRejected(
		context.Background(),
		logging.ForRoom(h.publisher, sub.roomID),
		0,
		logging.PlayerRef(sub.playerID),
		loggingNetwork.CommandRejectedPayload{Type: msg.Type, Seq: msg.CommandSeq(), Reason: reason},
		nil,
	)
}

// RoomTick returns the current step of the subscriber's room.
func (h *Hub) RoomTick(sub *Subscriber) uint64 {
	r, ok := h.store.Room(sub.roomID)
	if !ok {
		return 0
	}
	return r.Tick()
}

// UpdateHeartbeat records a heartbeat and returns the measured round trip.
func (h *Hub) UpdateHeartbeat(sub *Subscriber, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	if sub == nil {
		return 0, false
	}
	sub.Touch(receivedAt)
	rtt := time.Duration(0)
	if clientSent > 0 {
		rtt = receivedAt.Sub(time.UnixMilli(clientSent))
		if rtt < 0 {
			rtt = 0
		}
	}
	sub.recordHeartbeat(receivedAt, rtt)
	loggingNetwork.Heartbeat(
		context.Background(),
		logging.ForRoom(h.publisher, sub.roomID),
		h.RoomTick(sub),
		logging.PlayerRef(sub.playerID),
		loggingNetwork.HeartbeatPayload{RTTMillis: rtt.Milliseconds()},
		nil,
	)
	return rtt, true
}

// Deliver implements room.Deliverer. Each delivery is encoded once per codec
// and written to every connection in its audience.
func (h *Hub) Deliver(roomID string, batch []room.Delivery) {
	h.mu.Lock()
	members := h.subscribers[roomID]
	subs := make([]*Subscriber, 0, len(members))
	for _, sub := range members {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	for _, d := range batch {
		encoded := make(map[string][]byte, 2)
		for _, sub := range subs {
			if !d.Includes(sub.playerID) {
				continue
			}
			codec := sub.Codec()
			data, ok := encoded[codec.Name()]
			if !ok {
				var err error
				data, err = proto.EncodeEvent(codec, d)
				if err != nil {
					h.addMetric(metricEncodeFailures, 1)
					h.logger.Printf("[session] failed to encode %s for room %s: %v", d.Type, roomID, err)
					continue
				}
				encoded[codec.Name()] = data
			}
			if err := sub.Send(data); err != nil {
				h.addMetric(metricWriteFailures, 1)
				sub.close()
				continue
			}
			h.addMetric(metricDeliveredFrames, 1)
		}
	}
}

// Diagnostics lists live connections ordered by room then player.
func (h *Hub) Diagnostics() []DiagnosticsPlayer {
	now := h.clock()
	h.mu.Lock()
	var subs []*Subscriber
	for _, members := range h.subscribers {
		for _, sub := range members {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	out := make([]DiagnosticsPlayer, 0, len(subs))
	for _, sub := range subs {
		out = append(out, DiagnosticsPlayer{
			RoomID:        sub.roomID,
			PlayerID:      sub.playerID,
			State:         sub.State(now),
			Codec:         sub.codec.Name(),
			LastHeartbeat: sub.lastHeartbeat.Load(),
			RTTMillis:     time.Duration(sub.lastRTT.Load()).Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// Close stops grace timers and drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	for key, window := range h.grace {
		window.timer.Stop()
		delete(h.grace, key)
	}
	var subs []*Subscriber
	for roomID, members := range h.subscribers {
		for _, sub := range members {
			subs = append(subs, sub)
		}
		delete(h.subscribers, roomID)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.setState(StateLeft)
		sub.close()
	}
}

func (h *Hub) addMetric(key string, delta uint64) {
	if h.metrics != nil {
		h.metrics.Add(key, delta)
	}
}

var _ room.Deliverer = (*Hub)(nil)
