package ws

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/room"
	"locked-study/server/internal/session"
	"locked-study/server/internal/state"
	"locked-study/server/internal/telemetry"
	"locked-study/server/logging"
	loggingNetwork "locked-study/server/logging/network"
)

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Clock     func() time.Time
}

// Handler upgrades /ws requests and runs one read loop per connection.
type Handler struct {
	hub       *session.Hub
	logger    telemetry.Logger
	publisher logging.Publisher
	clock     func() time.Time
	upgrader  websocket.Upgrader
}

func NewHandler(hub *session.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:       hub,
		logger:    logger,
		publisher: publisher,
		clock:     clock,
		upgrader:  upgrader,
	}
}

// Handle serves /ws?room=<code>&id=<player>[&codec=json|msgpack].
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	roomID := query.Get("room")
	playerID := query.Get("id")
	if roomID == "" || playerID == "" {
		nethttp.Error(w, "missing room or id", nethttp.StatusBadRequest)
		return
	}
	codec, err := proto.CodecByName(query.Get("codec"))
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}

	sub, _, err := h.hub.Subscribe(roomID, playerID, conn, codec)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, state.Kind(err))
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	h.serve(sub, conn)
}

func (h *Handler) serve(sub *session.Subscriber, conn *websocket.Conn) {
	playerID := sub.PlayerID()
	pub := logging.ForRoom(h.publisher, sub.RoomID())

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(sub, "closed")
			return
		}

		inbound := proto.JSON
		if messageType == websocket.BinaryMessage {
			inbound = proto.Msgpack
		}
		msg, err := proto.DecodeClientMessage(inbound, payload)
		if err != nil {
			loggingNetwork.MalformedFrame(
				context.Background(),
				pub,
				h.hub.RoomTick(sub),
				logging.PlayerRef(playerID),
				loggingNetwork.MalformedFramePayload{Codec: inbound.Name(), Error: err.Error(), Size: len(payload)},
				nil,
			)
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			continue
		}

		normalizedSeq := msg.CommandSeq()

		send := func(data []byte, err error) bool {
			if err != nil {
				h.logger.Printf("failed to encode response for %s: %v", playerID, err)
				return true
			}
			if err := sub.Send(data); err != nil {
				h.hub.Disconnect(sub, "write_failed")
				return false
			}
			return true
		}

		sendDuplicateAck := func() bool {
			return send(proto.EncodeCommandAck(sub.Codec(), proto.CommandAck{Seq: normalizedSeq}))
		}

		sendCommandAck := func(tick uint64) bool {
			if normalizedSeq == 0 {
				return true
			}
			if !send(proto.EncodeCommandAck(sub.Codec(), proto.CommandAck{Seq: normalizedSeq, Tick: tick})) {
				return false
			}
			sub.StoreLastCommandSeq(normalizedSeq)
			return true
		}

		sendCommandReject := func(reason string, retry bool) bool {
			if normalizedSeq == 0 {
				return true
			}
			return send(proto.EncodeCommandReject(sub.Codec(), proto.CommandReject{
				Seq:    normalizedSeq,
				Reason: reason,
				Retry:  retry,
				Tick:   h.hub.RoomTick(sub),
			}))
		}

		if msg.Type == proto.TypeHeartbeat {
			now := h.clock()
			rtt, ok := h.hub.UpdateHeartbeat(sub, now, msg.SentAt)
			if !ok {
				continue
			}
			if !send(proto.EncodeHeartbeat(sub.Codec(), proto.NewHeartbeat(now, msg.SentAt, rtt))) {
				return
			}
			continue
		}

		if normalizedSeq > 0 {
			if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
				if !sendDuplicateAck() {
					return
				}
				continue
			}
		}

		_, ok, reason := h.hub.Submit(sub, msg)
		if ok {
			if !sendCommandAck(h.hub.RoomTick(sub)) {
				return
			}
		} else {
			retry := reason == room.CommandRejectQueueLimit || reason == room.CommandRejectQueueFull
			if !sendCommandReject(reason, retry) {
				return
			}
			if reason == session.CommandRejectInvalidCommand {
				h.logger.Printf("unknown or incomplete %q from %s", msg.Type, playerID)
			}
		}

		if ok && msg.Type == proto.TypeLeave {
			sub.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "left"))
			h.hub.Disconnect(sub, "left")
			return
		}
	}
}
