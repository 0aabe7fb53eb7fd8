package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"locked-study/server/internal/room"
	"locked-study/server/internal/state"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
)

// Client message type identifiers.
const (
	TypeMove       = string(room.CommandMove)
	TypeInput      = string(room.CommandInput)
	TypeExamine    = string(room.CommandExamine)
	TypePickup     = string(room.CommandPickup)
	TypeSolve      = string(room.CommandSolve)
	TypeUseItem    = string(room.CommandUseItem)
	TypeCombine    = string(room.CommandCombine)
	TypeUnlockDoor = string(room.CommandUnlockDoor)
	TypeChat       = string(room.CommandChat)
	TypeQuickChat  = string(room.CommandQuickChat)
	TypeStartGame  = string(room.CommandStartGame)
	TypeLeave      = string(room.CommandLeave)
	TypeHeartbeat  = "heartbeat"
)

// Outbound type identifiers that are not room events.
const (
	TypeCommandAck    = typeCommandAck
	TypeCommandReject = typeCommandReject
)

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver          int         `json:"ver,omitempty" jsonschema:"description=Protocol version; 0 means current"`
	Type         string      `json:"type" jsonschema:"required,enum=player_move,enum=player_input,enum=examine_object,enum=pickup_item,enum=solve_puzzle,enum=use_item,enum=combine_keys,enum=unlock_door,enum=send_message,enum=quick_chat,enum=start_game,enum=leave_room,enum=heartbeat"`
	Seq          *uint64     `json:"seq,omitempty" jsonschema:"description=Client command sequence acknowledged with commandAck or commandReject"`
	Position     *state.Vec2 `json:"position,omitempty" jsonschema:"description=Proposed absolute position for player_move"`
	DX           float64     `json:"dx,omitempty"`
	DY           float64     `json:"dy,omitempty"`
	ObjectID     string      `json:"object_id,omitempty"`
	ItemID       string      `json:"item_id,omitempty"`
	TargetID     string      `json:"target_id,omitempty"`
	PuzzleID     string      `json:"puzzle_id,omitempty"`
	Answer       string      `json:"answer,omitempty"`
	PieceIndex   *int        `json:"piece_index,omitempty" jsonschema:"minimum=0,maximum=8"`
	Verdict      *bool       `json:"verdict,omitempty"`
	Message      string      `json:"message,omitempty" jsonschema:"maxLength=500"`
	QuickMessage string      `json:"quick_message,omitempty" jsonschema:"enum=look,enum=found,enum=help,enum=idea,enum=yes,enum=no"`
	SentAt       int64       `json:"sentAt,omitempty" jsonschema:"description=Client clock in unix milliseconds for heartbeat"`
}

// CommandSeq returns the positive sequence number, or 0.
func (m ClientMessage) CommandSeq() uint64 {
	if m.Seq == nil {
		return 0
	}
	return *m.Seq
}

// DecodeClientMessage converts a raw websocket payload into a structured
// message.
func DecodeClientMessage(codec Codec, payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if codec == nil {
		codec = JSON
	}
	if err := codec.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("missing message type")
	}
	return msg, nil
}

// EncodeClientMessage renders a client message. Used by the client package
// and tests.
func EncodeClientMessage(codec Codec, msg ClientMessage) ([]byte, error) {
	if codec == nil {
		codec = JSON
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	return codec.Marshal(msg)
}

// ClientCommand converts a client message into the room command it carries.
func ClientCommand(msg ClientMessage) (room.Command, bool) {
	cmd := room.Command{Type: room.CommandType(msg.Type), Seq: msg.CommandSeq()}
	switch msg.Type {
	case TypeMove:
		if msg.Position == nil {
			return room.Command{}, false
		}
		cmd.Move = &room.MoveCommand{X: msg.Position.X, Y: msg.Position.Y}
	case TypeInput:
		cmd.Input = &room.InputCommand{DX: msg.DX, DY: msg.DY}
	case TypeExamine, TypePickup:
		if msg.ObjectID == "" && msg.ItemID == "" {
			return room.Command{}, false
		}
		cmd.Target = &room.TargetCommand{ObjectID: msg.ObjectID, ItemID: msg.ItemID}
	case TypeSolve:
		if msg.PuzzleID == "" {
			return room.Command{}, false
		}
		cmd.Solve = &room.SolveCommand{
			PuzzleID:   msg.PuzzleID,
			Answer:     msg.Answer,
			PieceIndex: msg.PieceIndex,
			Verdict:    msg.Verdict,
		}
	case TypeUseItem:
		if msg.ItemID == "" {
			return room.Command{}, false
		}
		cmd.Use = &room.UseCommand{ItemID: msg.ItemID, TargetID: msg.TargetID}
	case TypeChat:
		cmd.Chat = &room.ChatCommand{Text: msg.Message}
	case TypeQuickChat:
		cmd.Chat = &room.ChatCommand{Quick: msg.QuickMessage}
	case TypeCombine, TypeUnlockDoor, TypeStartGame, TypeLeave:
	default:
		return room.Command{}, false
	}
	return cmd, true
}

// Frame is the outbound envelope. Room events carry their payload in Data;
// acknowledgements and heartbeats use the flat fields.
type Frame struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	Seq        uint64 `json:"seq,omitempty"`
	Tick       uint64 `json:"tick,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Retry      bool   `json:"retry,omitempty"`
	ServerTime int64  `json:"serverTime,omitempty"`
	ClientTime int64  `json:"clientTime,omitempty"`
	RTTMillis  int64  `json:"rtt,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// EncodeEvent renders a room delivery.
func EncodeEvent(codec Codec, d room.Delivery) ([]byte, error) {
	return codec.Marshal(Frame{Ver: Version, Type: string(d.Type), Data: d.Payload})
}

// CommandAck describes an acknowledgement of an accepted command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(codec Codec, msg CommandAck) ([]byte, error) {
	return codec.Marshal(Frame{Ver: Version, Type: typeCommandAck, Seq: msg.Seq, Tick: msg.Tick})
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
	Tick   uint64
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(codec Codec, msg CommandReject) ([]byte, error) {
	return codec.Marshal(Frame{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Retry:  msg.Retry,
		Tick:   msg.Tick,
	})
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(codec Codec, msg Heartbeat) ([]byte, error) {
	return codec.Marshal(Frame{
		Ver:        Version,
		Type:       TypeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	})
}

// NewHeartbeat builds the acknowledgement for a client heartbeat received at
// now.
func NewHeartbeat(now time.Time, clientSent int64, rtt time.Duration) Heartbeat {
	return Heartbeat{ServerTime: now.UnixMilli(), ClientTime: clientSent, RTTMillis: rtt.Milliseconds()}
}

// frameHeader mirrors Frame without its payload.
type frameHeader struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	Seq        uint64 `json:"seq,omitempty"`
	Tick       uint64 `json:"tick,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Retry      bool   `json:"retry,omitempty"`
	ServerTime int64  `json:"serverTime,omitempty"`
	ClientTime int64  `json:"clientTime,omitempty"`
	RTTMillis  int64  `json:"rtt,omitempty"`
}

// ServerFrame is a decoded outbound frame whose payload is decoded lazily.
type ServerFrame struct {
	Ver        int
	Type       string
	Seq        uint64
	Tick       uint64
	Reason     string
	Retry      bool
	ServerTime int64
	ClientTime int64
	RTTMillis  int64

	codec Codec
	data  []byte
}

// HasData reports whether the frame carried a payload.
func (f ServerFrame) HasData() bool {
	return len(f.data) > 0
}

// Decode unmarshals the payload into v.
func (f ServerFrame) Decode(v any) error {
	if len(f.data) == 0 {
		return fmt.Errorf("%s frame has no data", f.Type)
	}
	return f.codec.Unmarshal(f.data, v)
}

// DecodeServerFrame parses an outbound frame produced by the server.
func DecodeServerFrame(codec Codec, payload []byte) (ServerFrame, error) {
	if codec == nil {
		codec = JSON
	}
	var (
		header frameHeader
		data   []byte
	)
	switch codec.Name() {
	case CodecMsgpack:
		var frame struct {
			frameHeader
			Data msgpack.RawMessage `json:"data,omitempty"`
		}
		if err := codec.Unmarshal(payload, &frame); err != nil {
			return ServerFrame{}, err
		}
		header, data = frame.frameHeader, frame.Data
	default:
		var frame struct {
			frameHeader
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := codec.Unmarshal(payload, &frame); err != nil {
			return ServerFrame{}, err
		}
		header, data = frame.frameHeader, frame.Data
	}
	return ServerFrame{
		Ver:        header.Ver,
		Type:       header.Type,
		Seq:        header.Seq,
		Tick:       header.Tick,
		Reason:     header.Reason,
		Retry:      header.Retry,
		ServerTime: header.ServerTime,
		ClientTime: header.ClientTime,
		RTTMillis:  header.RTTMillis,
		codec:      codec,
		data:       data,
	}, nil
}
