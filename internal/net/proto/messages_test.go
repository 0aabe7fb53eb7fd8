package proto

import (
	"encoding/json"
	"strings"
	"testing"

	"locked-study/server/internal/room"
	"locked-study/server/internal/state"
)

func TestDecodeClientMessageDefaultsVersion(t *testing.T) {
	msg, err := DecodeClientMessage(JSON, []byte(`{"type":"player_move","position":{"x":10,"y":20},"seq":7}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Ver != Version || msg.CommandSeq() != 7 {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := DecodeClientMessage(JSON, []byte(`{"ver":9,"type":"player_move"}`)); err == nil {
		t.Fatalf("expected version mismatch to fail")
	}
	if _, err := DecodeClientMessage(JSON, []byte(`{"dx":1}`)); err == nil {
		t.Fatalf("expected missing type to fail")
	}
	if _, err := DecodeClientMessage(JSON, []byte(`not json`)); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func TestClientCommandMapsEveryAction(t *testing.T) {
	piece := 3
	cases := []struct {
		msg   ClientMessage
		check func(room.Command) bool
	}{
		{ClientMessage{Type: TypeMove, Position: &state.Vec2{X: 1, Y: 2}}, func(c room.Command) bool { return c.Move != nil && c.Move.X == 1 && c.Move.Y == 2 }},
		{ClientMessage{Type: TypeInput, DX: -1}, func(c room.Command) bool { return c.Input != nil && c.Input.DX == -1 }},
		{ClientMessage{Type: TypeExamine, ObjectID: "book"}, func(c room.Command) bool { return c.Target != nil && c.Target.ObjectID == "book" }},
		{ClientMessage{Type: TypePickup, ItemID: "uv_lamp"}, func(c room.Command) bool { return c.Target != nil && c.Target.ItemID == "uv_lamp" }},
		{ClientMessage{Type: TypeSolve, PuzzleID: "jigsaw", PieceIndex: &piece}, func(c room.Command) bool { return c.Solve != nil && *c.Solve.PieceIndex == 3 }},
		{ClientMessage{Type: TypeUseItem, ItemID: "master_key", TargetID: "door"}, func(c room.Command) bool { return c.Use != nil && c.Use.TargetID == "door" }},
		{ClientMessage{Type: TypeChat, Message: "hi"}, func(c room.Command) bool { return c.Chat != nil && c.Chat.Text == "hi" }},
		{ClientMessage{Type: TypeQuickChat, QuickMessage: "help"}, func(c room.Command) bool { return c.Chat != nil && c.Chat.Quick == "help" }},
		{ClientMessage{Type: TypeCombine}, func(c room.Command) bool { return c.Type == room.CommandCombine }},
		{ClientMessage{Type: TypeUnlockDoor}, func(c room.Command) bool { return c.Type == room.CommandUnlockDoor }},
		{ClientMessage{Type: TypeStartGame}, func(c room.Command) bool { return c.Type == room.CommandStartGame }},
		{ClientMessage{Type: TypeLeave}, func(c room.Command) bool { return c.Type == room.CommandLeave }},
	}
	for _, tc := range cases {
		cmd, ok := ClientCommand(tc.msg)
		if !ok || string(cmd.Type) != tc.msg.Type || !tc.check(cmd) {
			t.Fatalf("%s: unexpected command %+v (ok=%v)", tc.msg.Type, cmd, ok)
		}
	}

	for _, bad := range []ClientMessage{
		{Type: TypeMove},
		{Type: TypeSolve},
		{Type: TypeUseItem},
		{Type: TypeExamine},
		{Type: TypeHeartbeat},
		{Type: "dance"},
	} {
		if _, ok := ClientCommand(bad); ok {
			t.Fatalf("expected %q to be rejected", bad.Type)
		}
	}
}

func TestEventFramesRoundTripThroughBothCodecs(t *testing.T) {
	delivery := room.Delivery{
		Type: room.EventPuzzleSolved,
		Payload: room.PuzzleSolvedEvent{
			PlayerID:    "p1",
			PuzzleID:    "safe",
			ObjectID:    "safe",
			ObjectState: state.ObjectState{Open: true, Unlocked: true},
			Reward:      state.ItemKeyPiece2,
			Inventory:   []string{state.ItemKeyPiece2},
		},
	}
	for _, codec := range []Codec{JSON, Msgpack} {
		data, err := EncodeEvent(codec, delivery)
		if err != nil {
			t.Fatalf("%s encode: %v", codec.Name(), err)
		}
		frame, err := DecodeServerFrame(codec, data)
		if err != nil {
			t.Fatalf("%s decode: %v", codec.Name(), err)
		}
		if frame.Ver != Version || frame.Type != string(room.EventPuzzleSolved) || !frame.HasData() {
			t.Fatalf("%s: unexpected frame %+v", codec.Name(), frame)
		}
		var event room.PuzzleSolvedEvent
		if err := frame.Decode(&event); err != nil {
			t.Fatalf("%s payload: %v", codec.Name(), err)
		}
		if event.Reward != state.ItemKeyPiece2 || !event.ObjectState.Open || len(event.Inventory) != 1 {
			t.Fatalf("%s: unexpected payload %+v", codec.Name(), event)
		}
	}
}

func TestJSONEventUsesSnakeCasePayload(t *testing.T) {
	data, err := EncodeEvent(JSON, room.Delivery{Type: room.EventPlayerMoved, Payload: room.PlayerMovedEvent{
		PlayerID: "p1",
		Position: state.Vec2{X: 3, Y: 4},
		Facing:   state.FacingLeft,
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload, ok := decoded["data"].(map[string]any)
	if !ok || payload["player_id"] != "p1" || payload["facing"] != "left" {
		t.Fatalf("unexpected frame %s", data)
	}
}

func TestAckRejectAndHeartbeatFrames(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		data, err := EncodeCommandReject(codec, CommandReject{Seq: 4, Reason: room.CommandRejectQueueLimit, Retry: true})
		if err != nil {
			t.Fatalf("encode reject: %v", err)
		}
		frame, err := DecodeServerFrame(codec, data)
		if err != nil {
			t.Fatalf("decode reject: %v", err)
		}
		if frame.Type != TypeCommandReject || frame.Seq != 4 || !frame.Retry || frame.HasData() {
			t.Fatalf("%s: unexpected reject %+v", codec.Name(), frame)
		}

		data, err = EncodeHeartbeat(codec, Heartbeat{ServerTime: 10, ClientTime: 5, RTTMillis: 12})
		if err != nil {
			t.Fatalf("encode heartbeat: %v", err)
		}
		frame, err = DecodeServerFrame(codec, data)
		if err != nil {
			t.Fatalf("decode heartbeat: %v", err)
		}
		if frame.Type != TypeHeartbeat || frame.RTTMillis != 12 || frame.ClientTime != 5 {
			t.Fatalf("%s: unexpected heartbeat %+v", codec.Name(), frame)
		}
	}
}

func TestMsgpackClientMessage(t *testing.T) {
	seq := uint64(2)
	data, err := EncodeClientMessage(Msgpack, ClientMessage{Type: TypeSolve, PuzzleID: "clock", Answer: "3:15", Seq: &seq})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := DecodeClientMessage(Msgpack, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.PuzzleID != "clock" || msg.Answer != "3:15" || msg.CommandSeq() != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestCodecByName(t *testing.T) {
	if c, err := CodecByName(""); err != nil || c.Name() != CodecJSON {
		t.Fatalf("expected json default, got %v %v", c, err)
	}
	if c, err := CodecByName("MsgPack"); err != nil || c.Name() != CodecMsgpack {
		t.Fatalf("expected msgpack, got %v %v", c, err)
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Fatalf("expected unknown codec to fail")
	}
}

func TestClientSchemaListsMessageTypes(t *testing.T) {
	data, err := json.Marshal(ClientSchema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	text := string(data)
	for _, want := range []string{"solve_puzzle", "piece_index", "quick_message"} {
		if !strings.Contains(text, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
