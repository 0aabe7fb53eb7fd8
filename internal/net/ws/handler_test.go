package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/room"
	"locked-study/server/internal/session"
	"locked-study/server/internal/state"
)

type wsFixture struct {
	store *room.Store
	hub   *session.Hub
	srv   *httptest.Server
	room  *room.Room
	host  state.Player
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := room.NewStore(room.DefaultConfig(), room.Deps{})
	hub := session.NewHub(store, session.DefaultConfig(), session.Deps{})
	store.Start(ctx)

	r, host, err := store.CreateRoom("Ada")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	handler := NewHandler(hub, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		store.Shutdown()
		cancel()
	})
	return &wsFixture{store: store, hub: hub, srv: srv, room: r, host: host}
}

func websocketURL(t *testing.T, baseURL, roomID, playerID, codec string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	query := parsed.Query()
	query.Set("room", roomID)
	query.Set("id", playerID)
	if codec != "" {
		query.Set("codec", codec)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func dial(t *testing.T, f *wsFixture, playerID, codec string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, f.srv.URL, f.room.ID(), playerID, codec), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func send(t *testing.T, conn *websocket.Conn, codec proto.Codec, msg proto.ClientMessage) {
	t.Helper()
	data, err := proto.EncodeClientMessage(codec, msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.Type, err)
	}
	if err := conn.WriteMessage(codec.MessageType(), data); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, codec proto.Codec, frameType string) proto.ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", frameType, err)
		}
		frame, err := proto.DecodeServerFrame(codec, payload)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Type == frameType {
			return frame
		}
	}
}

func seq(v uint64) *uint64 { return &v }

func TestHandleSendsSnapshotFirst(t *testing.T) {
	f := newWSFixture(t)
	conn := dial(t, f, f.host.ID, "")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read initial state: %v", err)
	}
	frame, err := proto.DecodeServerFrame(proto.JSON, payload)
	if err != nil {
		t.Fatalf("decode initial state: %v", err)
	}
	if frame.Type != string(room.EventRoomState) {
		t.Fatalf("expected room_state first, got %s", frame.Type)
	}
	var snapshot state.Snapshot
	if err := frame.Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	player, ok := snapshot.Player(f.host.ID)
	if !ok || player.Status != state.ConnectionConnected || snapshot.RoomID != f.room.ID() {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestHandleAcksRejectsAndSuppressesDuplicates(t *testing.T) {
	f := newWSFixture(t)
	conn := dial(t, f, f.host.ID, "")
	readUntil(t, conn, proto.JSON, string(room.EventRoomState))

	send(t, conn, proto.JSON, proto.ClientMessage{Type: proto.TypeStartGame, Seq: seq(1)})
	ack := readUntil(t, conn, proto.JSON, proto.TypeCommandAck)
	if ack.Seq != 1 {
		t.Fatalf("expected ack for seq 1, got %+v", ack)
	}
	readUntil(t, conn, proto.JSON, string(room.EventGameStarted))

	send(t, conn, proto.JSON, proto.ClientMessage{Type: proto.TypeStartGame, Seq: seq(1)})
	if dup := readUntil(t, conn, proto.JSON, proto.TypeCommandAck); dup.Seq != 1 {
		t.Fatalf("expected duplicate ack for seq 1, got %+v", dup)
	}

	send(t, conn, proto.JSON, proto.ClientMessage{Type: proto.TypeSolve, Seq: seq(2)})
	reject := readUntil(t, conn, proto.JSON, proto.TypeCommandReject)
	if reject.Seq != 2 || reject.Reason != session.CommandRejectInvalidCommand || reject.Retry {
		t.Fatalf("unexpected reject %+v", reject)
	}
}

func TestHandleRoundTripsGameplayOverMsgpack(t *testing.T) {
	f := newWSFixture(t)
	conn := dial(t, f, f.host.ID, proto.CodecMsgpack)
	readUntil(t, conn, proto.Msgpack, string(room.EventRoomState))

	send(t, conn, proto.Msgpack, proto.ClientMessage{Type: proto.TypeStartGame, Seq: seq(1)})
	readUntil(t, conn, proto.Msgpack, string(room.EventGameStarted))

	send(t, conn, proto.Msgpack, proto.ClientMessage{Type: proto.TypeExamine, ObjectID: "book", Seq: seq(2)})
	frame := readUntil(t, conn, proto.Msgpack, string(room.EventObjectExamined))
	var examined room.ObjectExaminedEvent
	if err := frame.Decode(&examined); err != nil {
		t.Fatalf("decode examined: %v", err)
	}
	if examined.ObjectID != "book" || !examined.State.Examined {
		t.Fatalf("unexpected examine payload %+v", examined)
	}
}

func TestHandleHeartbeatAndMalformedFrames(t *testing.T) {
	f := newWSFixture(t)
	conn := dial(t, f, f.host.ID, "")
	readUntil(t, conn, proto.JSON, string(room.EventRoomState))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	sentAt := time.Now().UnixMilli()
	send(t, conn, proto.JSON, proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: sentAt})
	beat := readUntil(t, conn, proto.JSON, proto.TypeHeartbeat)
	if beat.ClientTime != sentAt || beat.ServerTime == 0 {
		t.Fatalf("unexpected heartbeat %+v", beat)
	}

	diag := f.hub.Diagnostics()
	if len(diag) != 1 || diag[0].LastHeartbeat == 0 {
		t.Fatalf("expected heartbeat in diagnostics, got %+v", diag)
	}
}

func TestHandleRejectsUnknownPlayer(t *testing.T) {
	f := newWSFixture(t)
	conn := dial(t, f, "ghost", "")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation || closeErr.Text != state.ErrNotFound.Error() {
		t.Fatalf("unexpected close %+v", closeErr)
	}
}

func TestHandleRequiresRoomAndID(t *testing.T) {
	f := newWSFixture(t)
	resp, err := http.Get(f.srv.URL + "/ws?id=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLeaveRoomRemovesPlayer(t *testing.T) {
	f := newWSFixture(t)
	_, guest, err := f.store.JoinRoom(f.room.ID(), "Bea", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	hostConn := dial(t, f, f.host.ID, "")
	readUntil(t, hostConn, proto.JSON, string(room.EventRoomState))
	guestConn := dial(t, f, guest.ID, "")
	readUntil(t, guestConn, proto.JSON, string(room.EventRoomState))

	send(t, guestConn, proto.JSON, proto.ClientMessage{Type: proto.TypeLeave, Seq: seq(1)})
	frame := readUntil(t, hostConn, proto.JSON, string(room.EventPlayerLeft))
	var left room.PlayerLeftEvent
	if err := frame.Decode(&left); err != nil {
		t.Fatalf("decode player_left: %v", err)
	}
	if left.PlayerID != guest.ID || left.HostID != f.host.ID {
		t.Fatalf("unexpected player_left %+v", left)
	}
}
