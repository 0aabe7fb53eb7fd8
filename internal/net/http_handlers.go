package net

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/net/ws"
	"locked-study/server/internal/observability"
	"locked-study/server/internal/room"
	"locked-study/server/internal/session"
	"locked-study/server/internal/state"
	"locked-study/server/internal/telemetry"
	"locked-study/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Publisher     logging.Publisher
	Router        *logging.Router
	Observability observability.Config
	Clock         func() time.Time
}

type roomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

type roomResponse struct {
	RoomID    string       `json:"roomId"`
	PlayerID  string       `json:"playerId"`
	Player    state.Player `json:"player"`
	ShareLink string       `json:"shareLink"`
	Socket    string       `json:"socket"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func NewHTTPHandler(store *room.Store, hub *session.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                      `json:"status"`
			ServerTime int64                       `json:"serverTime"`
			Rooms      []room.Info                 `json:"rooms"`
			Players    []session.DiagnosticsPlayer `json:"players"`
			TickRate   int                         `json:"tickRate"`
			Pending    int                         `json:"pendingRemovals"`
			Telemetry  any                         `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: clock().UnixMilli(),
			Rooms:      store.Rooms(),
			Players:    hub.Diagnostics(),
			TickRate:   store.Config().TickRate,
			Pending:    hub.PendingRemovals(),
		}
		if cfg.Router != nil {
			payload.Telemetry = cfg.Router.Stats()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/api/rooms/create", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		req, ok := decodeRoomRequest(w, r)
		if !ok {
			return
		}
		created, host, err := store.CreateRoom(req.PlayerName)
		if err != nil {
			roomError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, newRoomResponse(created.ID(), host))
	})

	mux.HandleFunc("/api/rooms/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		req, ok := decodeRoomRequest(w, r)
		if !ok {
			return
		}
		if req.RoomID == "" {
			writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: "missing roomId", Kind: state.Kind(state.ErrValidationFailed)})
			return
		}
		joined, player, err := store.JoinRoom(req.RoomID, req.PlayerName, req.PlayerID)
		if err != nil {
			roomError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, newRoomResponse(joined.ID(), player))
	})

	mux.HandleFunc("/api/rooms/{id}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		snapshot, err := store.GetState(r.PathValue("id"))
		if err != nil {
			roomError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, snapshot)
	})

	mux.HandleFunc("/api/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"version": proto.Version,
			"client":  proto.ClientSchema(),
			"server":  proto.ServerSchema(),
		})
	})

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger, Publisher: cfg.Publisher, Clock: clock})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		logger.Printf("pprof routes enabled under /debug/pprof/")
	}

	return mux
}

func newRoomResponse(roomID string, player state.Player) roomResponse {
	return roomResponse{
		RoomID:    roomID,
		PlayerID:  player.ID,
		Player:    player,
		ShareLink: "/room/" + roomID,
		Socket:    "/ws?room=" + roomID + "&id=" + player.ID,
	}
}

func decodeRoomRequest(w nethttp.ResponseWriter, r *nethttp.Request) (roomRequest, bool) {
	var req roomRequest
	if r.Body == nil {
		return req, true
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return req, false
	}
	return req, true
}

// roomError writes err with a status derived from its kind.
func roomError(w nethttp.ResponseWriter, err error) {
	status := nethttp.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrNotFound):
		status = nethttp.StatusNotFound
	case errors.Is(err, state.ErrInvalidState):
		status = nethttp.StatusConflict
	case errors.Is(err, state.ErrValidationFailed), errors.Is(err, state.ErrPreconditionUnmet):
		status = nethttp.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: state.Kind(err)})
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
