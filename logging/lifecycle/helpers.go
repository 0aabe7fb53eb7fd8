package lifecycle

import (
	"context"

	"locked-study/server/logging"
)

const (
	// EventRoomCreated is emitted when a host opens a new room.
	EventRoomCreated logging.EventType = "lifecycle.room_created"
	// EventRoomClosed is emitted when a room is destroyed.
	EventRoomClosed logging.EventType = "lifecycle.room_closed"
	// EventPlayerJoined is emitted when a player joins a room.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player's connection drops.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventPlayerReconnected is emitted when a player returns inside the grace window.
	EventPlayerReconnected logging.EventType = "lifecycle.player_reconnected"
	// EventPlayerRemoved is emitted when a player leaves the room for good.
	EventPlayerRemoved logging.EventType = "lifecycle.player_removed"
	// EventGameStarted is emitted when the host starts the game.
	EventGameStarted logging.EventType = "lifecycle.game_started"
	// EventGameWon is emitted when the players escape.
	EventGameWon logging.EventType = "lifecycle.game_won"
)

// RoomPayload describes a room lifecycle change.
type RoomPayload struct {
	HostID  string `json:"hostId,omitempty"`
	Players int    `json:"players"`
	Reason  string `json:"reason,omitempty"`
}

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
	Host   bool    `json:"host,omitempty"`
}

// PlayerDisconnectedPayload captures why a player's connection ended.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// GameWonPayload records how the room was escaped.
type GameWonPayload struct {
	Method string `json:"method"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	})
}

// RoomCreated publishes a room creation event.
func RoomCreated(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoomPayload, extra map[string]any) {
	publish(ctx, pub, EventRoomCreated, logging.SeverityInfo, tick, actor, payload, extra)
}

// RoomClosed publishes a room teardown event.
func RoomClosed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoomPayload, extra map[string]any) {
	publish(ctx, pub, EventRoomClosed, logging.SeverityInfo, tick, actor, payload, extra)
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerJoined, logging.SeverityInfo, tick, actor, payload, extra)
}

// PlayerDisconnected publishes a connection drop.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDisconnected, logging.SeverityInfo, tick, actor, payload, extra)
}

// PlayerReconnected publishes a reconnect within the grace window.
func PlayerReconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, EventPlayerReconnected, logging.SeverityInfo, tick, actor, nil, extra)
}

// PlayerRemoved publishes the final removal of a player.
func PlayerRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerRemoved, logging.SeverityInfo, tick, actor, payload, extra)
}

// GameStarted publishes the lobby to in-progress transition.
func GameStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoomPayload, extra map[string]any) {
	publish(ctx, pub, EventGameStarted, logging.SeverityInfo, tick, actor, payload, extra)
}

// GameWon publishes the escape.
func GameWon(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GameWonPayload, extra map[string]any) {
	publish(ctx, pub, EventGameWon, logging.SeverityInfo, tick, actor, payload, extra)
}
