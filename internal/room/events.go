package room

import (
	"locked-study/server/internal/coop"
	"locked-study/server/internal/state"
)

// EventType names an outbound message.
type EventType string

const (
	EventRoomState      EventType = "room_state"
	EventPlayerJoined   EventType = "player_joined"
	EventPlayerLeft     EventType = "player_left"
	EventPlayerStatus   EventType = "player_status"
	EventPlayerMoved    EventType = "player_moved"
	EventObjectExamined EventType = "object_examined"
	EventItemPicked     EventType = "item_picked"
	EventPuzzleSolved   EventType = "puzzle_solved"
	EventPuzzleFailed   EventType = "puzzle_failed"
	EventJigsawProgress EventType = "jigsaw_progress"
	EventItemsCombined  EventType = "items_combined"
	EventUVRevealed     EventType = "uv_revealed"
	EventDoorUnlocked   EventType = "door_unlocked"
	EventCoopState      EventType = "coop_state"
	EventGameWon        EventType = "game_won"
	EventGameStarted    EventType = "game_started"
	EventNewMessage     EventType = "new_message"
	EventActionError    EventType = "action_error"
)

// Audience selects which connections receive a delivery.
type Audience int

const (
	AudienceRoom Audience = iota
	AudienceActor
	AudienceOthers
)

// Delivery is one outbound message produced by a room step.
type Delivery struct {
	Audience Audience
	PlayerID string
	Type     EventType
	Payload  any
}

// Includes reports whether playerID should receive d.
func (d Delivery) Includes(playerID string) bool {
	switch d.Audience {
	case AudienceActor:
		return playerID == d.PlayerID
	case AudienceOthers:
		return playerID != d.PlayerID
	default:
		return true
	}
}

func toRoom(eventType EventType, actor string, payload any) Delivery {
	return Delivery{Audience: AudienceRoom, PlayerID: actor, Type: eventType, Payload: payload}
}

func toActor(eventType EventType, actor string, payload any) Delivery {
	return Delivery{Audience: AudienceActor, PlayerID: actor, Type: eventType, Payload: payload}
}

func toOthers(eventType EventType, actor string, payload any) Delivery {
	return Delivery{Audience: AudienceOthers, PlayerID: actor, Type: eventType, Payload: payload}
}

type PlayerJoinedEvent struct {
	Player state.Player `json:"player"`
}

type PlayerLeftEvent struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
	HostID   string `json:"host_id,omitempty"`
}

type PlayerStatusEvent struct {
	PlayerID string                 `json:"player_id"`
	Status   state.ConnectionStatus `json:"status"`
}

type PlayerMovedEvent struct {
	PlayerID string                `json:"player_id"`
	Position state.Vec2            `json:"position"`
	Facing   state.FacingDirection `json:"facing"`
}

type ObjectExaminedEvent struct {
	PlayerID string            `json:"player_id"`
	ObjectID string            `json:"object_id"`
	State    state.ObjectState `json:"object_state"`
}

type ItemPickedEvent struct {
	PlayerID      string   `json:"player_id"`
	ObjectID      string   `json:"object_id"`
	ItemID        string   `json:"item_id"`
	AlreadyPicked bool     `json:"already_picked,omitempty"`
	Inventory     []string `json:"inventory"`
}

type PuzzleSolvedEvent struct {
	PlayerID      string            `json:"player_id"`
	PuzzleID      string            `json:"puzzle_id"`
	ObjectID      string            `json:"object_id,omitempty"`
	ObjectState   state.ObjectState `json:"object_state"`
	Reward        string            `json:"reward,omitempty"`
	AlreadySolved bool              `json:"already_solved,omitempty"`
	Inventory     []string          `json:"inventory"`
}

type PuzzleFailedEvent struct {
	PuzzleID string `json:"puzzle_id"`
	Reason   string `json:"reason"`
}

type JigsawProgressEvent struct {
	PlayerID string `json:"player_id"`
	PuzzleID string `json:"puzzle_id"`
	Pieces   []bool `json:"pieces"`
	Placed   int    `json:"placed"`
	Total    int    `json:"total"`
}

type ItemsCombinedEvent struct {
	PlayerID  string   `json:"player_id"`
	Consumed  []string `json:"consumed"`
	Produced  string   `json:"produced"`
	Inventory []string `json:"inventory"`
}

type UVRevealedEvent struct {
	PlayerID string `json:"player_id"`
	ObjectID string `json:"object_id"`
	Message  string `json:"message"`
}

type DoorUnlockedEvent struct {
	PlayerID string `json:"player_id"`
	Method   string `json:"method"`
}

type CoopStateEvent = coop.State

type GameWonEvent struct {
	Message string `json:"message"`
}

type GameStartedEvent struct {
	Status state.Status `json:"status"`
}

type ActionErrorEvent struct {
	Action  CommandType `json:"action"`
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
}

// WinMessage is broadcast with game_won.
const WinMessage = "You've escaped The Locked Study!"

const (
	UnlockMethodMasterKey   = "master_key"
	UnlockMethodCooperative = "cooperative"
)
