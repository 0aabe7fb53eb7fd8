package room

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"locked-study/server/internal/state"
	"locked-study/server/logging"
	loggingLifecycle "locked-study/server/logging/lifecycle"
)

// HostColor is reserved for the room creator.
const HostColor = "#D4AF37"

var playerPalette = []string{HostColor, "#ffffff", "#10b981", "#ef4444", "#3b82f6"}

const (
	spawnX       = 400.0
	spawnY       = 300.0
	spawnSpacing = 50.0
)

// Join adds a player to the lobby. A known playerID is accepted in any
// status and returns the existing member unchanged with rejoined set.
func (r *Room) Join(name, playerID string) (state.Player, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return state.Player{}, false, state.ErrRoomClosed
	}
	if playerID != "" {
		if existing, ok := r.state.Player(playerID); ok {
			return *existing, true, nil
		}
	}
	if r.state.Status != state.StatusLobby {
		return state.Player{}, false, state.ErrRoomAlreadyStarted
	}
	if r.state.PlayerCount() >= state.MaxPlayers {
		return state.Player{}, false, state.ErrRoomFull
	}

	if playerID == "" {
		playerID = uuid.NewString()
	}
	count := r.state.PlayerCount()
	isHost := r.state.HostID == ""
	spawn := r.resolver.ClampToBounds(state.Vec2{X: spawnX + float64(count)*spawnSpacing, Y: spawnY})
	player := state.Player{
		ID:       playerID,
		Name:     r.sanitizeName(name, count+1),
		Color:    r.pickColorLocked(isHost),
		Position: spawn,
		Facing:   state.DefaultFacing,
		Status:   state.ConnectionConnecting,
		IsHost:   isHost,
	}
	if isHost {
		r.state.HostID = player.ID
	}
	r.state.AddPlayer(player)

	r.emitLocked([]Delivery{toOthers(EventPlayerJoined, player.ID, PlayerJoinedEvent{Player: player})})
	loggingLifecycle.PlayerJoined(
		context.Background(),
		r.publisher,
		r.tick,
		logging.PlayerRef(player.ID),
		loggingLifecycle.PlayerJoinedPayload{
			Name:   player.Name,
			Color:  player.Color,
			SpawnX: spawn.X,
			SpawnY: spawn.Y,
			Host:   isHost,
		},
		nil,
	)
	return player, false, nil
}

func (r *Room) sanitizeName(name string, ordinal int) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > r.cfg.MaxNameLength {
		name = string([]rune(name)[:r.cfg.MaxNameLength])
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", ordinal)
	}
	return name
}

func (r *Room) pickColorLocked(isHost bool) string {
	used := make(map[string]bool, r.state.PlayerCount())
	for _, p := range r.state.Players() {
		used[p.Color] = true
	}
	if isHost && !used[HostColor] {
		return HostColor
	}
	for _, color := range playerPalette[1:] {
		if !used[color] {
			return color
		}
	}
	return playerPalette[len(playerPalette)-1]
}

// Connect marks a member connected and queues the full snapshot for that
// member alone. Reconnecting within the grace window restores the player as
// it was.
func (r *Room) Connect(playerID string) (state.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return state.Snapshot{}, state.ErrRoomClosed
	}
	player, ok := r.state.Player(playerID)
	if !ok {
		return state.Snapshot{}, state.ErrPlayerNotFound
	}
	reconnect := player.Status == state.ConnectionDisconnected
	player.Status = state.ConnectionConnected
	r.refreshIdleLocked()

	snapshot := r.state.Snapshot()
	r.emitLocked([]Delivery{
		toActor(EventRoomState, playerID, snapshot),
		toOthers(EventPlayerStatus, playerID, PlayerStatusEvent{PlayerID: playerID, Status: player.Status}),
	})
	if reconnect {
		loggingLifecycle.PlayerReconnected(context.Background(), r.publisher, r.tick, logging.PlayerRef(playerID), nil)
	}
	return snapshot, nil
}

// Disconnect marks a member disconnected. The member keeps its slot until
// Remove is called.
func (r *Room) Disconnect(playerID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.state.Player(playerID)
	if !ok {
		return state.ErrPlayerNotFound
	}
	if player.Status == state.ConnectionDisconnected {
		return nil
	}
	player.Status = state.ConnectionDisconnected
	delete(r.intents, playerID)
	r.refreshIdleLocked()

	r.emitLocked([]Delivery{
		toOthers(EventPlayerStatus, playerID, PlayerStatusEvent{PlayerID: playerID, Status: player.Status}),
	})
	loggingLifecycle.PlayerDisconnected(
		context.Background(),
		r.publisher,
		r.tick,
		logging.PlayerRef(playerID),
		loggingLifecycle.PlayerDisconnectedPayload{Reason: reason},
		nil,
	)
	return nil
}

// Remove deletes a member for good. Remaining members keep their ids and
// colors; the host role passes to the earliest remaining member.
func (r *Room) Remove(playerID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.removeLocked(playerID, reason)
	if err != nil {
		return err
	}
	out = append(out, r.evaluateCoopLocked()...)
	r.emitLocked(out)
	return nil
}

// RemoveIfDisconnected removes playerID only while it is still marked
// disconnected. It reports whether the player was removed; a player that
// reconnected in the meantime is kept.
func (r *Room) RemoveIfDisconnected(playerID, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.state.Player(playerID)
	if !ok || player.Status != state.ConnectionDisconnected {
		return false
	}
	out, err := r.removeLocked(playerID, reason)
	if err != nil {
		return false
	}
	out = append(out, r.evaluateCoopLocked()...)
	r.emitLocked(out)
	return true
}

// HasPlayer reports whether playerID is a member of the room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.state.Player(playerID)
	return ok
}

func (r *Room) removeLocked(playerID, reason string) ([]Delivery, error) {
	if !r.state.RemovePlayer(playerID) {
		return nil, state.ErrPlayerNotFound
	}
	delete(r.intents, playerID)
	if r.state.HostID == playerID {
		r.state.HostID = ""
		if remaining := r.state.Players(); len(remaining) > 0 {
			remaining[0].IsHost = true
			r.state.HostID = remaining[0].ID
		}
	}
	r.refreshIdleLocked()

	loggingLifecycle.PlayerRemoved(
		context.Background(),
		r.publisher,
		r.tick,
		logging.PlayerRef(playerID),
		loggingLifecycle.PlayerDisconnectedPayload{Reason: reason},
		nil,
	)
	return []Delivery{toRoom(EventPlayerLeft, playerID, PlayerLeftEvent{
		PlayerID: playerID,
		Reason:   reason,
		HostID:   r.state.HostID,
	})}, nil
}

// ConnectedCount reports members with a live connection.
func (r *Room) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedLocked()
}

func (r *Room) connectedLocked() int {
	count := 0
	for _, p := range r.state.Players() {
		if p.Status == state.ConnectionConnected {
			count++
		}
	}
	return count
}

func (r *Room) refreshIdleLocked() {
	if r.connectedLocked() > 0 {
		r.idleSince = time.Time{}
		return
	}
	if r.idleSince.IsZero() {
		r.idleSince = r.deps.Clock()
	}
}
