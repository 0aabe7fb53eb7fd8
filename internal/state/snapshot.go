package state

// Snapshot is an immutable copy of a room, safe to share across goroutines
// and to encode on the wire as the full room_state payload.
type Snapshot struct {
	RoomID    string                 `json:"room_id"`
	HostID    string                 `json:"host_id"`
	Status    Status                 `json:"status"`
	Won       bool                   `json:"won"`
	Players   []Player               `json:"players"`
	Inventory []string               `json:"inventory"`
	Objects   map[string]ObjectState `json:"objects_state"`
	Puzzles   map[string]PuzzleState `json:"puzzle_states"`
	Messages  []ChatMessage          `json:"messages"`
}

// Snapshot copies the room.
func (r *Room) Snapshot() Snapshot {
	snap := Snapshot{
		RoomID:    r.ID,
		HostID:    r.HostID,
		Status:    r.Status,
		Won:       r.Won,
		Players:   make([]Player, 0, len(r.playerOrder)),
		Inventory: r.Inventory.Items(),
		Objects:   make(map[string]ObjectState, len(r.Objects)),
		Puzzles:   make(map[string]PuzzleState, len(r.Puzzles)),
		Messages:  append([]ChatMessage(nil), r.Messages...),
	}
	for _, p := range r.Players() {
		snap.Players = append(snap.Players, *p)
	}
	for id, obj := range r.Objects {
		if obj != nil {
			snap.Objects[id] = *obj
		}
	}
	for id, p := range r.Puzzles {
		if p != nil {
			snap.Puzzles[id] = p.Clone()
		}
	}
	return snap
}

// Player finds a member of the snapshot by id.
func (s Snapshot) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
