package state

import "time"

// Status is the room lifecycle phase.
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
)

// MaxPlayers bounds room membership.
const MaxPlayers = 4

// ObjectState holds the mutable runtime flags of a static object. A missing
// entry is equivalent to the zero value (closed, locked, untouched).
type ObjectState struct {
	Examined   bool   `json:"examined,omitempty"`
	Open       bool   `json:"open,omitempty"`
	Unlocked   bool   `json:"unlocked,omitempty"`
	PickedUp   bool   `json:"picked_up,omitempty"`
	Complete   bool   `json:"complete,omitempty"`
	UVRevealed bool   `json:"uv_revealed,omitempty"`
	Clue       string `json:"clue,omitempty"`
}

// JigsawPieces is the number of jigsaw pieces on the puzzle table.
const JigsawPieces = 9

// PuzzleState tracks solve progress for a single puzzle.
type PuzzleState struct {
	ID       string `json:"id"`
	Solved   bool   `json:"solved"`
	Pieces   []bool `json:"pieces,omitempty"`
	Revealed bool   `json:"revealed,omitempty"`
}

// Clone returns a deep copy.
func (p PuzzleState) Clone() PuzzleState {
	cloned := p
	if p.Pieces != nil {
		cloned.Pieces = append([]bool(nil), p.Pieces...)
	}
	return cloned
}

// PlacedPieces counts placed jigsaw pieces.
func (p PuzzleState) PlacedPieces() int {
	count := 0
	for _, placed := range p.Pieces {
		if placed {
			count++
		}
	}
	return count
}

// ChatMessage is one entry of the append-only room chat log.
type ChatMessage struct {
	Seq        uint64    `json:"seq"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Text       string    `json:"message"`
	IsQuick    bool      `json:"is_quick,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Room is the authoritative record for one escape-room session. It is not
// safe for concurrent use; the owning room actor serializes access.
type Room struct {
	ID        string
	HostID    string
	Status    Status
	Won       bool
	Secrets   Secrets
	Inventory Inventory
	Objects   map[string]*ObjectState
	Puzzles   map[string]*PuzzleState
	Messages  []ChatMessage
	CreatedAt time.Time

	players     map[string]*Player
	playerOrder []string
}

// Secrets holds the per-room generated answers.
type Secrets struct {
	LockCode  string `json:"-"`
	SafeCode  string `json:"-"`
	ClockTime string `json:"-"`
}

// NewRoom constructs an empty lobby.
func NewRoom(id string, secrets Secrets, now time.Time) *Room {
	return &Room{
		ID:        id,
		Status:    StatusLobby,
		Secrets:   secrets,
		Inventory: NewInventory(),
		Objects:   make(map[string]*ObjectState),
		Puzzles:   make(map[string]*PuzzleState),
		CreatedAt: now,
		players:   make(map[string]*Player),
	}
}

// Object returns the mutable state for id, creating the default entry.
func (r *Room) Object(id string) *ObjectState {
	obj, ok := r.Objects[id]
	if !ok {
		obj = &ObjectState{}
		r.Objects[id] = obj
	}
	return obj
}

// ObjectView returns the state for id without creating an entry.
func (r *Room) ObjectView(id string) ObjectState {
	if obj, ok := r.Objects[id]; ok && obj != nil {
		return *obj
	}
	return ObjectState{}
}

// Puzzle returns the mutable state for id, creating the default entry.
func (r *Room) Puzzle(id string) *PuzzleState {
	p, ok := r.Puzzles[id]
	if !ok {
		p = &PuzzleState{ID: id}
		r.Puzzles[id] = p
	}
	return p
}

// AddPlayer appends a player in join order. Existing ids are replaced in place.
func (r *Room) AddPlayer(player Player) *Player {
	if existing, ok := r.players[player.ID]; ok {
		*existing = player
		return existing
	}
	stored := player
	r.players[player.ID] = &stored
	r.playerOrder = append(r.playerOrder, player.ID)
	return &stored
}

// RemovePlayer deletes a player, reporting whether it existed.
func (r *Room) RemovePlayer(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	for i, existing := range r.playerOrder {
		if existing == id {
			r.playerOrder = append(r.playerOrder[:i:i], r.playerOrder[i+1:]...)
			break
		}
	}
	return true
}

// Player looks up a member by id.
func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// PlayerCount reports the number of members.
func (r *Room) PlayerCount() int {
	return len(r.playerOrder)
}

// Players returns members in join order. The pointers are live.
func (r *Room) Players() []*Player {
	players := make([]*Player, 0, len(r.playerOrder))
	for _, id := range r.playerOrder {
		players = append(players, r.players[id])
	}
	return players
}

// Positions returns the current position of every member keyed by id.
func (r *Room) Positions() map[string]Vec2 {
	positions := make(map[string]Vec2, len(r.players))
	for id, p := range r.players {
		positions[id] = p.Position
	}
	return positions
}

// AppendMessage records a chat entry and assigns its sequence number.
func (r *Room) AppendMessage(msg ChatMessage) ChatMessage {
	msg.Seq = uint64(len(r.Messages)) + 1
	r.Messages = append(r.Messages, msg)
	return msg
}

// Escape records the win. It is idempotent and reports whether this call
// changed the room.
func (r *Room) Escape() bool {
	if r.Won {
		return false
	}
	r.Won = true
	r.Status = StatusWon
	return true
}
