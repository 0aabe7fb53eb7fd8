package room

import "time"

// CommandType enumerates the inbound actions a room applies.
type CommandType string

const (
	CommandMove       CommandType = "player_move"
	CommandInput      CommandType = "player_input"
	CommandExamine    CommandType = "examine_object"
	CommandPickup     CommandType = "pickup_item"
	CommandSolve      CommandType = "solve_puzzle"
	CommandUseItem    CommandType = "use_item"
	CommandCombine    CommandType = "combine_keys"
	CommandUnlockDoor CommandType = "unlock_door"
	CommandChat       CommandType = "send_message"
	CommandQuickChat  CommandType = "quick_chat"
	CommandStartGame  CommandType = "start_game"
	CommandLeave      CommandType = "leave_room"
)

// MoveCommand carries a proposed absolute position.
type MoveCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InputCommand carries a direction held until the next input.
type InputCommand struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// TargetCommand names the object or item an action applies to.
type TargetCommand struct {
	ObjectID string `json:"objectId,omitempty"`
	ItemID   string `json:"itemId,omitempty"`
}

// SolveCommand carries a puzzle submission.
type SolveCommand struct {
	PuzzleID   string `json:"puzzleId"`
	Answer     string `json:"answer,omitempty"`
	PieceIndex *int   `json:"pieceIndex,omitempty"`
	Verdict    *bool  `json:"verdict,omitempty"`
}

// UseCommand applies a held item to a target object.
type UseCommand struct {
	ItemID   string `json:"itemId"`
	TargetID string `json:"targetId"`
}

// ChatCommand carries free text or a quick chat code.
type ChatCommand struct {
	Text  string `json:"text,omitempty"`
	Quick string `json:"quick,omitempty"`
}

// Command is an action staged for the room's next step.
type Command struct {
	Seq      uint64         `json:"seq,omitempty"`
	ActorID  string         `json:"actorId"`
	Type     CommandType    `json:"type"`
	IssuedAt time.Time      `json:"issuedAt"`
	Move     *MoveCommand   `json:"move,omitempty"`
	Input    *InputCommand  `json:"input,omitempty"`
	Target   *TargetCommand `json:"target,omitempty"`
	Solve    *SolveCommand  `json:"solve,omitempty"`
	Use      *UseCommand    `json:"use,omitempty"`
	Chat     *ChatCommand   `json:"chat,omitempty"`
}
