package puzzles

import (
	"fmt"

	"locked-study/server/internal/state"
)

// Submission carries the player's attempt.
type Submission struct {
	Answer     string
	PieceIndex *int
	Verdict    *bool
}

// Outcome reports what a Solve call did to the room.
type Outcome struct {
	PuzzleID      string
	ObjectID      string
	Solved        bool
	AlreadySolved bool
	Reward        string
	RewardGranted bool
	// Placed and Progress describe a jigsaw placement.
	Placed   bool
	Progress int
	Total    int
	Effect   Effect
}

// Options tune the engine.
type Options struct {
	// TrustClientVerdicts lets client-side puzzles (colour mix, slider)
	// report their own verdict.
	TrustClientVerdicts bool
}

// Engine validates puzzle submissions against a room. It holds no room
// state; callers serialize access to the room they pass in.
type Engine struct {
	defs  map[string]Definition
	order []string
}

// NewEngine indexes definitions.
func NewEngine(defs []Definition, opts Options) *Engine {
	e := &Engine{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if opts.TrustClientVerdicts && (def.Kind == KindColorSet || def.Kind == KindSequence) {
			def.TrustVerdict = true
		}
		if _, exists := e.defs[def.ID]; !exists {
			e.order = append(e.order, def.ID)
		}
		e.defs[def.ID] = def
	}
	return e
}

// Definition looks up a puzzle.
func (e *Engine) Definition(id string) (Definition, bool) {
	if e == nil {
		return Definition{}, false
	}
	def, ok := e.defs[id]
	return def, ok
}

// IDs lists puzzle ids in declaration order.
func (e *Engine) IDs() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.order...)
}

// ForObject finds the puzzle attached to an object.
func (e *Engine) ForObject(objectID string) (Definition, bool) {
	if e == nil {
		return Definition{}, false
	}
	for _, id := range e.order {
		if def := e.defs[id]; def.ObjectID == objectID {
			return def, true
		}
	}
	return Definition{}, false
}

// Init creates default puzzle state for every definition.
func (e *Engine) Init(room *state.Room) {
	if e == nil || room == nil {
		return
	}
	for _, id := range e.order {
		p := room.Puzzle(id)
		if e.defs[id].Kind == KindJigsaw && len(p.Pieces) != state.JigsawPieces {
			p.Pieces = make([]bool, state.JigsawPieces)
		}
	}
}

// CheckPrerequisites reports whether the puzzle may be attempted.
func (e *Engine) CheckPrerequisites(room *state.Room, def Definition) error {
	for _, prereq := range def.Prerequisites {
		if p, ok := room.Puzzles[prereq]; !ok || !p.Solved {
			return fmt.Errorf("%w: %s requires %s", ErrPrerequisite, def.ID, prereq)
		}
	}
	if def.RequiresItem != "" && !room.Inventory.Has(def.RequiresItem) {
		return fmt.Errorf("%w: %s", state.ErrItemNotHeld, def.RequiresItem)
	}
	return nil
}

// Solve attempts a puzzle. A failed attempt returns an error and leaves the
// room untouched. A solved puzzle reports AlreadySolved and grants nothing.
func (e *Engine) Solve(room *state.Room, puzzleID string, sub Submission) (Outcome, error) {
	def, ok := e.Definition(puzzleID)
	if !ok {
		return Outcome{PuzzleID: puzzleID}, fmt.Errorf("%w: %s", state.ErrPuzzleNotFound, puzzleID)
	}
	out := Outcome{PuzzleID: def.ID, ObjectID: def.ObjectID, Reward: def.Reward}

	if existing, ok := room.Puzzles[def.ID]; ok && existing.Solved {
		out.AlreadySolved = true
		out.Solved = true
		if def.Kind == KindJigsaw {
			out.Progress = existing.PlacedPieces()
			out.Total = state.JigsawPieces
		}
		return out, nil
	}

	if err := e.CheckPrerequisites(room, def); err != nil {
		return out, err
	}

	if def.Kind == KindJigsaw {
		return e.placePiece(room, def, sub, out)
	}

	if def.Kind != KindItem {
		if def.TrustVerdict && sub.Verdict != nil {
			if !*sub.Verdict {
				return out, ErrIncorrectAnswer
			}
		} else if err := validate(def, room.Secrets, sub.Answer); err != nil {
			return out, err
		}
	}

	return e.markSolved(room, def, out), nil
}

func (e *Engine) placePiece(room *state.Room, def Definition, sub Submission, out Outcome) (Outcome, error) {
	out.Total = state.JigsawPieces
	if sub.PieceIndex == nil {
		return out, fmt.Errorf("%w: piece_index is required", ErrMalformedAnswer)
	}
	index := *sub.PieceIndex
	if index < 0 || index >= state.JigsawPieces {
		return out, fmt.Errorf("%w: piece_index %d out of range", ErrMalformedAnswer, index)
	}

	p := room.Puzzle(def.ID)
	if len(p.Pieces) != state.JigsawPieces {
		pieces := make([]bool, state.JigsawPieces)
		copy(pieces, p.Pieces)
		p.Pieces = pieces
	}
	if !p.Pieces[index] {
		p.Pieces[index] = true
		out.Placed = true
	}
	out.Progress = p.PlacedPieces()
	if out.Progress < state.JigsawPieces {
		return out, nil
	}
	out = e.markSolved(room, def, out)
	out.Progress = state.JigsawPieces
	return out, nil
}

func (e *Engine) markSolved(room *state.Room, def Definition, out Outcome) Outcome {
	p := room.Puzzle(def.ID)
	p.Solved = true
	if def.Effect.Reveal {
		p.Revealed = true
	}
	ApplyEffect(room, def.Effect)
	out.Effect = def.Effect
	out.Solved = true
	if def.Reward != "" {
		out.RewardGranted = room.Inventory.Add(def.Reward)
	}
	return out
}
