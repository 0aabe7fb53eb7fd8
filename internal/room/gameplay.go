package room

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"locked-study/server/internal/inventory"
	"locked-study/server/internal/puzzles"
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
	"locked-study/server/logging"
	loggingInventory "locked-study/server/logging/inventory"
	loggingLifecycle "locked-study/server/logging/lifecycle"
	loggingPuzzles "locked-study/server/logging/puzzles"
)

var errMissingPayload = fmt.Errorf("%w: missing payload", state.ErrValidationFailed)

// QuickMessages expands quick chat codes.
var QuickMessages = map[string]string{
	"look":  "Look here!",
	"found": "I found something!",
	"help":  "I need help!",
	"idea":  "I have an idea!",
	"yes":   "Yes!",
	"no":    "No!",
}

// applyLocked runs one command against the room. Failures never mutate
// state and are reported to the actor alone.
func (r *Room) applyLocked(cmd Command) []Delivery {
	player, ok := r.state.Player(cmd.ActorID)
	if !ok {
		return []Delivery{r.rejectLocked(cmd, state.ErrPlayerNotFound)}
	}

	var (
		out []Delivery
		err error
	)
	switch cmd.Type {
	case CommandMove:
		out, err = r.applyMove(player, cmd.Move)
	case CommandInput:
		err = r.applyInput(player, cmd.Input)
	case CommandExamine:
		out, err = r.applyExamine(player, cmd.Target)
	case CommandPickup:
		out, err = r.applyPickup(player, cmd.Target)
	case CommandSolve:
		out, err = r.applySolve(player, cmd.Solve)
	case CommandUseItem:
		out, err = r.applyUse(player, cmd.Use)
	case CommandCombine:
		out, err = r.applyCombine(player)
	case CommandUnlockDoor:
		out, err = r.applyUnlockDoor(player)
	case CommandChat:
		out, err = r.applyChat(player, cmd.Chat, false)
	case CommandQuickChat:
		out, err = r.applyChat(player, cmd.Chat, true)
	case CommandStartGame:
		out, err = r.applyStart(player)
	case CommandLeave:
		out, err = r.removeLocked(player.ID, "left")
	default:
		err = fmt.Errorf("%w: unknown command %q", state.ErrValidationFailed, cmd.Type)
	}
	if err != nil {
		return append(out, r.rejectLocked(cmd, err))
	}
	return out
}

func (r *Room) rejectLocked(cmd Command, err error) Delivery {
	ctx := context.Background()
	actor := logging.PlayerRef(cmd.ActorID)
	switch cmd.Type {
	case CommandSolve:
		puzzleID := ""
		if cmd.Solve != nil {
			puzzleID = cmd.Solve.PuzzleID
		}
		loggingPuzzles.PuzzleFailed(ctx, r.publisher, r.tick, actor, loggingPuzzles.FailedPayload{PuzzleID: puzzleID, Reason: err.Error()}, nil)
		if errors.Is(err, state.ErrValidationFailed) {
			return toActor(EventPuzzleFailed, cmd.ActorID, PuzzleFailedEvent{PuzzleID: puzzleID, Reason: err.Error()})
		}
	case CommandPickup, CommandUseItem, CommandCombine:
		itemID := ""
		switch {
		case cmd.Use != nil:
			itemID = cmd.Use.ItemID
		case cmd.Target != nil:
			itemID = cmd.Target.ItemID
		}
		loggingInventory.ActionRejected(ctx, r.publisher, r.tick, actor, loggingInventory.RejectedPayload{
			Action: string(cmd.Type),
			ItemID: itemID,
			Reason: err.Error(),
		}, nil)
	}
	return toActor(EventActionError, cmd.ActorID, ActionErrorEvent{
		Action:  cmd.Type,
		Kind:    state.Kind(err),
		Message: err.Error(),
	})
}

func (r *Room) requireInProgress() error {
	switch r.state.Status {
	case state.StatusLobby:
		return state.ErrGameNotStarted
	case state.StatusWon:
		return state.ErrGameOver
	default:
		return nil
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (r *Room) applyMove(player *state.Player, move *MoveCommand) ([]Delivery, error) {
	if move == nil {
		return nil, errMissingPayload
	}
	if !finite(move.X, move.Y) {
		return nil, fmt.Errorf("%w: position must be finite", state.ErrValidationFailed)
	}
	proposed := state.Vec2{X: move.X, Y: move.Y}
	result := r.resolver.Resolve(player.Position, proposed, r.skipLocked)
	if !result.Moved {
		if proposed == player.Position {
			return nil, nil
		}
		// The client predicted a move the room refused.
		return []Delivery{toActor(EventPlayerMoved, player.ID, r.movedEvent(player))}, nil
	}
	player.Position = result.Position
	player.Facing = result.Facing
	return []Delivery{toRoom(EventPlayerMoved, player.ID, r.movedEvent(player))}, nil
}

func (r *Room) movedEvent(player *state.Player) PlayerMovedEvent {
	return PlayerMovedEvent{PlayerID: player.ID, Position: player.Position, Facing: player.Facing}
}

func (r *Room) applyInput(player *state.Player, input *InputCommand) error {
	if input == nil {
		return errMissingPayload
	}
	if !finite(input.DX, input.DY) {
		return fmt.Errorf("%w: direction must be finite", state.ErrValidationFailed)
	}
	if input.DX == 0 && input.DY == 0 {
		delete(r.intents, player.ID)
		return nil
	}
	r.intents[player.ID] = state.Vec2{X: input.DX, Y: input.DY}
	return nil
}

// advanceIntentsLocked moves every player holding a direction by dt.
func (r *Room) advanceIntentsLocked(dt float64) []Delivery {
	if len(r.intents) == 0 || dt <= 0 {
		return nil
	}
	var out []Delivery
	for _, player := range r.state.Players() {
		intent, ok := r.intents[player.ID]
		if !ok {
			continue
		}
		result := r.resolver.Step(player.Position, intent.X, intent.Y, dt, r.skipLocked)
		if !result.Moved {
			continue
		}
		player.Position = result.Position
		player.Facing = result.Facing
		out = append(out, toRoom(EventPlayerMoved, player.ID, r.movedEvent(player)))
	}
	return out
}

// evaluateCoopLocked recomputes plate and door conditions from live
// positions and reports a change.
func (r *Room) evaluateCoopLocked() []Delivery {
	current := r.coop.EvaluateRoom(r.state)
	if current.Equal(r.lastCoop) {
		return nil
	}
	r.lastCoop = current
	return []Delivery{toRoom(EventCoopState, "", CoopStateEvent(current))}
}

func (r *Room) applyExamine(player *state.Player, target *TargetCommand) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	if target == nil || target.ObjectID == "" {
		return nil, errMissingPayload
	}
	obj, ok := r.deps.Catalog.Lookup(target.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrObjectNotFound, target.ObjectID)
	}
	if !obj.Interactable {
		return nil, fmt.Errorf("%w: %s", state.ErrNotInteractable, obj.ID)
	}
	objState := puzzles.Examine(r.state, obj)
	loggingPuzzles.ObjectExamined(context.Background(), r.publisher, r.tick, logging.PlayerRef(player.ID), loggingPuzzles.ExaminedPayload{ObjectID: obj.ID}, nil)
	return []Delivery{toRoom(EventObjectExamined, player.ID, ObjectExaminedEvent{
		PlayerID: player.ID,
		ObjectID: obj.ID,
		State:    objState,
	})}, nil
}

func (r *Room) applyPickup(player *state.Player, target *TargetCommand) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errMissingPayload
	}
	id := target.ItemID
	if id == "" {
		id = target.ObjectID
	}
	if id == "" {
		return nil, errMissingPayload
	}
	result, err := r.rules.Pickup(r.state, id)
	if err != nil {
		return nil, err
	}
	event := ItemPickedEvent{
		PlayerID:  player.ID,
		ObjectID:  result.ObjectID,
		ItemID:    result.ItemID,
		Inventory: r.state.Inventory.Items(),
	}
	if !result.Picked {
		event.AlreadyPicked = true
		return []Delivery{toActor(EventItemPicked, player.ID, event)}, nil
	}
	loggingInventory.ItemPicked(context.Background(), r.publisher, r.tick, logging.PlayerRef(player.ID), loggingInventory.ItemPayload{ItemID: result.ItemID}, nil)
	return []Delivery{toRoom(EventItemPicked, player.ID, event)}, nil
}

func (r *Room) applySolve(player *state.Player, solve *SolveCommand) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	if solve == nil || solve.PuzzleID == "" {
		return nil, errMissingPayload
	}
	outcome, err := r.puzzles.Solve(r.state, solve.PuzzleID, puzzles.Submission{
		Answer:     solve.Answer,
		PieceIndex: solve.PieceIndex,
		Verdict:    solve.Verdict,
	})
	if err != nil {
		return nil, err
	}
	def, _ := r.puzzles.Definition(outcome.PuzzleID)

	var out []Delivery
	if def.Kind == puzzles.KindJigsaw && !outcome.AlreadySolved {
		progress := JigsawProgressEvent{
			PlayerID: player.ID,
			PuzzleID: outcome.PuzzleID,
			Pieces:   append([]bool(nil), r.state.Puzzle(outcome.PuzzleID).Pieces...),
			Placed:   outcome.Progress,
			Total:    outcome.Total,
		}
		if !outcome.Placed {
			return []Delivery{toActor(EventJigsawProgress, player.ID, progress)}, nil
		}
		out = append(out, toRoom(EventJigsawProgress, player.ID, progress))
		if !outcome.Solved {
			return out, nil
		}
	}
	if def.Kind == puzzles.KindItem && outcome.Solved && !outcome.AlreadySolved {
		out = append(out, r.uvRevealed(player.ID, outcome))
	}
	return append(out, r.solvedLocked(player.ID, outcome)), nil
}

// solvedLocked reports a solve. Repeats go to the actor alone.
func (r *Room) solvedLocked(playerID string, outcome puzzles.Outcome) Delivery {
	event := PuzzleSolvedEvent{
		PlayerID:      playerID,
		PuzzleID:      outcome.PuzzleID,
		ObjectID:      outcome.ObjectID,
		Reward:        outcome.Reward,
		AlreadySolved: outcome.AlreadySolved,
		Inventory:     r.state.Inventory.Items(),
	}
	if outcome.ObjectID != "" {
		event.ObjectState = r.state.ObjectView(outcome.ObjectID)
	}
	if outcome.AlreadySolved {
		event.Reward = ""
		return toActor(EventPuzzleSolved, playerID, event)
	}
	loggingPuzzles.PuzzleSolved(context.Background(), r.publisher, r.tick, logging.PlayerRef(playerID), loggingPuzzles.SolvedPayload{
		PuzzleID: outcome.PuzzleID,
		Reward:   outcome.Reward,
	}, nil)
	return toRoom(EventPuzzleSolved, playerID, event)
}

func (r *Room) uvRevealed(playerID string, outcome puzzles.Outcome) Delivery {
	return toRoom(EventUVRevealed, playerID, UVRevealedEvent{
		PlayerID: playerID,
		ObjectID: outcome.ObjectID,
		Message:  outcome.Effect.Clue,
	})
}

func (r *Room) applyUse(player *state.Player, use *UseCommand) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	if use == nil || use.ItemID == "" {
		return nil, errMissingPayload
	}
	result, err := r.rules.Use(r.state, use.ItemID, use.TargetID)
	if err != nil {
		return nil, err
	}
	if result.Kind != inventory.UseCombined {
		loggingInventory.ItemUsed(context.Background(), r.publisher, r.tick, logging.PlayerRef(player.ID), loggingInventory.UsedPayload{
			ItemID:   result.ItemID,
			TargetID: result.TargetID,
			Effect:   string(result.Kind),
		}, nil)
	}
	switch result.Kind {
	case inventory.UseCombined:
		return []Delivery{r.combinedLocked(player.ID, result.Combine)}, nil
	case inventory.UseDoorUnlocked:
		return r.wonLocked(player.ID, UnlockMethodMasterKey), nil
	case inventory.UseRevealed:
		if result.Puzzle.AlreadySolved {
			return []Delivery{toActor(EventUVRevealed, player.ID, UVRevealedEvent{
				PlayerID: player.ID,
				ObjectID: world.ObjectNote,
				Message:  puzzles.HiddenNote,
			})}, nil
		}
		return []Delivery{
			r.uvRevealed(player.ID, result.Puzzle),
			r.solvedLocked(player.ID, result.Puzzle),
		}, nil
	default:
		return nil, nil
	}
}

func (r *Room) applyCombine(player *state.Player) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	result, err := r.rules.CombineKeys(r.state)
	if err != nil {
		return nil, err
	}
	return []Delivery{r.combinedLocked(player.ID, result)}, nil
}

func (r *Room) combinedLocked(playerID string, result inventory.CombineResult) Delivery {
	loggingInventory.ItemsCombined(context.Background(), r.publisher, r.tick, logging.PlayerRef(playerID), loggingInventory.CombinedPayload{
		Consumed: result.Consumed,
		Produced: result.Produced,
	}, nil)
	return toRoom(EventItemsCombined, playerID, ItemsCombinedEvent{
		PlayerID:  playerID,
		Consumed:  result.Consumed,
		Produced:  result.Produced,
		Inventory: r.state.Inventory.Items(),
	})
}

func (r *Room) applyUnlockDoor(player *state.Player) ([]Delivery, error) {
	if err := r.requireInProgress(); err != nil {
		return nil, err
	}
	if _, err := r.coop.Unlock(r.state); err != nil {
		return nil, err
	}
	return r.wonLocked(player.ID, UnlockMethodCooperative), nil
}

func (r *Room) wonLocked(playerID, method string) []Delivery {
	loggingLifecycle.GameWon(context.Background(), r.publisher, r.tick, logging.PlayerRef(playerID), loggingLifecycle.GameWonPayload{Method: method}, nil)
	return []Delivery{
		toRoom(EventDoorUnlocked, playerID, DoorUnlockedEvent{PlayerID: playerID, Method: method}),
		toRoom(EventGameWon, playerID, GameWonEvent{Message: WinMessage}),
	}
}

func (r *Room) applyChat(player *state.Player, chat *ChatCommand, quick bool) ([]Delivery, error) {
	if chat == nil {
		return nil, errMissingPayload
	}
	text := strings.TrimSpace(chat.Text)
	if quick {
		expanded, ok := QuickMessages[strings.ToLower(strings.TrimSpace(chat.Quick))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown quick message %q", state.ErrValidationFailed, chat.Quick)
		}
		text = expanded
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", state.ErrValidationFailed)
	}
	if utf8.RuneCountInString(text) > r.cfg.MaxChatLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", state.ErrValidationFailed, r.cfg.MaxChatLength)
	}
	msg := r.state.AppendMessage(state.ChatMessage{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Text:       text,
		IsQuick:    quick,
		Timestamp:  r.deps.Clock(),
	})
	return []Delivery{toRoom(EventNewMessage, player.ID, msg)}, nil
}

func (r *Room) applyStart(player *state.Player) ([]Delivery, error) {
	if r.state.HostID != player.ID {
		return nil, state.ErrNotHost
	}
	if r.state.Status != state.StatusLobby {
		return nil, state.ErrRoomAlreadyStarted
	}
	r.state.Status = state.StatusInProgress
	loggingLifecycle.GameStarted(context.Background(), r.publisher, r.tick, logging.PlayerRef(player.ID), loggingLifecycle.RoomPayload{
		HostID:  r.state.HostID,
		Players: r.state.PlayerCount(),
	}, nil)
	return []Delivery{toRoom(EventGameStarted, player.ID, GameStartedEvent{Status: r.state.Status})}, nil
}
