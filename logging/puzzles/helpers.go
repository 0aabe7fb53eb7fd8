package puzzles

import (
	"context"

	"locked-study/server/logging"
)

const (
	// EventPuzzleSolved is emitted when a puzzle transitions to solved.
	EventPuzzleSolved logging.EventType = "puzzles.solved"
	// EventPuzzleFailed is emitted when a submission is rejected.
	EventPuzzleFailed logging.EventType = "puzzles.failed"
	// EventObjectExamined is emitted when a player inspects an object.
	EventObjectExamined logging.EventType = "puzzles.object_examined"
)

// SolvedPayload describes a solve.
type SolvedPayload struct {
	PuzzleID string `json:"puzzleId"`
	Reward   string `json:"reward,omitempty"`
}

// FailedPayload describes a rejected submission. The answer itself is not
// logged.
type FailedPayload struct {
	PuzzleID string `json:"puzzleId"`
	Reason   string `json:"reason"`
}

// ExaminedPayload names the inspected object.
type ExaminedPayload struct {
	ObjectID string `json:"objectId"`
}

func target(id string) []logging.EntityRef {
	if id == "" {
		return nil
	}
	return []logging.EntityRef{{ID: id, Kind: logging.EntityKindPuzzle}}
}

// PuzzleSolved publishes a solve event.
func PuzzleSolved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SolvedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPuzzleSolved,
		Tick:     tick,
		Actor:    actor,
		Targets:  target(payload.PuzzleID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPuzzle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PuzzleFailed publishes a debug event for a wrong answer.
func PuzzleFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPuzzleFailed,
		Tick:     tick,
		Actor:    actor,
		Targets:  target(payload.PuzzleID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryPuzzle,
		Payload:  payload,
		Extra:    extra,
	})
}

// ObjectExamined publishes an examine event.
func ObjectExamined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExaminedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventObjectExamined,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{{ID: payload.ObjectID, Kind: logging.EntityKindObject}},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}
