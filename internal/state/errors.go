package state

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a room operation wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidState      = errors.New("invalid_state")
	ErrValidationFailed  = errors.New("validation_failed")
	ErrPreconditionUnmet = errors.New("precondition_unmet")
)

var (
	ErrRoomNotFound       = fmt.Errorf("%w: room not found", ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("%w: player not in room", ErrNotFound)
	ErrObjectNotFound     = fmt.Errorf("%w: unknown object", ErrNotFound)
	ErrPuzzleNotFound     = fmt.Errorf("%w: unknown puzzle", ErrNotFound)
	ErrRoomFull           = fmt.Errorf("%w: room is full", ErrInvalidState)
	ErrRoomAlreadyStarted = fmt.Errorf("%w: game already in progress", ErrInvalidState)
	ErrRoomClosed         = fmt.Errorf("%w: room is closed", ErrInvalidState)
	ErrNotHost            = fmt.Errorf("%w: only the host can start the game", ErrInvalidState)
	ErrGameNotStarted     = fmt.Errorf("%w: game has not started", ErrInvalidState)
	ErrGameOver           = fmt.Errorf("%w: room already escaped", ErrInvalidState)
	ErrNotInteractable    = fmt.Errorf("%w: object cannot be used", ErrInvalidState)
	ErrItemNotHeld        = fmt.Errorf("%w: item not in inventory", ErrPreconditionUnmet)
	ErrMissingKeyPieces   = fmt.Errorf("%w: all three key pieces are required", ErrPreconditionUnmet)
	ErrCooperationUnmet   = fmt.Errorf("%w: the door needs more hands", ErrPreconditionUnmet)
)

// Kind reports the wire-level classification of err, or "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrInvalidState):
		return ErrInvalidState.Error()
	case errors.Is(err, ErrValidationFailed):
		return ErrValidationFailed.Error()
	case errors.Is(err, ErrPreconditionUnmet):
		return ErrPreconditionUnmet.Error()
	default:
		return "internal"
	}
}
