package puzzles

import (
	"fmt"
	"strings"

	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

// ClueFor returns the text revealed by examining an object, or "".
func ClueFor(objectID string, room *state.Room) string {
	switch objectID {
	case world.ObjectBook:
		return fmt.Sprintf("The old diary mentions: 'My lucky number is %s'", room.Secrets.LockCode)
	case world.ObjectPainting:
		return "Behind the frame: " + strings.Join(strings.Split(room.Secrets.SafeCode, ""), "-")
	case world.ObjectNote:
		if room.ObjectView(world.ObjectNote).UVRevealed {
			return HiddenNote
		}
		return "The paper looks blank, but something glints under the right light."
	case world.ObjectClock:
		return "The hands are stuck. A brass plate reads: 'Set me to the hour of the escape'."
	default:
		return ""
	}
}

// Examine marks an object examined and records its clue. Examining twice is
// idempotent.
func Examine(room *state.Room, obj world.GameObject) state.ObjectState {
	current := room.Object(obj.ID)
	current.Examined = true
	if clue := ClueFor(obj.ID, room); clue != "" {
		current.Clue = clue
	}
	return *current
}
