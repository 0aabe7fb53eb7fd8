package puzzles

import (
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

// Kind selects the validator a puzzle uses.
type Kind string

const (
	KindCode     Kind = "code"
	KindJigsaw   Kind = "jigsaw"
	KindClock    Kind = "clock"
	KindPhrase   Kind = "phrase"
	KindColorSet Kind = "color_set"
	KindSequence Kind = "sequence"
	KindItem     Kind = "item"
)

// Puzzle ids of the study.
const (
	CodeLock   = "code_lock"
	Safe       = "safe"
	Jigsaw     = "jigsaw"
	UVLight    = "uv_light"
	Clock      = "clock"
	BookCipher = "book_cipher"
	ColorMix   = "color_mix"
	Slider     = "slider"
)

const (
	BookCipherAnswer = "BENEATH RUG"
	ColorMixAnswer   = "red,blue,yellow"
	SliderAnswer     = "1,2,3,4,5,6,7,8,0"
	HiddenNote       = "The key lies in unity - combine the three pieces"
)

// Effect describes object flags set when a puzzle is solved.
type Effect struct {
	ObjectID string
	Open     bool
	Unlock   bool
	Complete bool
	Reveal   bool
	Clue     string
}

// Definition is the immutable description of one puzzle.
type Definition struct {
	ID       string
	Kind     Kind
	ObjectID string
	// Digits is the code length for KindCode.
	Digits int
	// Expected returns the answer for the room. Static puzzles ignore secrets.
	Expected      func(state.Secrets) string
	Reward        string
	Prerequisites []string
	RequiresItem  string
	Effect        Effect
	// TrustVerdict accepts a client-reported verdict in place of
	// server-side validation.
	TrustVerdict bool
}

func static(answer string) func(state.Secrets) string {
	return func(state.Secrets) string { return answer }
}

// StudyDefinitions returns the puzzles of The Locked Study.
func StudyDefinitions() []Definition {
	return []Definition{
		{
			ID:       CodeLock,
			Kind:     KindCode,
			ObjectID: world.ObjectDrawer,
			Digits:   4,
			Expected: func(s state.Secrets) string { return s.LockCode },
			Reward:   state.ItemKeyPiece1,
			Effect:   Effect{ObjectID: world.ObjectDrawer, Open: true, Unlock: true},
		},
		{
			ID:       Safe,
			Kind:     KindCode,
			ObjectID: world.ObjectSafe,
			Digits:   3,
			Expected: func(s state.Secrets) string { return s.SafeCode },
			Reward:   state.ItemKeyPiece2,
			Effect:   Effect{ObjectID: world.ObjectSafe, Open: true, Unlock: true},
		},
		{
			ID:       Jigsaw,
			Kind:     KindJigsaw,
			ObjectID: world.ObjectJigsawTable,
			Reward:   state.ItemKeyPiece3,
			Effect:   Effect{ObjectID: world.ObjectJigsawTable, Complete: true},
		},
		{
			ID:           UVLight,
			Kind:         KindItem,
			ObjectID:     world.ObjectNote,
			RequiresItem: state.ItemUVLamp,
			Effect:       Effect{ObjectID: world.ObjectNote, Reveal: true, Clue: HiddenNote},
		},
		{
			ID:       Clock,
			Kind:     KindClock,
			ObjectID: world.ObjectClock,
			Expected: func(s state.Secrets) string { return s.ClockTime },
			Effect:   Effect{ObjectID: world.ObjectClock, Open: true},
		},
		{
			ID:       BookCipher,
			Kind:     KindPhrase,
			ObjectID: world.ObjectDesk,
			Expected: static(BookCipherAnswer),
			Effect:   Effect{ObjectID: world.ObjectDesk, Open: true, Clue: "Something is hidden beneath the rug"},
		},
		{
			ID:       ColorMix,
			Kind:     KindColorSet,
			ObjectID: world.ObjectColorTable,
			Expected: static(ColorMixAnswer),
			Effect:   Effect{ObjectID: world.ObjectColorTable, Complete: true},
		},
		{
			ID:            Slider,
			Kind:          KindSequence,
			ObjectID:      world.ObjectSliderBox,
			Expected:      static(SliderAnswer),
			Prerequisites: []string{Clock},
			Effect:        Effect{ObjectID: world.ObjectSliderBox, Open: true},
		},
	}
}

// ApplyEffect sets the effect's flags on the room.
func ApplyEffect(room *state.Room, effect Effect) {
	if room == nil || effect.ObjectID == "" {
		return
	}
	obj := room.Object(effect.ObjectID)
	if effect.Open {
		obj.Open = true
	}
	if effect.Unlock {
		obj.Unlocked = true
	}
	if effect.Complete {
		obj.Complete = true
	}
	if effect.Reveal {
		obj.UVRevealed = true
	}
	if effect.Clue != "" {
		obj.Clue = effect.Clue
	}
}
