package coop

import (
	"fmt"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

const (
	DefaultInteractionRadius = 120.0
	DefaultMinPlayers        = 2
)

type Config struct {
	InteractionRadius float64
	MinPlayers        int
}

func DefaultConfig() Config {
	return Config{InteractionRadius: DefaultInteractionRadius, MinPlayers: DefaultMinPlayers}
}

func (cfg Config) normalized() Config {
	if cfg.InteractionRadius <= 0 {
		cfg.InteractionRadius = DefaultInteractionRadius
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = DefaultMinPlayers
	}
	return cfg
}

// State is the cooperative projection over current positions. It is never
// stored; every call recomputes it.
type State struct {
	Plates          map[string]bool `json:"plates"`
	BothPressed     bool            `json:"bothPressed"`
	PlayersNearDoor []string        `json:"playersNearDoor"`
	DoorReady       bool            `json:"doorReady"`
}

// Equal compares two projections.
func (s State) Equal(other State) bool {
	if s.BothPressed != other.BothPressed || s.DoorReady != other.DoorReady {
		return false
	}
	if len(s.Plates) != len(other.Plates) || len(s.PlayersNearDoor) != len(other.PlayersNearDoor) {
		return false
	}
	for id, pressed := range s.Plates {
		if other.Plates[id] != pressed {
			return false
		}
	}
	for i := range s.PlayersNearDoor {
		if s.PlayersNearDoor[i] != other.PlayersNearDoor[i] {
			return false
		}
	}
	return true
}

// Evaluator derives plate and door conditions from player positions.
type Evaluator struct {
	cfg    Config
	door   world.GameObject
	plates []world.GameObject
}

// NewEvaluator binds the evaluator to the catalog's cooperative door.
func NewEvaluator(cfg Config, catalog *world.Catalog) *Evaluator {
	e := &Evaluator{cfg: cfg.normalized()}
	for _, obj := range catalog.Objects() {
		if obj.RequiresCooperation {
			e.door = obj
			break
		}
	}
	for _, id := range e.door.RequiredPlates {
		if plate, ok := catalog.Lookup(id); ok {
			e.plates = append(e.plates, plate)
		}
	}
	return e
}

// DoorID returns the id of the cooperative door.
func (e *Evaluator) DoorID() string {
	return e.door.ID
}

// Evaluate recomputes the cooperative state for the given positions.
func (e *Evaluator) Evaluate(positions map[string]state.Vec2) State {
	out := State{Plates: make(map[string]bool, len(e.plates))}
	for _, plate := range e.plates {
		pressed := false
		for _, pos := range positions {
			if plate.Contains(pos) {
				pressed = true
				break
			}
		}
		out.Plates[plate.ID] = pressed
	}

	out.BothPressed = len(e.plates) > 0
	for _, pressed := range out.Plates {
		if !pressed {
			out.BothPressed = false
		}
	}

	near := mapset.New[string]()
	if e.door.ID != "" {
		center := e.door.Center()
		for id, pos := range positions {
			if world.Distance(pos, center) <= e.cfg.InteractionRadius {
				near.Put(id)
			}
		}
	}
	out.PlayersNearDoor = make([]string, 0, near.Size())
	near.Each(func(id string) {
		out.PlayersNearDoor = append(out.PlayersNearDoor, id)
	})
	sort.Strings(out.PlayersNearDoor)

	out.DoorReady = out.BothPressed || len(out.PlayersNearDoor) >= e.cfg.MinPlayers
	return out
}

// EvaluateRoom evaluates the room's live positions.
func (e *Evaluator) EvaluateRoom(room *state.Room) State {
	return e.Evaluate(room.Positions())
}

// Unlock promotes a satisfied cooperative condition into the door's state and
// wins the room. An unsatisfied condition leaves the room untouched.
func (e *Evaluator) Unlock(room *state.Room) (State, error) {
	current := e.EvaluateRoom(room)
	if e.door.ID == "" {
		return current, fmt.Errorf("%w: no cooperative door", state.ErrObjectNotFound)
	}
	if !current.DoorReady {
		return current, fmt.Errorf("%w: %d of %d players at the door and plates not held",
			state.ErrCooperationUnmet, len(current.PlayersNearDoor), e.cfg.MinPlayers)
	}
	door := room.Object(e.door.ID)
	door.Unlocked = true
	door.Open = true
	room.Escape()
	return current, nil
}
