package inventory

import (
	"fmt"
	"strings"

	"locked-study/server/internal/puzzles"
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

// ItemCombineKeys is the pseudo item older clients send through use_item to
// request the key recipe.
const ItemCombineKeys = "combine_keys"

var (
	ErrNotPickable = fmt.Errorf("%w: object cannot be picked up", state.ErrInvalidState)
	ErrNoEffect    = fmt.Errorf("%w: nothing happens", state.ErrValidationFailed)
)

// UseKind tags the effect of a UseItem call.
type UseKind string

const (
	UseCombined     UseKind = "combined"
	UseDoorUnlocked UseKind = "door_unlocked"
	UseRevealed     UseKind = "revealed"
)

type PickupResult struct {
	ObjectID string
	ItemID   string
	// Picked is false when the object had already been picked up.
	Picked bool
}

type CombineResult struct {
	Consumed []string
	Produced string
}

type UseResult struct {
	Kind     UseKind
	ItemID   string
	TargetID string
	Combine  CombineResult
	Puzzle   puzzles.Outcome
	Won      bool
}

// Rules applies item acquisition, combination and use to a room. Callers
// hold the room's lock.
type Rules struct {
	catalog *world.Catalog
	puzzles *puzzles.Engine
}

func NewRules(catalog *world.Catalog, engine *puzzles.Engine) *Rules {
	return &Rules{catalog: catalog, puzzles: engine}
}

// resolvePickable accepts either an object id or the item id it yields.
func (r *Rules) resolvePickable(id string) (world.GameObject, bool) {
	if obj, ok := r.catalog.Lookup(id); ok {
		return obj, true
	}
	for _, obj := range r.catalog.OfKind(world.KindPickup) {
		if obj.ItemID == id {
			return obj, true
		}
	}
	return world.GameObject{}, false
}

// Pickup moves a pickable object into the shared inventory. A second pickup
// of the same object is a no-op.
func (r *Rules) Pickup(room *state.Room, id string) (PickupResult, error) {
	obj, ok := r.resolvePickable(id)
	if !ok {
		return PickupResult{}, fmt.Errorf("%w: %s", state.ErrObjectNotFound, id)
	}
	if !obj.Pickable || obj.ItemID == "" {
		return PickupResult{ObjectID: obj.ID}, fmt.Errorf("%w: %s", ErrNotPickable, obj.ID)
	}
	result := PickupResult{ObjectID: obj.ID, ItemID: obj.ItemID}
	current := room.Object(obj.ID)
	if current.PickedUp {
		return result, nil
	}
	current.PickedUp = true
	result.Picked = room.Inventory.Add(obj.ItemID)
	return result, nil
}

// CombineKeys swaps the three key pieces for the master key in one step.
func (r *Rules) CombineKeys(room *state.Room) (CombineResult, error) {
	var missing []string
	for _, piece := range state.KeyPieces {
		if !room.Inventory.Has(piece) {
			missing = append(missing, piece)
		}
	}
	if len(missing) > 0 {
		return CombineResult{}, fmt.Errorf("%w: missing %s", state.ErrMissingKeyPieces, strings.Join(missing, ", "))
	}
	for _, piece := range state.KeyPieces {
		room.Inventory.Remove(piece)
	}
	room.Inventory.Add(state.ItemMasterKey)
	return CombineResult{
		Consumed: append([]string(nil), state.KeyPieces...),
		Produced: state.ItemMasterKey,
	}, nil
}

// Use applies a held item to a target object.
func (r *Rules) Use(room *state.Room, itemID, targetID string) (UseResult, error) {
	result := UseResult{ItemID: itemID, TargetID: targetID}
	if itemID == ItemCombineKeys {
		combined, err := r.CombineKeys(room)
		if err != nil {
			return result, err
		}
		result.Kind = UseCombined
		result.Combine = combined
		return result, nil
	}
	if !room.Inventory.Has(itemID) {
		return result, fmt.Errorf("%w: %s", state.ErrItemNotHeld, itemID)
	}
	if _, ok := r.catalog.Lookup(targetID); !ok {
		return result, fmt.Errorf("%w: %s", state.ErrObjectNotFound, targetID)
	}

	switch {
	case itemID == state.ItemMasterKey && targetID == world.ObjectDoor:
		door := room.Object(world.ObjectDoor)
		door.Unlocked = true
		door.Open = true
		room.Escape()
		result.Kind = UseDoorUnlocked
		result.Won = true
		return result, nil
	case itemID == state.ItemUVLamp && targetID == world.ObjectNote:
		outcome, err := r.puzzles.Solve(room, puzzles.UVLight, puzzles.Submission{})
		if err != nil {
			return result, err
		}
		result.Kind = UseRevealed
		result.Puzzle = outcome
		return result, nil
	default:
		return result, fmt.Errorf("%w: %s on %s", ErrNoEffect, itemID, targetID)
	}
}
