package client

import (
	"fmt"
	"sync"

	"locked-study/server/internal/coop"
	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/room"
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

// Reconciler keeps a client's local copy of one room. Local movement is
// predicted through the same resolver the room uses; every authoritative
// frame overwrites the local copy for the entity it names.
type Reconciler struct {
	playerID string
	resolver *world.Resolver

	mu          sync.Mutex
	snapshot    state.Snapshot
	hasSnapshot bool
	coop        coop.State
	predicted   uint64
	overwritten uint64
}

// NewReconciler builds a reconciler for playerID. A nil resolver uses the
// study catalog with default geometry.
func NewReconciler(playerID string, resolver *world.Resolver) *Reconciler {
	if resolver == nil {
		resolver = world.NewResolver(world.DefaultConfig(), world.StudyCatalog())
	}
	return &Reconciler{playerID: playerID, resolver: resolver}
}

func (r *Reconciler) PlayerID() string { return r.playerID }

// Ready reports whether the initial room_state has arrived.
func (r *Reconciler) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasSnapshot
}

// Snapshot returns a copy of the local view.
func (r *Reconciler) Snapshot() state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSnapshot(r.snapshot)
}

// Self returns the local player's current view.
func (r *Reconciler) Self() (state.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.Player(r.playerID)
}

// Coop returns the latest cooperative projection received.
func (r *Reconciler) Coop() coop.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coop
}

// Stats reports how many local predictions were made and how many times an
// authoritative frame replaced the local player's predicted position.
func (r *Reconciler) Stats() (predicted, overwritten uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.predicted, r.overwritten
}

func (r *Reconciler) skip(id string) bool {
	return r.snapshot.Objects[id].PickedUp
}

func (r *Reconciler) selfLocked() *state.Player {
	for i := range r.snapshot.Players {
		if r.snapshot.Players[i].ID == r.playerID {
			return &r.snapshot.Players[i]
		}
	}
	return nil
}

// PredictMove applies a proposed absolute position locally and returns the
// message to send upstream.
func (r *Reconciler) PredictMove(proposed state.Vec2) (world.MoveResult, proto.ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := proto.ClientMessage{Type: proto.TypeMove, Position: &state.Vec2{X: proposed.X, Y: proposed.Y}}
	self := r.selfLocked()
	if self == nil {
		return world.MoveResult{Position: proposed}, msg
	}
	result := r.resolver.Resolve(self.Position, proposed, r.skip)
	r.applyPredictionLocked(self, result)
	return result, msg
}

// PredictStep advances the local player along a held direction for dt
// seconds and returns the input message to send upstream.
func (r *Reconciler) PredictStep(dx, dy, dt float64) (world.MoveResult, proto.ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := proto.ClientMessage{Type: proto.TypeInput, DX: dx, DY: dy}
	self := r.selfLocked()
	if self == nil {
		return world.MoveResult{}, msg
	}
	result := r.resolver.Step(self.Position, dx, dy, dt, r.skip)
	r.applyPredictionLocked(self, result)
	return result, msg
}

func (r *Reconciler) applyPredictionLocked(self *state.Player, result world.MoveResult) {
	if !result.Moved {
		return
	}
	self.Position = result.Position
	self.Facing = result.Facing
	r.predicted++
}

// Apply merges one authoritative frame. Frames that carry no room data,
// such as acks and heartbeats, are ignored.
func (r *Reconciler) Apply(frame proto.ServerFrame) error {
	if !frame.HasData() {
		return nil
	}
	switch room.EventType(frame.Type) {
	case room.EventRoomState:
		var snapshot state.Snapshot
		if err := frame.Decode(&snapshot); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.mu.Lock()
		r.snapshot = snapshot
		if r.snapshot.Objects == nil {
			r.snapshot.Objects = make(map[string]state.ObjectState)
		}
		if r.snapshot.Puzzles == nil {
			r.snapshot.Puzzles = make(map[string]state.PuzzleState)
		}
		r.hasSnapshot = true
		r.mu.Unlock()
		return nil
	case room.EventPlayerMoved:
		var event room.PlayerMovedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			for i := range r.snapshot.Players {
				p := &r.snapshot.Players[i]
				if p.ID != event.PlayerID {
					continue
				}
				if p.ID == r.playerID && p.Position != event.Position {
					r.overwritten++
				}
				p.Position = event.Position
				p.Facing = event.Facing
			}
		})
	case room.EventPlayerJoined:
		var event room.PlayerJoinedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			for i := range r.snapshot.Players {
				if r.snapshot.Players[i].ID == event.Player.ID {
					r.snapshot.Players[i] = event.Player
					return
				}
			}
			r.snapshot.Players = append(r.snapshot.Players, event.Player)
		})
	case room.EventPlayerLeft:
		var event room.PlayerLeftEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			kept := r.snapshot.Players[:0]
			for _, p := range r.snapshot.Players {
				if p.ID == event.PlayerID {
					continue
				}
				p.IsHost = p.ID == event.HostID
				kept = append(kept, p)
			}
			r.snapshot.Players = kept
			r.snapshot.HostID = event.HostID
		})
	case room.EventPlayerStatus:
		var event room.PlayerStatusEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			for i := range r.snapshot.Players {
				if r.snapshot.Players[i].ID == event.PlayerID {
					r.snapshot.Players[i].Status = event.Status
				}
			}
		})
	case room.EventObjectExamined:
		var event room.ObjectExaminedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() { r.snapshot.Objects[event.ObjectID] = event.State })
	case room.EventItemPicked:
		var event room.ItemPickedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			obj := r.snapshot.Objects[event.ObjectID]
			obj.PickedUp = true
			r.snapshot.Objects[event.ObjectID] = obj
			r.snapshot.Inventory = event.Inventory
		})
	case room.EventPuzzleSolved:
		var event room.PuzzleSolvedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			puzzle := r.snapshot.Puzzles[event.PuzzleID]
			puzzle.ID = event.PuzzleID
			puzzle.Solved = true
			r.snapshot.Puzzles[event.PuzzleID] = puzzle
			if event.ObjectID != "" {
				r.snapshot.Objects[event.ObjectID] = event.ObjectState
			}
			r.snapshot.Inventory = event.Inventory
		})
	case room.EventJigsawProgress:
		var event room.JigsawProgressEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			puzzle := r.snapshot.Puzzles[event.PuzzleID]
			puzzle.ID = event.PuzzleID
			puzzle.Pieces = event.Pieces
			r.snapshot.Puzzles[event.PuzzleID] = puzzle
		})
	case room.EventItemsCombined:
		var event room.ItemsCombinedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() { r.snapshot.Inventory = event.Inventory })
	case room.EventUVRevealed:
		var event room.UVRevealedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() {
			obj := r.snapshot.Objects[event.ObjectID]
			obj.UVRevealed = true
			obj.Clue = event.Message
			r.snapshot.Objects[event.ObjectID] = obj
		})
	case room.EventDoorUnlocked:
		r.update(func() {
			door := r.snapshot.Objects[world.ObjectDoor]
			door.Unlocked = true
			door.Open = true
			r.snapshot.Objects[world.ObjectDoor] = door
		})
	case room.EventGameWon:
		r.update(func() {
			r.snapshot.Won = true
			r.snapshot.Status = state.StatusWon
		})
	case room.EventGameStarted:
		var event room.GameStartedEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() { r.snapshot.Status = event.Status })
	case room.EventNewMessage:
		var msg state.ChatMessage
		if err := frame.Decode(&msg); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.update(func() { r.snapshot.Messages = append(r.snapshot.Messages, msg) })
	case room.EventCoopState:
		var event room.CoopStateEvent
		if err := frame.Decode(&event); err != nil {
			return fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		r.mu.Lock()
		r.coop = event
		r.mu.Unlock()
	}
	return nil
}

// update runs fn under the lock once the base snapshot is known. Diffs that
// arrive before it are dropped; the snapshot already includes them.
func (r *Reconciler) update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSnapshot {
		return
	}
	fn()
}

func cloneSnapshot(s state.Snapshot) state.Snapshot {
	cloned := s
	cloned.Players = append([]state.Player(nil), s.Players...)
	cloned.Inventory = append([]string(nil), s.Inventory...)
	cloned.Messages = append([]state.ChatMessage(nil), s.Messages...)
	cloned.Objects = make(map[string]state.ObjectState, len(s.Objects))
	for id, obj := range s.Objects {
		cloned.Objects[id] = obj
	}
	cloned.Puzzles = make(map[string]state.PuzzleState, len(s.Puzzles))
	for id, p := range s.Puzzles {
		cloned.Puzzles[id] = p.Clone()
	}
	return cloned
}
