package room

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"locked-study/server/internal/puzzles"
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
	"locked-study/server/logging"
	loggingPuzzles "locked-study/server/logging/puzzles"
	"locked-study/server/logging/sinks"
)

var testSecrets = state.Secrets{LockCode: "1234", SafeCode: "592", ClockTime: "3:15"}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRoom(t *testing.T, deps Deps) *Room {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Secrets = testSecrets
	if deps.Clock == nil {
		deps.Clock = newTestClock().Now
	}
	return New("abc123", cfg, deps)
}

func join(t *testing.T, r *Room, name string) state.Player {
	t.Helper()
	player, _, err := r.Join(name, "")
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return player
}

// startedRoom returns a room with a host and a guest, game in progress.
func startedRoom(t *testing.T, deps Deps) (*Room, state.Player, state.Player) {
	t.Helper()
	r := newTestRoom(t, deps)
	host := join(t, r, "Ada")
	guest := join(t, r, "Brin")
	out := r.Execute(Command{ActorID: host.ID, Type: CommandStartGame})
	if findDelivery(out, EventGameStarted) == nil {
		t.Fatalf("expected game_started, got %+v", out)
	}
	return r, host, guest
}

func findDelivery(out []Delivery, eventType EventType) *Delivery {
	for i := range out {
		if out[i].Type == eventType {
			return &out[i]
		}
	}
	return nil
}

func mustDelivery(t *testing.T, out []Delivery, eventType EventType) Delivery {
	t.Helper()
	d := findDelivery(out, eventType)
	if d == nil {
		t.Fatalf("expected %s in %+v", eventType, out)
	}
	return *d
}

func actionErrorKind(t *testing.T, out []Delivery) string {
	t.Helper()
	d := mustDelivery(t, out, EventActionError)
	if d.Audience != AudienceActor {
		t.Fatalf("action_error must go to the actor only, got audience %d", d.Audience)
	}
	return d.Payload.(ActionErrorEvent).Kind
}

func TestCodeLockScenario(t *testing.T) {
	memory := sinks.NewMemorySink()
	logCfg := logging.DefaultConfig()
	logCfg.MinimumSeverity = logging.SeverityDebug
	router, err := logging.NewRouter(nil, logCfg, []logging.NamedSink{{Name: logging.SinkMemory, Sink: memory}})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	r, host, guest := startedRoom(t, Deps{Publisher: router})

	out := r.Execute(Command{ActorID: guest.ID, Type: CommandExamine, Target: &TargetCommand{ObjectID: world.ObjectBook}})
	examined := mustDelivery(t, out, EventObjectExamined).Payload.(ObjectExaminedEvent)
	if !strings.Contains(examined.State.Clue, "1234") {
		t.Fatalf("expected book clue to carry the lock code, got %q", examined.State.Clue)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandSolve, Solve: &SolveCommand{PuzzleID: puzzles.CodeLock, Answer: "0000"}})
	failed := mustDelivery(t, out, EventPuzzleFailed)
	if failed.Audience != AudienceActor || failed.PlayerID != host.ID {
		t.Fatalf("puzzle_failed must go to the submitter only, got %+v", failed)
	}
	snap := r.Snapshot()
	if snap.Puzzles[puzzles.CodeLock].Solved || len(snap.Inventory) != 0 {
		t.Fatalf("failed attempt mutated the room: %+v", snap)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandSolve, Solve: &SolveCommand{PuzzleID: puzzles.CodeLock, Answer: "1234"}})
	solved := mustDelivery(t, out, EventPuzzleSolved)
	if solved.Audience != AudienceRoom {
		t.Fatalf("puzzle_solved must be broadcast")
	}
	event := solved.Payload.(PuzzleSolvedEvent)
	if event.Reward != state.ItemKeyPiece1 || !event.ObjectState.Open {
		t.Fatalf("unexpected solve payload %+v", event)
	}
	snap = r.Snapshot()
	if len(snap.Inventory) != 1 || snap.Inventory[0] != state.ItemKeyPiece1 {
		t.Fatalf("expected key_piece_1 in inventory, got %v", snap.Inventory)
	}

	out = r.Execute(Command{ActorID: guest.ID, Type: CommandSolve, Solve: &SolveCommand{PuzzleID: puzzles.CodeLock, Answer: "1234"}})
	again := mustDelivery(t, out, EventPuzzleSolved)
	if again.Audience != AudienceActor || !again.Payload.(PuzzleSolvedEvent).AlreadySolved {
		t.Fatalf("repeat solve should be an actor-only no-op, got %+v", again)
	}
	if got := len(r.Snapshot().Inventory); got != 1 {
		t.Fatalf("repeat solve granted a second reward: %d items", got)
	}

	if err := router.Close(t.Context()); err != nil {
		t.Fatalf("close router: %v", err)
	}
	if got := len(memory.OfType(loggingPuzzles.EventPuzzleSolved)); got != 1 {
		t.Fatalf("expected one puzzle_solved log event, got %d", got)
	}
	if got := len(memory.OfType(loggingPuzzles.EventPuzzleFailed)); got != 1 {
		t.Fatalf("expected one puzzle_failed log event, got %d", got)
	}
}

func TestTwoPlateScenario(t *testing.T) {
	r, host, guest := startedRoom(t, Deps{})
	plate1, _ := r.Catalog().Lookup(world.ObjectPlate1)
	plate2, _ := r.Catalog().Lookup(world.ObjectPlate2)

	c1 := plate1.Center()
	out := r.Execute(Command{ActorID: host.ID, Type: CommandMove, Move: &MoveCommand{X: c1.X, Y: c1.Y}})
	coopEvent := mustDelivery(t, out, EventCoopState).Payload.(CoopStateEvent)
	if !coopEvent.Plates[world.ObjectPlate1] || coopEvent.BothPressed {
		t.Fatalf("expected only plate_1 pressed, got %+v", coopEvent)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandUnlockDoor})
	if kind := actionErrorKind(t, out); kind != state.ErrPreconditionUnmet.Error() {
		t.Fatalf("expected precondition_unmet, got %s", kind)
	}
	if r.Snapshot().Won {
		t.Fatalf("door opened with one plate held")
	}

	c2 := plate2.Center()
	out = r.Execute(Command{ActorID: guest.ID, Type: CommandMove, Move: &MoveCommand{X: c2.X, Y: c2.Y}})
	coopEvent = mustDelivery(t, out, EventCoopState).Payload.(CoopStateEvent)
	if !coopEvent.BothPressed || !coopEvent.DoorReady {
		t.Fatalf("expected both plates pressed, got %+v", coopEvent)
	}

	out = r.Execute(Command{ActorID: guest.ID, Type: CommandUnlockDoor})
	unlocked := mustDelivery(t, out, EventDoorUnlocked).Payload.(DoorUnlockedEvent)
	if unlocked.Method != UnlockMethodCooperative {
		t.Fatalf("unexpected unlock method %q", unlocked.Method)
	}
	if won := mustDelivery(t, out, EventGameWon).Payload.(GameWonEvent); won.Message != WinMessage {
		t.Fatalf("unexpected win message %q", won.Message)
	}
	snap := r.Snapshot()
	if !snap.Won || snap.Status != state.StatusWon || !snap.Objects[world.ObjectDoor].Unlocked {
		t.Fatalf("expected won room with unlocked door, got %+v", snap)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandExamine, Target: &TargetCommand{ObjectID: world.ObjectBook}})
	if kind := actionErrorKind(t, out); kind != state.ErrInvalidState.Error() {
		t.Fatalf("expected invalid_state after win, got %s", kind)
	}
}

func TestPartialCombineLeavesInventory(t *testing.T) {
	r, host, _ := startedRoom(t, Deps{})
	r.state.Inventory.Add(state.ItemKeyPiece1)
	r.state.Inventory.Add(state.ItemKeyPiece3)

	out := r.Execute(Command{ActorID: host.ID, Type: CommandCombine})
	if kind := actionErrorKind(t, out); kind != state.ErrPreconditionUnmet.Error() {
		t.Fatalf("expected precondition_unmet, got %s", kind)
	}
	if got := r.Snapshot().Inventory; len(got) != 2 {
		t.Fatalf("failed combine changed inventory: %v", got)
	}

	r.state.Inventory.Add(state.ItemKeyPiece2)
	out = r.Execute(Command{ActorID: host.ID, Type: CommandCombine})
	combined := mustDelivery(t, out, EventItemsCombined).Payload.(ItemsCombinedEvent)
	if combined.Produced != state.ItemMasterKey || len(combined.Inventory) != 1 {
		t.Fatalf("unexpected combine result %+v", combined)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandUseItem, Use: &UseCommand{ItemID: state.ItemMasterKey, TargetID: world.ObjectDoor}})
	unlocked := mustDelivery(t, out, EventDoorUnlocked).Payload.(DoorUnlockedEvent)
	if unlocked.Method != UnlockMethodMasterKey {
		t.Fatalf("unexpected unlock method %q", unlocked.Method)
	}
	mustDelivery(t, out, EventGameWon)
}

func TestUVLampRevealsNote(t *testing.T) {
	r, host, guest := startedRoom(t, Deps{})

	out := r.Execute(Command{ActorID: host.ID, Type: CommandUseItem, Use: &UseCommand{ItemID: state.ItemUVLamp, TargetID: world.ObjectNote}})
	if kind := actionErrorKind(t, out); kind != state.ErrPreconditionUnmet.Error() {
		t.Fatalf("expected lamp not held, got %s", kind)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandPickup, Target: &TargetCommand{ItemID: state.ItemUVLamp}})
	picked := mustDelivery(t, out, EventItemPicked)
	if picked.Audience != AudienceRoom {
		t.Fatalf("first pickup should be broadcast")
	}

	out = r.Execute(Command{ActorID: guest.ID, Type: CommandUseItem, Use: &UseCommand{ItemID: state.ItemUVLamp, TargetID: world.ObjectNote}})
	revealed := mustDelivery(t, out, EventUVRevealed).Payload.(UVRevealedEvent)
	if revealed.Message != puzzles.HiddenNote {
		t.Fatalf("unexpected hidden message %q", revealed.Message)
	}
	mustDelivery(t, out, EventPuzzleSolved)
	if !r.Snapshot().Objects[world.ObjectNote].UVRevealed {
		t.Fatalf("note should be revealed")
	}
}

func TestPickupIsIdempotent(t *testing.T) {
	r, host, guest := startedRoom(t, Deps{})

	out := r.Execute(Command{ActorID: host.ID, Type: CommandPickup, Target: &TargetCommand{ObjectID: world.ObjectUVLamp}})
	first := mustDelivery(t, out, EventItemPicked)
	if first.Audience != AudienceRoom {
		t.Fatalf("expected broadcast pickup")
	}

	out = r.Execute(Command{ActorID: guest.ID, Type: CommandPickup, Target: &TargetCommand{ObjectID: world.ObjectUVLamp}})
	second := mustDelivery(t, out, EventItemPicked)
	if second.Audience != AudienceActor || !second.Payload.(ItemPickedEvent).AlreadyPicked {
		t.Fatalf("second pickup should be an actor-only no-op, got %+v", second)
	}
	if got := r.Snapshot().Inventory; len(got) != 1 {
		t.Fatalf("expected one lamp, got %v", got)
	}
}

func TestJigsawProgressBroadcast(t *testing.T) {
	r, host, guest := startedRoom(t, Deps{})
	for i := 0; i < state.JigsawPieces; i++ {
		index := i
		actor := host.ID
		if i%2 == 1 {
			actor = guest.ID
		}
		out := r.Execute(Command{ActorID: actor, Type: CommandSolve, Solve: &SolveCommand{PuzzleID: puzzles.Jigsaw, PieceIndex: &index}})
		progress := mustDelivery(t, out, EventJigsawProgress).Payload.(JigsawProgressEvent)
		if progress.Placed != i+1 {
			t.Fatalf("piece %d: expected %d placed, got %d", i, i+1, progress.Placed)
		}
		solved := findDelivery(out, EventPuzzleSolved)
		if (solved != nil) != (i == state.JigsawPieces-1) {
			t.Fatalf("piece %d: unexpected solve state %+v", i, out)
		}
	}
	snap := r.Snapshot()
	if !snap.Puzzles[puzzles.Jigsaw].Solved || !snap.Objects[world.ObjectJigsawTable].Complete {
		t.Fatalf("expected completed jigsaw, got %+v", snap.Puzzles[puzzles.Jigsaw])
	}

	index := 4
	out := r.Execute(Command{ActorID: host.ID, Type: CommandSolve, Solve: &SolveCommand{PuzzleID: puzzles.Jigsaw, PieceIndex: &index}})
	if d := mustDelivery(t, out, EventPuzzleSolved); d.Audience != AudienceActor {
		t.Fatalf("placing into a finished jigsaw should only answer the actor")
	}
}

func TestMovesCoalesceWithinStep(t *testing.T) {
	clock := newTestClock()
	r := newTestRoom(t, Deps{Clock: clock.Now})
	host := join(t, r, "Ada")

	for _, x := range []float64{300, 320, 340} {
		if ok, reason := r.Enqueue(Command{ActorID: host.ID, Type: CommandMove, Move: &MoveCommand{X: x, Y: 320}}); !ok {
			t.Fatalf("enqueue rejected: %s", reason)
		}
	}
	out := r.Step(clock.Now())
	var moves []PlayerMovedEvent
	for _, d := range out {
		if d.Type == EventPlayerMoved {
			moves = append(moves, d.Payload.(PlayerMovedEvent))
		}
	}
	if len(moves) != 1 {
		t.Fatalf("expected a single coalesced move, got %d", len(moves))
	}
	if moves[0].Position.X != 340 || moves[0].Position.Y != 320 {
		t.Fatalf("expected latest position to win, got %+v", moves[0].Position)
	}
}

func TestRefusedMoveCorrectsOnlyTheActor(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")
	desk, _ := r.Catalog().Lookup(world.ObjectDesk)
	contact := desk.Y - (world.DefaultPlayerSize/2 + world.DefaultPadding)

	out := r.Execute(Command{ActorID: host.ID, Type: CommandMove, Move: &MoveCommand{X: 575, Y: contact}})
	if d := mustDelivery(t, out, EventPlayerMoved); d.Audience != AudienceRoom {
		t.Fatalf("accepted move should be broadcast, got %+v", d)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandMove, Move: &MoveCommand{X: 575, Y: contact + 10}})
	moved := mustDelivery(t, out, EventPlayerMoved)
	if moved.Audience != AudienceActor {
		t.Fatalf("refused move should only correct the actor, got %+v", moved)
	}
	if got := moved.Payload.(PlayerMovedEvent).Position; got.X != 575 || got.Y != contact {
		t.Fatalf("expected the player to stay on the desk edge, got %+v", got)
	}
}

func TestHeldInputAdvancesWithTime(t *testing.T) {
	clock := newTestClock()
	r := newTestRoom(t, Deps{Clock: clock.Now})
	host := join(t, r, "Ada")
	start := r.Snapshot().Players[0].Position

	r.Enqueue(Command{ActorID: host.ID, Type: CommandInput, Input: &InputCommand{DX: 1}})
	out := r.Step(clock.Now())
	moved := mustDelivery(t, out, EventPlayerMoved).Payload.(PlayerMovedEvent)
	step := world.DefaultSpeed / float64(DefaultTickRate)
	if math.Abs(moved.Position.X-(start.X+step)) > 1e-9 || moved.Facing != state.FacingRight {
		t.Fatalf("expected one tick of movement to the right, got %+v", moved)
	}

	clock.Advance(50 * time.Millisecond)
	r.Step(clock.Now())
	if got := r.Snapshot().Players[0].Position.X; math.Abs(got-(start.X+2*step)) > 1e-9 {
		t.Fatalf("expected second tick to advance, got %v", got)
	}

	r.Enqueue(Command{ActorID: host.ID, Type: CommandInput, Input: &InputCommand{}})
	clock.Advance(50 * time.Millisecond)
	if out := r.Step(clock.Now()); findDelivery(out, EventPlayerMoved) != nil {
		t.Fatalf("released input should stop movement")
	}
}

func TestStartGameRequiresHostInLobby(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")
	guest := join(t, r, "Brin")

	out := r.Execute(Command{ActorID: guest.ID, Type: CommandStartGame})
	if kind := actionErrorKind(t, out); kind != state.ErrInvalidState.Error() {
		t.Fatalf("expected invalid_state for guest start, got %s", kind)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandExamine, Target: &TargetCommand{ObjectID: world.ObjectBook}})
	if kind := actionErrorKind(t, out); kind != state.ErrInvalidState.Error() {
		t.Fatalf("expected examine to wait for the game, got %s", kind)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandStartGame})
	started := mustDelivery(t, out, EventGameStarted)
	if started.Audience != AudienceRoom || started.Payload.(GameStartedEvent).Status != state.StatusInProgress {
		t.Fatalf("unexpected game_started %+v", started)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandStartGame})
	actionErrorKind(t, out)
}

func TestJoinRules(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "  Ada  ")
	if host.Name != "Ada" || !host.IsHost || host.Color != HostColor {
		t.Fatalf("unexpected host %+v", host)
	}
	colors := map[string]bool{host.Color: true}
	for i := 0; i < state.MaxPlayers-1; i++ {
		p := join(t, r, "")
		if colors[p.Color] {
			t.Fatalf("color %s assigned twice", p.Color)
		}
		colors[p.Color] = true
	}
	if _, _, err := r.Join("Late", ""); !errors.Is(err, state.ErrRoomFull) {
		t.Fatalf("expected room full, got %v", err)
	}

	rejoined, again, err := r.Join("", host.ID)
	if err != nil || !again || rejoined.ID != host.ID {
		t.Fatalf("member rejoin should succeed, got %+v %v %v", rejoined, again, err)
	}

	r.Execute(Command{ActorID: host.ID, Type: CommandStartGame})
	other := newTestRoom(t, Deps{})
	otherHost := join(t, other, "Cy")
	other.Execute(Command{ActorID: otherHost.ID, Type: CommandStartGame})
	if _, _, err := other.Join("Dee", ""); !errors.Is(err, state.ErrRoomAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
}

func TestRemoveReassignsHost(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")
	guest := join(t, r, "Brin")
	third := join(t, r, "Cy")

	out := r.Execute(Command{ActorID: host.ID, Type: CommandLeave})
	left := mustDelivery(t, out, EventPlayerLeft).Payload.(PlayerLeftEvent)
	if left.PlayerID != host.ID || left.HostID != guest.ID {
		t.Fatalf("expected host to pass to %s, got %+v", guest.ID, left)
	}
	snap := r.Snapshot()
	if snap.HostID != guest.ID || len(snap.Players) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if p, _ := snap.Player(third.ID); p.Color != third.Color || p.Name != third.Name {
		t.Fatalf("remaining players must keep their identity, got %+v", p)
	}
	if err := r.Remove(host.ID, "timeout"); !errors.Is(err, state.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestChatAndQuickChat(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")

	out := r.Execute(Command{ActorID: host.ID, Type: CommandChat, Chat: &ChatCommand{Text: "  hello  "}})
	msg := mustDelivery(t, out, EventNewMessage).Payload.(state.ChatMessage)
	if msg.Text != "hello" || msg.Seq != 1 || msg.PlayerName != "Ada" {
		t.Fatalf("unexpected chat message %+v", msg)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandQuickChat, Chat: &ChatCommand{Quick: "found"}})
	quick := mustDelivery(t, out, EventNewMessage).Payload.(state.ChatMessage)
	if quick.Text != "I found something!" || !quick.IsQuick || quick.Seq != 2 {
		t.Fatalf("unexpected quick message %+v", quick)
	}

	out = r.Execute(Command{ActorID: host.ID, Type: CommandQuickChat, Chat: &ChatCommand{Quick: "dance"}})
	if kind := actionErrorKind(t, out); kind != state.ErrValidationFailed.Error() {
		t.Fatalf("expected validation_failed, got %s", kind)
	}
	out = r.Execute(Command{ActorID: host.ID, Type: CommandChat, Chat: &ChatCommand{Text: "   "}})
	actionErrorKind(t, out)
	if got := len(r.Snapshot().Messages); got != 2 {
		t.Fatalf("rejected chat was recorded: %d messages", got)
	}
}

func TestUnknownActorIsRejected(t *testing.T) {
	r := newTestRoom(t, Deps{})
	join(t, r, "Ada")
	out := r.Execute(Command{ActorID: "ghost", Type: CommandChat, Chat: &ChatCommand{Text: "boo"}})
	if kind := actionErrorKind(t, out); kind != state.ErrNotFound.Error() {
		t.Fatalf("expected not_found, got %s", kind)
	}
}

func TestConcurrentEnqueueAppliesEveryCommand(t *testing.T) {
	clock := newTestClock()
	r := newTestRoom(t, Deps{Clock: clock.Now})
	players := []state.Player{join(t, r, "A"), join(t, r, "B"), join(t, r, "C"), join(t, r, "D")}

	const perPlayer = 50
	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perPlayer; i++ {
				if ok, reason := r.Enqueue(Command{ActorID: id, Type: CommandChat, Chat: &ChatCommand{Text: "hi"}}); !ok {
					t.Errorf("enqueue rejected: %s", reason)
					return
				}
			}
		}(p.ID)
	}
	wg.Wait()
	r.Step(clock.Now())

	messages := r.Snapshot().Messages
	if len(messages) != len(players)*perPlayer {
		t.Fatalf("expected %d messages, got %d", len(players)*perPlayer, len(messages))
	}
	for i, msg := range messages {
		if msg.Seq != uint64(i+1) {
			t.Fatalf("message %d has seq %d", i, msg.Seq)
		}
	}
}

func TestEnqueuePerActorLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerActorLimit = 2
	r := New("limit1", cfg, Deps{})
	host := join(t, r, "Ada")
	for i := 0; i < 2; i++ {
		if ok, _ := r.Enqueue(Command{ActorID: host.ID, Type: CommandInput, Input: &InputCommand{DX: 1}}); !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	if ok, reason := r.Enqueue(Command{ActorID: host.ID, Type: CommandInput, Input: &InputCommand{DX: 1}}); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue_limit, got %v %q", ok, reason)
	}
	r.Step(time.Now())
	if ok, _ := r.Enqueue(Command{ActorID: host.ID, Type: CommandInput, Input: &InputCommand{}}); !ok {
		t.Fatalf("limit should reset after a step")
	}

	r.Close()
	if ok, reason := r.Enqueue(Command{ActorID: host.ID, Type: CommandInput}); ok || reason != CommandRejectRoomClosed {
		t.Fatalf("expected room_closed, got %v %q", ok, reason)
	}
}

func TestDroppedBatchTriggersResync(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutboundBuffer = 1
	r := New("resync", cfg, Deps{Deliverer: DelivererFunc(func(string, []Delivery) {})})
	host := join(t, r, "Ada")
	<-r.Outbound()

	r.Execute(Command{ActorID: host.ID, Type: CommandChat, Chat: &ChatCommand{Text: "one"}})
	r.Execute(Command{ActorID: host.ID, Type: CommandChat, Chat: &ChatCommand{Text: "two"}})
	<-r.Outbound()

	r.Execute(Command{ActorID: host.ID, Type: CommandChat, Chat: &ChatCommand{Text: "three"}})
	batch := <-r.Outbound()
	if len(batch) != 2 || batch[0].Type != EventRoomState || batch[0].Audience != AudienceRoom {
		t.Fatalf("expected room_state ahead of the next batch, got %+v", batch)
	}
	if got := len(batch[0].Payload.(state.Snapshot).Messages); got != 3 {
		t.Fatalf("resync snapshot should carry every message, got %d", got)
	}
}

func TestRemoveIfDisconnectedSparesConnectedPlayers(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")
	guest := join(t, r, "Brin")
	if _, err := r.Connect(guest.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if r.RemoveIfDisconnected(guest.ID, "timeout") {
		t.Fatalf("connected player must not be removed")
	}
	if err := r.Disconnect(guest.ID, "closed"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !r.RemoveIfDisconnected(guest.ID, "timeout") {
		t.Fatalf("disconnected player should be removed")
	}
	if r.HasPlayer(guest.ID) || !r.HasPlayer(host.ID) {
		t.Fatalf("unexpected membership after removal")
	}
	if r.RemoveIfDisconnected(guest.ID, "timeout") {
		t.Fatalf("removing twice should report false")
	}
}

func TestNothingQueuedWithoutDeliverer(t *testing.T) {
	r := newTestRoom(t, Deps{})
	host := join(t, r, "Ada")
	out := r.Execute(Command{ActorID: host.ID, Type: CommandMove, Move: &MoveCommand{X: 300, Y: 320}})
	if findDelivery(out, EventPlayerMoved) == nil {
		t.Fatalf("expected deliveries to be returned, got %+v", out)
	}
	if pending := len(r.Outbound()); pending != 0 {
		t.Fatalf("expected no queued batches without a deliverer, got %d", pending)
	}
}
