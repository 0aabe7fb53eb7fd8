package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"locked-study/server/internal/coop"
	"locked-study/server/internal/inventory"
	"locked-study/server/internal/puzzles"
	"locked-study/server/internal/state"
	"locked-study/server/internal/telemetry"
	"locked-study/server/internal/world"
	"locked-study/server/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the room's command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectRoomClosed indicates the room no longer accepts commands.
	CommandRejectRoomClosed = "room_closed"

	metricCommandsApplied   = "room_commands_applied_total"
	metricMovesCoalesced    = "room_moves_coalesced_total"
	metricOutboundDropped   = "room_outbound_dropped_total"
	metricCommandsThrottled = "room_commands_throttled_total"
)

// Deliverer receives each batch of outbound messages in mutation order.
type Deliverer interface {
	Deliver(roomID string, batch []Delivery)
}

// DelivererFunc adapts a function into a Deliverer.
type DelivererFunc func(roomID string, batch []Delivery)

func (f DelivererFunc) Deliver(roomID string, batch []Delivery) {
	if f == nil {
		return
	}
	f(roomID, batch)
}

// Deps holds collaborators shared by every room of a store.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     func() time.Time
	Deliverer Deliverer
	Catalog   *world.Catalog
	Puzzles   []puzzles.Definition
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.NopLogger()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Catalog == nil {
		d.Catalog = world.StudyCatalog()
	}
	if d.Puzzles == nil {
		d.Puzzles = puzzles.StudyDefinitions()
	}
	return d
}

// Room owns one escape room's state. Every mutation runs under mu, either
// from Step (the single writer draining staged commands) or from the
// membership calls made by the session layer.
type Room struct {
	id        string
	cfg       Config
	deps      Deps
	publisher logging.Publisher

	mu        sync.Mutex
	state     *state.Room
	resolver  *world.Resolver
	puzzles   *puzzles.Engine
	rules     *inventory.Rules
	coop      *coop.Evaluator
	intents   map[string]state.Vec2
	lastCoop  coop.State
	tick      uint64
	lastStep  time.Time
	idleSince time.Time
	closed    bool

	buffer *CommandBuffer

	wake      chan struct{}
	outbound  chan []Delivery
	done      chan struct{}
	closeOnce sync.Once
	resync    atomic.Bool
}

// New constructs a room in the lobby state.
func New(id string, cfg Config, deps Deps) *Room {
	cfg = cfg.normalized()
	deps = deps.normalized()
	now := deps.Clock()

	engine := puzzles.NewEngine(deps.Puzzles, cfg.Puzzles)
	st := state.NewRoom(id, world.GenerateSecrets(cfg.Seed, id, cfg.Secrets), now)
	engine.Init(st)

	r := &Room{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		publisher: logging.ForRoom(deps.Publisher, id),
		state:     st,
		resolver:  world.NewResolver(cfg.World, deps.Catalog),
		puzzles:   engine,
		rules:     inventory.NewRules(deps.Catalog, engine),
		coop:      coop.NewEvaluator(cfg.Coop, deps.Catalog),
		intents:   make(map[string]state.Vec2),
		idleSince: now,
		buffer:    NewCommandBuffer(cfg.CommandCapacity, cfg.PerActorLimit, deps.Metrics),
		wake:      make(chan struct{}, 1),
		outbound:  make(chan []Delivery, cfg.OutboundBuffer),
		done:      make(chan struct{}),
	}
	r.lastCoop = r.coop.EvaluateRoom(st)
	return r
}

// ID returns the room code.
func (r *Room) ID() string {
	return r.id
}

// Snapshot copies the current state.
func (r *Room) Snapshot() state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// Tick reports how many steps the room has run.
func (r *Room) Tick() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Catalog exposes the static objects of the room.
func (r *Room) Catalog() *world.Catalog {
	return r.deps.Catalog
}

// Resolver exposes the movement resolver so clients can predict with the
// same rules.
func (r *Room) Resolver() *world.Resolver {
	return r.resolver
}

// Outbound exposes the delivery channel drained by Run. Batches are queued
// only when the room has a Deliverer; without one, Step and Execute results
// are returned to the caller and nothing is queued.
func (r *Room) Outbound() <-chan []Delivery {
	return r.outbound
}

// Done is closed when the room shuts down.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Pending reports the number of staged commands.
func (r *Room) Pending() int {
	return r.buffer.Len()
}

// Enqueue stages a command for the next step, enforcing per-actor throttling
// and capacity limits.
func (r *Room) Enqueue(cmd Command) (bool, string) {
	select {
	case <-r.done:
		return false, CommandRejectRoomClosed
	default:
	}

	reason := r.buffer.Stage(cmd)
	if reason != "" {
		r.addMetric(metricCommandsThrottled, 1)
		return false, reason
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true, ""
}

// Step drains staged commands and applies them in arrival order, advances
// held direction input by the elapsed time and re-evaluates cooperative
// conditions. Only the latest absolute move per player survives a step.
func (r *Room) Step(now time.Time) []Delivery {
	commands, coalesced := r.buffer.Take()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.tick++

	budget := 1.0 / float64(r.cfg.TickRate)
	dt := budget
	if !r.lastStep.IsZero() {
		dt = now.Sub(r.lastStep).Seconds()
		if dt < 0 {
			dt = 0
		} else if dt > 4*budget {
			dt = 4 * budget
		}
	}
	r.lastStep = now

	var out []Delivery
	for _, cmd := range commands {
		out = append(out, r.applyLocked(cmd)...)
	}
	if len(commands) > 0 {
		r.addMetric(metricCommandsApplied, uint64(len(commands)))
	}
	if coalesced > 0 {
		r.addMetric(metricMovesCoalesced, uint64(coalesced))
	}
	out = append(out, r.advanceIntentsLocked(dt)...)
	out = append(out, r.evaluateCoopLocked()...)
	r.emitLocked(out)
	return out
}

// Execute applies one command immediately, bypassing the buffer.
func (r *Room) Execute(cmd Command) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	out := r.applyLocked(cmd)
	out = append(out, r.evaluateCoopLocked()...)
	r.emitLocked(out)
	return out
}

// Run steps the room on every tick and whenever a command is staged, until
// ctx is cancelled or the room is closed. Deliveries are forwarded to the
// configured Deliverer on a separate goroutine.
func (r *Room) Run(ctx context.Context) {
	if r.deps.Deliverer != nil {
		go r.pump(ctx)
	}
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.Step(r.deps.Clock())
		case <-r.wake:
			r.Step(r.deps.Clock())
		}
	}
}

func (r *Room) pump(ctx context.Context) {
	for {
		select {
		case batch := <-r.outbound:
			r.deps.Deliverer.Deliver(r.id, batch)
		case <-r.done:
			for {
				select {
				case batch := <-r.outbound:
					r.deps.Deliverer.Deliver(r.id, batch)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// emitLocked queues a batch without blocking the room. A full queue drops
// the batch and the next batch is preceded by a full room_state so clients
// converge again.
func (r *Room) emitLocked(batch []Delivery) {
	if len(batch) == 0 || r.deps.Deliverer == nil {
		return
	}
	if r.resync.Load() {
		resync := toRoom(EventRoomState, "", r.state.Snapshot())
		batch = append([]Delivery{resync}, batch...)
	}
	select {
	case r.outbound <- batch:
		r.resync.Store(false)
	default:
		r.resync.Store(true)
		r.addMetric(metricOutboundDropped, 1)
		r.deps.Logger.Printf("[room %s] outbound queue full, dropped %d deliveries", r.id, len(batch))
	}
}

// Close stops the room. Later commands are rejected.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.done)
	})
}

// Closed reports whether Close has been called.
func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// IdleFor reports how long the room has had no connected player.
func (r *Room) IdleFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idleSince.IsZero() {
		return 0
	}
	return now.Sub(r.idleSince)
}

func (r *Room) addMetric(key string, delta uint64) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.Add(key, delta)
	}
}

// skipLocked excludes picked-up items from collision.
func (r *Room) skipLocked(id string) bool {
	return r.state.ObjectView(id).PickedUp
}
