package room

import "sync"

const (
	commandBufferOccupancyMetricKey = "room_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "room_command_buffer_overflow_total"
)

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// CommandBuffer stages commands between connection goroutines and the
// room's single writer. Staging is bounded twice: by the ring capacity and
// by a per-actor allowance that refills on every Take.
type CommandBuffer struct {
	mu         sync.Mutex
	ring       []Command
	start      int
	size       int
	actorLimit int
	staged     map[string]int
	metrics    telemetryMetrics
}

// NewCommandBuffer builds a buffer holding at most capacity commands. An
// actorLimit of zero disables per-actor throttling.
func NewCommandBuffer(capacity, actorLimit int, metrics telemetryMetrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if actorLimit < 0 {
		actorLimit = 0
	}
	return &CommandBuffer{
		ring:       make([]Command, capacity),
		actorLimit: actorLimit,
		staged:     make(map[string]int),
		metrics:    metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stage appends cmd and returns "" on success, or the reject reason:
// CommandRejectQueueLimit when the actor used its allowance for this step,
// CommandRejectQueueFull when the ring is full.
func (b *CommandBuffer) Stage(cmd Command) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.actorLimit > 0 && cmd.ActorID != "" && b.staged[cmd.ActorID] >= b.actorLimit {
		return CommandRejectQueueLimit
	}
	if b.size == len(b.ring) {
		b.add(commandBufferOverflowMetricKey, 1)
		return CommandRejectQueueFull
	}
	b.ring[(b.start+b.size)%len(b.ring)] = cmd
	b.size++
	if cmd.ActorID != "" {
		b.staged[cmd.ActorID]++
	}
	b.store(commandBufferOccupancyMetricKey, uint64(b.size))
	return ""
}

// Take empties the buffer and returns the staged commands in arrival order.
// Absolute moves are coalesced: only each actor's latest move survives, in
// its own arrival position. coalesced counts the moves dropped.
func (b *CommandBuffer) Take() (commands []Command, coalesced int) {
	b.mu.Lock()
	staged := make([]Command, 0, b.size)
	for i := 0; i < b.size; i++ {
		slot := (b.start + i) % len(b.ring)
		staged = append(staged, b.ring[slot])
		b.ring[slot] = Command{}
	}
	b.start, b.size = 0, 0
	clear(b.staged)
	b.store(commandBufferOccupancyMetricKey, 0)
	b.mu.Unlock()

	if len(staged) == 0 {
		return nil, 0
	}
	lastMove := make(map[string]int)
	for i, cmd := range staged {
		if cmd.Type == CommandMove {
			lastMove[cmd.ActorID] = i
		}
	}
	commands = staged[:0]
	for i, cmd := range staged {
		if cmd.Type == CommandMove && lastMove[cmd.ActorID] != i {
			coalesced++
			continue
		}
		commands = append(commands, cmd)
	}
	return commands, coalesced
}

func (b *CommandBuffer) add(key string, delta uint64) {
	if b.metrics != nil {
		b.metrics.Add(key, delta)
	}
}

func (b *CommandBuffer) store(key string, value uint64) {
	if b.metrics != nil {
		b.metrics.Store(key, value)
	}
}
