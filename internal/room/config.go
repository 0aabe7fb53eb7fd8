package room

import (
	"strings"
	"time"

	"locked-study/server/internal/coop"
	"locked-study/server/internal/puzzles"
	"locked-study/server/internal/state"
	"locked-study/server/internal/world"
)

const (
	DefaultTickRate         = 20
	DefaultCommandCapacity  = 256
	DefaultPerActorLimit    = 64
	DefaultOutboundBuffer   = 256
	DefaultEmptyRoomTimeout = 5 * time.Minute
	DefaultMaxChatLength    = 500
	DefaultMaxNameLength    = 24
)

// Config tunes every room created by a Store.
type Config struct {
	TickRate         int
	CommandCapacity  int
	PerActorLimit    int
	OutboundBuffer   int
	EmptyRoomTimeout time.Duration
	MaxChatLength    int
	MaxNameLength    int
	// Seed feeds secret generation. Rooms with the same seed and id get the
	// same codes; empty draws a fresh seed per process.
	Seed string
	// Secrets overrides generated codes when non-empty.
	Secrets state.Secrets
	World   world.Config
	Coop    coop.Config
	Puzzles puzzles.Options
}

func DefaultConfig() Config {
	return Config{
		TickRate:         DefaultTickRate,
		CommandCapacity:  DefaultCommandCapacity,
		PerActorLimit:    DefaultPerActorLimit,
		OutboundBuffer:   DefaultOutboundBuffer,
		EmptyRoomTimeout: DefaultEmptyRoomTimeout,
		MaxChatLength:    DefaultMaxChatLength,
		MaxNameLength:    DefaultMaxNameLength,
		World:            world.DefaultConfig(),
		Coop:             coop.DefaultConfig(),
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.TickRate <= 0 {
		normalized.TickRate = DefaultTickRate
	}
	if normalized.CommandCapacity <= 0 {
		normalized.CommandCapacity = DefaultCommandCapacity
	}
	if normalized.PerActorLimit < 0 {
		normalized.PerActorLimit = 0
	}
	if normalized.OutboundBuffer <= 0 {
		normalized.OutboundBuffer = DefaultOutboundBuffer
	}
	if normalized.EmptyRoomTimeout <= 0 {
		normalized.EmptyRoomTimeout = DefaultEmptyRoomTimeout
	}
	if normalized.MaxChatLength <= 0 {
		normalized.MaxChatLength = DefaultMaxChatLength
	}
	if normalized.MaxNameLength <= 0 {
		normalized.MaxNameLength = DefaultMaxNameLength
	}
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	normalized.World = normalized.World.Normalized()
	return normalized
}

// TickInterval is the period between room steps.
func (cfg Config) TickInterval() time.Duration {
	return time.Second / time.Duration(cfg.normalized().TickRate)
}
