package world

import (
	"math"

	"locked-study/server/internal/state"
)

// contactEpsilon absorbs float error when a coordinate is placed exactly on a
// contact edge.
const contactEpsilon = 1e-9

// Config describes the room geometry used by the resolver.
type Config struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PlayerSize float64 `json:"playerSize"`
	Padding    float64 `json:"padding"`
	Speed      float64 `json:"speed"`
}

// DefaultConfig returns the study's dimensions.
func DefaultConfig() Config {
	return Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		PlayerSize: DefaultPlayerSize,
		Padding:    DefaultPadding,
		Speed:      DefaultSpeed,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.PlayerSize <= 0 {
		normalized.PlayerSize = DefaultPlayerSize
	}
	if normalized.Padding < 0 {
		normalized.Padding = 0
	}
	if normalized.Speed <= 0 {
		normalized.Speed = DefaultSpeed
	}
	return normalized
}

// Normalized replaces unset or invalid fields with defaults.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// MoveResult is the outcome of a single resolved movement.
type MoveResult struct {
	Position Vec2
	Facing   state.FacingDirection
	Moved    bool
}

// Resolver clamps and collides player movement against a catalog. It holds
// no per-player state; every call resolves against the previous confirmed
// position only.
type Resolver struct {
	cfg     Config
	catalog *Catalog
}

// NewResolver constructs a resolver for the catalog.
func NewResolver(cfg Config, catalog *Catalog) *Resolver {
	return &Resolver{cfg: cfg.normalized(), catalog: catalog}
}

// Config returns the normalized geometry.
func (r *Resolver) Config() Config {
	if r == nil {
		return DefaultConfig()
	}
	return r.cfg
}

// Catalog returns the object table the resolver collides against.
func (r *Resolver) Catalog() *Catalog {
	if r == nil {
		return nil
	}
	return r.catalog
}

func (r *Resolver) half() float64 {
	return r.cfg.PlayerSize / 2
}

func (r *Resolver) region() float64 {
	return r.half() + r.cfg.Padding
}

// ClampToBounds keeps p inside the room inset by half the player size.
func (r *Resolver) ClampToBounds(p Vec2) Vec2 {
	half := r.half()
	return Vec2{
		X: Clamp(p.X, half, r.cfg.Width-half),
		Y: Clamp(p.Y, half, r.cfg.Height-half),
	}
}

// Blocked reports whether a player standing at p would intersect any
// blocking object. skip excludes ids such as picked-up items.
func (r *Resolver) Blocked(p Vec2, skip func(id string) bool) bool {
	square := SquareAt(p, r.region()-contactEpsilon)
	for _, obj := range r.catalog.Blockers(skip) {
		if square.Overlaps(obj.Bounds()) {
			return true
		}
	}
	return false
}

// Resolve corrects a proposed absolute position. The result is always inside
// the room bounds and never overlaps a blocker's box plus padding.
func (r *Resolver) Resolve(from, proposed Vec2, skip func(id string) bool) MoveResult {
	from = r.ClampToBounds(from)
	candidate := r.ClampToBounds(proposed)
	blockers := r.catalog.Blockers(skip)
	region := r.region()

	const passes = 3
	for pass := 0; pass < passes; pass++ {
		adjusted := false
		for _, obj := range blockers {
			box := obj.Bounds()
			if !SquareAt(candidate, region-contactEpsilon).Overlaps(box) {
				continue
			}
			candidate = r.ClampToBounds(slideAgainst(from, candidate, box, region))
			adjusted = true
		}
		if !adjusted {
			break
		}
	}

	if r.Blocked(candidate, skip) {
		candidate = from
	}

	dx := candidate.X - from.X
	dy := candidate.Y - from.Y
	return MoveResult{
		Position: candidate,
		Facing:   state.DeriveFacing(dx, dy, ""),
		Moved:    dx != 0 || dy != 0,
	}
}

// Step advances from along a direction vector for dt seconds. Vectors longer
// than one are normalized so diagonals are not faster than straight moves.
func (r *Resolver) Step(from Vec2, dx, dy, dt float64, skip func(id string) bool) MoveResult {
	length := math.Hypot(dx, dy)
	if length > 1 {
		dx /= length
		dy /= length
	}
	if length == 0 || dt <= 0 {
		return MoveResult{Position: r.ClampToBounds(from), Facing: state.DeriveFacing(0, 0, "")}
	}
	proposed := Vec2{
		X: from.X + dx*r.cfg.Speed*dt,
		Y: from.Y + dy*r.cfg.Speed*dt,
	}
	return r.Resolve(from, proposed, skip)
}

// slideAgainst freezes the axis along which from approached the box, placing
// that coordinate on the contact edge nearest from. The other axis keeps the
// proposed value.
func slideAgainst(from, candidate Vec2, box Rect, region float64) Vec2 {
	centerX := box.X + box.Width/2
	centerY := box.Y + box.Height/2
	distX := math.Abs(from.X-centerX) / (box.Width/2 + region)
	distY := math.Abs(from.Y-centerY) / (box.Height/2 + region)

	if distY >= distX {
		if from.Y <= centerY {
			candidate.Y = box.Y - region
		} else {
			candidate.Y = box.Y + box.Height + region
		}
		return candidate
	}
	if from.X <= centerX {
		candidate.X = box.X - region
	} else {
		candidate.X = box.X + box.Width + region
	}
	return candidate
}
