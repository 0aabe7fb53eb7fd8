package world

import (
	"math"

	"locked-study/server/internal/state"
)

// Vec2 aliases the shared state vector type for world helpers.
type Vec2 = state.Vec2

const (
	DefaultWidth      = 800.0
	DefaultHeight     = 600.0
	DefaultPlayerSize = 24.0
	DefaultPadding    = 4.0
	DefaultSpeed      = 180.0
)

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Rect is an axis-aligned box anchored at its top-left corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Bounds returns the object's AABB.
func (o GameObject) Bounds() Rect {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// SquareAt builds a box of the given half extent centred on p.
func SquareAt(p Vec2, half float64) Rect {
	return Rect{X: p.X - half, Y: p.Y - half, Width: half * 2, Height: half * 2}
}

// Overlaps reports strict interior overlap. Touching edges do not count.
func (r Rect) Overlaps(other Rect) bool {
	return r.X < other.X+other.Width &&
		r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height &&
		r.Y+r.Height > other.Y
}

// Contains reports whether p lies within r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
