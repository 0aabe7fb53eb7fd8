package world

import (
	"math"
	"testing"

	"locked-study/server/internal/state"
)

func newStudyResolver() *Resolver {
	return NewResolver(DefaultConfig(), StudyCatalog())
}

func TestResolveDeskApproachFromAboveSlides(t *testing.T) {
	r := newStudyResolver()
	from := Vec2{X: 575, Y: 120}
	if r.Blocked(from, nil) {
		t.Fatalf("expected start position to be free")
	}

	res := r.Resolve(from, Vec2{X: 585, Y: 140}, nil)

	desk, _ := r.Catalog().Lookup(ObjectDesk)
	wantY := desk.Y - (DefaultPlayerSize/2 + DefaultPadding)
	if math.Abs(res.Position.Y-wantY) > 1e-6 {
		t.Fatalf("expected y frozen at desk top edge %.2f, got %.2f", wantY, res.Position.Y)
	}
	if res.Position.X != 585 {
		t.Fatalf("expected x to continue to 585, got %.2f", res.Position.X)
	}
	if res.Facing != state.FacingDown {
		t.Fatalf("expected facing down, got %s", res.Facing)
	}
}

func TestResolveSideApproachFreezesX(t *testing.T) {
	r := newStudyResolver()
	safe, _ := r.Catalog().Lookup(ObjectSafe)
	from := Vec2{X: safe.X - 40, Y: safe.Y + 60}
	res := r.Resolve(from, Vec2{X: safe.X + 10, Y: safe.Y + 65}, nil)

	wantX := safe.X - (DefaultPlayerSize/2 + DefaultPadding)
	if math.Abs(res.Position.X-wantX) > 1e-6 {
		t.Fatalf("expected x frozen at %.2f, got %.2f", wantX, res.Position.X)
	}
	if res.Position.Y != safe.Y+65 {
		t.Fatalf("expected y to slide to %.2f, got %.2f", safe.Y+65, res.Position.Y)
	}
}

func TestResolveClampsToRoomBounds(t *testing.T) {
	r := newStudyResolver()
	res := r.Resolve(Vec2{X: 400, Y: 300}, Vec2{X: -500, Y: 300}, nil)
	if res.Position.X != DefaultPlayerSize/2 {
		t.Fatalf("expected clamp to %.1f, got %.2f", DefaultPlayerSize/2, res.Position.X)
	}

	res = r.Resolve(Vec2{X: 400, Y: 300}, Vec2{X: 400, Y: 10_000}, nil)
	if res.Position.Y > DefaultHeight-DefaultPlayerSize/2 {
		t.Fatalf("expected y inside bounds, got %.2f", res.Position.Y)
	}
}

func TestResolveNeverPenetratesBlockers(t *testing.T) {
	r := newStudyResolver()
	rng := NewDeterministicRNG("movement", "fuzz")
	pos := Vec2{X: 400, Y: 300}

	for i := 0; i < 2000; i++ {
		proposed := Vec2{
			X: pos.X + (rng.Float64()*2-1)*60,
			Y: pos.Y + (rng.Float64()*2-1)*60,
		}
		if i%50 == 0 {
			proposed = Vec2{X: rng.Float64()*1000 - 100, Y: rng.Float64()*800 - 100}
		}
		res := r.Resolve(pos, proposed, nil)
		p := res.Position
		half := DefaultPlayerSize / 2
		if p.X < half || p.X > DefaultWidth-half || p.Y < half || p.Y > DefaultHeight-half {
			t.Fatalf("step %d: position %+v out of bounds", i, p)
		}
		if r.Blocked(p, nil) {
			t.Fatalf("step %d: position %+v overlaps a blocker", i, p)
		}
		pos = p
	}
}

func TestResolveIgnoresDecorationsAndPlates(t *testing.T) {
	r := newStudyResolver()
	rug, _ := r.Catalog().Lookup(ObjectRug)
	onRug := Vec2{X: rug.X + 30, Y: rug.Y + 20}
	res := r.Resolve(Vec2{X: onRug.X, Y: rug.Y - 20}, onRug, nil)
	if res.Position != onRug {
		t.Fatalf("expected to walk onto the rug, got %+v", res.Position)
	}

	plate, _ := r.Catalog().Lookup(ObjectPlate1)
	if r.Blocked(plate.Center(), nil) {
		t.Fatalf("pressure plates must not block")
	}
}

func TestResolveSkipsPickedUpItems(t *testing.T) {
	r := newStudyResolver()
	lamp, _ := r.Catalog().Lookup(ObjectUVLamp)
	if !r.Blocked(lamp.Center(), nil) {
		t.Fatalf("expected lamp to block while on the floor")
	}
	skip := func(id string) bool { return id == ObjectUVLamp }
	if r.Blocked(lamp.Center(), skip) {
		t.Fatalf("expected picked up lamp to stop blocking")
	}
}

func TestStepNormalizesDiagonalInput(t *testing.T) {
	r := newStudyResolver()
	from := Vec2{X: 400, Y: 300}
	dt := 0.1

	straight := r.Step(from, 1, 0, dt, nil)
	diagonal := r.Step(from, 1, 1, dt, nil)

	straightDist := Distance(from, straight.Position)
	diagonalDist := Distance(from, diagonal.Position)
	if math.Abs(straightDist-diagonalDist) > 1e-6 {
		t.Fatalf("diagonal distance %.4f differs from straight %.4f", diagonalDist, straightDist)
	}
	if math.Abs(straightDist-DefaultSpeed*dt) > 1e-6 {
		t.Fatalf("expected distance %.2f, got %.4f", DefaultSpeed*dt, straightDist)
	}

	half := r.Step(from, 0.5, 0, dt, nil)
	if got := Distance(from, half.Position); math.Abs(got-DefaultSpeed*dt/2) > 1e-6 {
		t.Fatalf("expected partial joystick input to scale, got %.4f", got)
	}
}

func TestStepWithoutInputKeepsPosition(t *testing.T) {
	r := newStudyResolver()
	res := r.Step(Vec2{X: 400, Y: 300}, 0, 0, 0.1, nil)
	if res.Moved {
		t.Fatalf("expected no movement")
	}
}

func TestGenerateSecretsIsDeterministic(t *testing.T) {
	a := GenerateSecrets("seed", "abc123", state.Secrets{})
	b := GenerateSecrets("seed", "abc123", state.Secrets{})
	if a != b {
		t.Fatalf("expected identical secrets, got %+v and %+v", a, b)
	}
	if len(a.LockCode) != 4 || len(a.SafeCode) != 3 {
		t.Fatalf("unexpected code lengths: %+v", a)
	}
	if a.ClockTime != DefaultClockTime {
		t.Fatalf("expected default clock time, got %q", a.ClockTime)
	}

	overridden := GenerateSecrets("seed", "abc123", state.Secrets{LockCode: "1234"})
	if overridden.LockCode != "1234" || overridden.SafeCode != a.SafeCode {
		t.Fatalf("override not applied: %+v", overridden)
	}
}

func TestUnseededSecretsUseProcessSeed(t *testing.T) {
	seed := ProcessSeed()
	if seed == "" || seed != ProcessSeed() {
		t.Fatalf("process seed should be drawn once, got %q", seed)
	}
	if seed == "locked-study" {
		t.Fatalf("process seed must not be a fixed constant")
	}
	unseeded := GenerateSecrets("", "abc123", state.Secrets{})
	if unseeded != GenerateSecrets(seed, "abc123", state.Secrets{}) {
		t.Fatalf("empty seed should fall back to the process seed")
	}
}

func TestCatalogLookupReturnsCopies(t *testing.T) {
	c := StudyCatalog()
	door, ok := c.Lookup(ObjectDoor)
	if !ok {
		t.Fatalf("door missing from catalog")
	}
	door.RequiredPlates[0] = "mutated"
	again, _ := c.Lookup(ObjectDoor)
	if again.RequiredPlates[0] != ObjectPlate1 {
		t.Fatalf("catalog entry mutated through lookup copy")
	}
	if len(c.OfKind(KindPressurePlate)) != 2 {
		t.Fatalf("expected two pressure plates")
	}
}
