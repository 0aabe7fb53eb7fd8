package world

// ObjectKind groups static objects by how the rules treat them.
type ObjectKind string

const (
	KindFurniture     ObjectKind = "furniture"
	KindDecoration    ObjectKind = "decoration"
	KindPickup        ObjectKind = "pickup"
	KindPressurePlate ObjectKind = "pressure_plate"
	KindDoor          ObjectKind = "door"
)

// Object ids of the study.
const (
	ObjectDesk        = "desk"
	ObjectBookshelf   = "bookshelf"
	ObjectBook        = "book"
	ObjectPainting    = "painting"
	ObjectSafe        = "safe"
	ObjectDrawer      = "drawer"
	ObjectJigsawTable = "jigsaw_table"
	ObjectUVLamp      = "uv_lamp"
	ObjectNote        = "note"
	ObjectDoor        = "door"
	ObjectRug         = "rug"
	ObjectChair       = "chair"
	ObjectClock       = "grandfather_clock"
	ObjectColorTable  = "alchemy_table"
	ObjectSliderBox   = "slider_box"
	ObjectPlate1      = "plate_1"
	ObjectPlate2      = "plate_2"
)

// GameObject is an immutable catalog entry. Only its ObjectState changes at
// runtime.
type GameObject struct {
	ID                  string     `json:"id"`
	Label               string     `json:"label,omitempty"`
	Kind                ObjectKind `json:"kind"`
	X                   float64    `json:"x"`
	Y                   float64    `json:"y"`
	Width               float64    `json:"width"`
	Height              float64    `json:"height"`
	Interactable        bool       `json:"interactable,omitempty"`
	RequiresCooperation bool       `json:"requiresCooperation,omitempty"`
	Pickable            bool       `json:"pickable,omitempty"`
	ItemID              string     `json:"itemId,omitempty"`
	PuzzleID            string     `json:"puzzleId,omitempty"`
	RequiredPlates      []string   `json:"requiredPlates,omitempty"`
}

// Blocking reports whether the object participates in collision. Decorations
// and floor plates are walked over; picked-up items are handled by callers.
func (o GameObject) Blocking() bool {
	switch o.Kind {
	case KindDecoration, KindPressurePlate:
		return false
	default:
		return true
	}
}

// Center returns the midpoint of the object's box.
func (o GameObject) Center() Vec2 {
	return Vec2{X: o.X + o.Width/2, Y: o.Y + o.Height/2}
}

// Contains reports whether p lies within the object's box, edges included.
func (o GameObject) Contains(p Vec2) bool {
	return o.Bounds().Contains(p)
}

// Catalog is the fixed object table for a room type.
type Catalog struct {
	objects []GameObject
	byID    map[string]int
}

// NewCatalog indexes the provided objects. Later duplicates replace earlier ones.
func NewCatalog(objects []GameObject) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(objects))}
	for _, obj := range objects {
		if idx, ok := c.byID[obj.ID]; ok {
			c.objects[idx] = cloneObject(obj)
			continue
		}
		c.byID[obj.ID] = len(c.objects)
		c.objects = append(c.objects, cloneObject(obj))
	}
	return c
}

func cloneObject(obj GameObject) GameObject {
	if obj.RequiredPlates != nil {
		obj.RequiredPlates = append([]string(nil), obj.RequiredPlates...)
	}
	return obj
}

// Lookup returns the object with id.
func (c *Catalog) Lookup(id string) (GameObject, bool) {
	if c == nil {
		return GameObject{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return GameObject{}, false
	}
	return cloneObject(c.objects[idx]), true
}

// Objects returns a copy of every entry in declaration order.
func (c *Catalog) Objects() []GameObject {
	if c == nil {
		return nil
	}
	out := make([]GameObject, 0, len(c.objects))
	for _, obj := range c.objects {
		out = append(out, cloneObject(obj))
	}
	return out
}

// OfKind returns every object of the given kind.
func (c *Catalog) OfKind(kind ObjectKind) []GameObject {
	if c == nil {
		return nil
	}
	var out []GameObject
	for _, obj := range c.objects {
		if obj.Kind == kind {
			out = append(out, cloneObject(obj))
		}
	}
	return out
}

// Blockers returns the objects used for collision, skipping any id for which
// skip reports true (picked-up items, for instance).
func (c *Catalog) Blockers(skip func(id string) bool) []GameObject {
	if c == nil {
		return nil
	}
	out := make([]GameObject, 0, len(c.objects))
	for _, obj := range c.objects {
		if !obj.Blocking() {
			continue
		}
		if skip != nil && skip(obj.ID) {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// StudyObjects is the layout of The Locked Study.
func StudyObjects() []GameObject {
	return []GameObject{
		{ID: ObjectDesk, Label: "Desk", Kind: KindFurniture, X: 500, Y: 150, Width: 150, Height: 80, Interactable: true, PuzzleID: "book_cipher"},
		{ID: ObjectBookshelf, Label: "Bookshelf", Kind: KindFurniture, X: 50, Y: 50, Width: 120, Height: 180},
		{ID: ObjectBook, Label: "Old Book", Kind: KindFurniture, X: 70, Y: 80, Width: 40, Height: 30, Interactable: true},
		{ID: ObjectPainting, Label: "Painting", Kind: KindFurniture, X: 300, Y: 30, Width: 100, Height: 80, Interactable: true},
		{ID: ObjectSafe, Label: "Safe", Kind: KindFurniture, X: 680, Y: 200, Width: 80, Height: 80, Interactable: true, PuzzleID: "safe"},
		{ID: ObjectDrawer, Label: "Drawer", Kind: KindFurniture, X: 510, Y: 180, Width: 60, Height: 40, Interactable: true, PuzzleID: "code_lock"},
		{ID: ObjectJigsawTable, Label: "Puzzle Table", Kind: KindFurniture, X: 100, Y: 400, Width: 120, Height: 80, Interactable: true, PuzzleID: "jigsaw"},
		{ID: ObjectUVLamp, Label: "UV Lamp", Kind: KindPickup, X: 200, Y: 280, Width: 30, Height: 30, Interactable: true, Pickable: true, ItemID: "uv_lamp"},
		{ID: ObjectNote, Label: "Note", Kind: KindFurniture, X: 400, Y: 350, Width: 40, Height: 30, Interactable: true, PuzzleID: "uv_light"},
		{ID: ObjectDoor, Label: "Exit Door", Kind: KindDoor, X: 350, Y: 520, Width: 100, Height: 60, Interactable: true, RequiresCooperation: true, RequiredPlates: []string{ObjectPlate1, ObjectPlate2}},
		{ID: ObjectRug, Kind: KindDecoration, X: 300, Y: 280, Width: 200, Height: 150},
		{ID: ObjectChair, Label: "Chair", Kind: KindFurniture, X: 450, Y: 200, Width: 50, Height: 50},
		{ID: ObjectClock, Label: "Grandfather Clock", Kind: KindFurniture, X: 720, Y: 40, Width: 50, Height: 120, Interactable: true, PuzzleID: "clock"},
		{ID: ObjectColorTable, Label: "Alchemy Table", Kind: KindFurniture, X: 40, Y: 270, Width: 80, Height: 60, Interactable: true, PuzzleID: "color_mix"},
		{ID: ObjectSliderBox, Label: "Slider Box", Kind: KindFurniture, X: 600, Y: 420, Width: 50, Height: 50, Interactable: true, PuzzleID: "slider"},
		{ID: ObjectPlate1, Label: "Pressure Plate", Kind: KindPressurePlate, X: 230, Y: 530, Width: 50, Height: 40},
		{ID: ObjectPlate2, Label: "Pressure Plate", Kind: KindPressurePlate, X: 520, Y: 530, Width: 50, Height: 40},
	}
}

// StudyCatalog returns the catalog for The Locked Study.
func StudyCatalog() *Catalog {
	return NewCatalog(StudyObjects())
}
