package state

import (
	"encoding/json"

	"github.com/zyedidia/generic/mapset"
)

// Well-known item identifiers.
const (
	ItemKeyPiece1 = "key_piece_1"
	ItemKeyPiece2 = "key_piece_2"
	ItemKeyPiece3 = "key_piece_3"
	ItemMasterKey = "master_key"
	ItemUVLamp    = "uv_lamp"
)

// KeyPieces lists the items consumed by the master key recipe.
var KeyPieces = []string{ItemKeyPiece1, ItemKeyPiece2, ItemKeyPiece3}

// Inventory is the room's shared item set. Membership is tracked in a set so
// an item id can never appear twice; order records acquisition for display.
// Copies share storage, use Clone before handing one out.
type Inventory struct {
	items mapset.Set[string]
	order []string
}

// NewInventory constructs an empty inventory.
func NewInventory(items ...string) Inventory {
	inv := Inventory{items: mapset.New[string]()}
	for _, item := range items {
		inv.Add(item)
	}
	return inv
}

func (inv *Inventory) ensure() {
	if inv.order == nil {
		inv.items = mapset.New[string]()
		inv.order = make([]string, 0, 4)
	}
}

// Add inserts item, reporting false when it was already present.
func (inv *Inventory) Add(item string) bool {
	if item == "" {
		return false
	}
	inv.ensure()
	if inv.items.Has(item) {
		return false
	}
	inv.items.Put(item)
	inv.order = append(inv.order, item)
	return true
}

// Remove deletes item, reporting whether it was present.
func (inv *Inventory) Remove(item string) bool {
	if !inv.items.Has(item) {
		return false
	}
	inv.items.Remove(item)
	for i, existing := range inv.order {
		if existing == item {
			inv.order = append(inv.order[:i:i], inv.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether item is held.
func (inv Inventory) Has(item string) bool {
	return inv.items.Has(item)
}

// HasAll reports whether every item is held.
func (inv Inventory) HasAll(items ...string) bool {
	for _, item := range items {
		if !inv.Has(item) {
			return false
		}
	}
	return true
}

// Len reports the number of held items.
func (inv Inventory) Len() int {
	return len(inv.order)
}

// Items returns the held items in acquisition order.
func (inv Inventory) Items() []string {
	items := make([]string, len(inv.order))
	copy(items, inv.order)
	return items
}

// Clone returns an independent copy.
func (inv Inventory) Clone() Inventory {
	return NewInventory(inv.order...)
}

// Equal reports whether both inventories hold the same items in the same order.
func (inv Inventory) Equal(other Inventory) bool {
	if len(inv.order) != len(other.order) {
		return false
	}
	for i := range inv.order {
		if inv.order[i] != other.order[i] {
			return false
		}
	}
	return true
}

func (inv Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inv.Items())
}

func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*inv = NewInventory(items...)
	return nil
}
