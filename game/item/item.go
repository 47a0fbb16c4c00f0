// Package item models inventory items as a flat arena of records linked by
// parent id, plus the read-only template catalog used to interpret them.
package item

// Upd carries optional per-instance state.
type Upd struct {
	StackObjectsCount *int64 `json:"StackObjectsCount,omitempty"`
	SpawnedInSession  bool   `json:"SpawnedInSession,omitempty"`
}

// Item is one inventory record. Parent links are by id; the tree is never
// stored as nested structures.
type Item struct {
	ID       string `json:"_id"`
	Template string `json:"_tpl"`
	ParentID string `json:"parentId,omitempty"`
	SlotID   string `json:"slotId,omitempty"`
	Upd      *Upd   `json:"upd,omitempty"`
}

// Slot is a named attachment point on a template.
type Slot struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Template is the static definition of an item kind.
type Template struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Parent       string `json:"parent"`
	RaidModdable *bool  `json:"raidModdable,omitempty"`
	Slots        []Slot `json:"slots,omitempty"`
}

// Catalog resolves templates and prices.
type Catalog interface {
	GetItem(tpl string) (*Template, bool)
	// GetItemPrice returns the handbook price of tpl in roubles.
	GetItemPrice(tpl string) (float64, bool)
}

// Clone returns a deep copy of items.
func Clone(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		if it.Upd != nil {
			upd := *it.Upd
			if upd.StackObjectsCount != nil {
				n := *upd.StackObjectsCount
				upd.StackObjectsCount = &n
			}
			out[i].Upd = &upd
		}
	}
	return out
}
