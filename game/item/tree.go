package item

import "strings"

// MaxParentDepth bounds parent walks so a cyclic parent chain in bad data
// cannot loop forever.
const MaxParentDepth = 64

var equipmentSlots = map[string]struct{}{
	"Headwear": {}, "Earpiece": {}, "FaceCover": {}, "ArmorVest": {}, "Eyewear": {},
	"ArmBand": {}, "TacticalVest": {}, "Pockets": {}, "Backpack": {}, "SecuredContainer": {},
	"FirstPrimaryWeapon": {}, "SecondPrimaryWeapon": {}, "Holster": {}, "Scabbard": {},
}

var softInsertSlots = map[string]struct{}{
	"soft_armor_front": {}, "soft_armor_back": {}, "soft_armor_left": {}, "soft_armor_right": {},
	"collar": {}, "groin": {}, "groin_back": {}, "shoulder_l": {}, "shoulder_r": {},
	"helmet_top": {}, "helmet_back": {}, "helmet_eyes": {}, "helmet_jaw": {}, "helmet_ears": {},
}

// Map indexes items by id.
func Map(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

// IsAttachmentAttached reports whether it sits in a mod slot of another item,
// as opposed to a container grid, an equipment slot or the stash root.
// Rounds loaded in a magazine are not attachments.
func IsAttachmentAttached(it Item) bool {
	switch it.SlotID {
	case "", "hideout", "main", "cartridges":
		return false
	}
	if _, ok := equipmentSlots[it.SlotID]; ok {
		return false
	}
	return !isNumeric(it.SlotID)
}

// IsSoftInsertSlot reports whether slotID holds a removable armor insert.
func IsSoftInsertSlot(slotID string) bool {
	_, ok := softInsertSlots[strings.ToLower(slotID)]
	return ok
}

// MainParent walks up from id until it reaches an item that is not an
// attached attachment. It returns false when the chain breaks or exceeds
// MaxParentDepth.
func MainParent(id string, items map[string]Item) (Item, bool) {
	cur, ok := items[id]
	for depth := 0; ok && IsAttachmentAttached(cur); depth++ {
		if depth >= MaxParentDepth {
			return Item{}, false
		}
		cur, ok = items[cur.ParentID]
	}
	return cur, ok
}

// AdoptOrphans returns a copy of items where every item whose parent is not
// present is re-parented to rootID in the "hideout" slot.
func AdoptOrphans(items []Item, rootID string) []Item {
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}
	out := Clone(items)
	for i := range out {
		if _, ok := ids[out[i].ParentID]; ok {
			continue
		}
		if out[i].ParentID == rootID || out[i].SlotID == "hideout" {
			continue
		}
		out[i].ParentID = rootID
		out[i].SlotID = "hideout"
	}
	return out
}

// WithChildren returns the item with id and all of its descendants.
func WithChildren(items []Item, id string) []Item {
	children := make(map[string][]Item)
	var root *Item
	for i := range items {
		if items[i].ID == id {
			root = &items[i]
		}
		children[items[i].ParentID] = append(children[items[i].ParentID], items[i])
	}
	if root == nil {
		return nil
	}
	out := []Item{*root}
	seen := map[string]struct{}{id: {}}
	for i := 0; i < len(out); i++ {
		for _, c := range children[out[i].ID] {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// IsRaidModdable reports whether it may be removed from parent while in raid.
// The second result is false when either template is unknown or it has no slot.
func IsRaidModdable(c Catalog, it, parent Item) (moddable, known bool) {
	if it.SlotID == "" {
		return false, false
	}
	tpl, okItem := c.GetItem(it.Template)
	parentTpl, okParent := c.GetItem(parent.Template)
	if !okItem || !okParent {
		return false, false
	}
	if tpl.RaidModdable != nil && !*tpl.RaidModdable {
		return false, true
	}
	for _, s := range parentTpl.Slots {
		if s.Name == it.SlotID && s.Required {
			return false, true
		}
	}
	return true, true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
