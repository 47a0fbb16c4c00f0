package quest

import "sort"

// Definitions is the immutable quest database. It is safe for concurrent
// reads after construction.
type Definitions struct {
	order        []string
	byID         map[string]*Quest
	sellToTrader map[string][]Condition
}

// NewDefinitions indexes quests. Ids are ordered so every listing is stable.
func NewDefinitions(quests map[string]*Quest) *Definitions {
	d := &Definitions{
		byID:         make(map[string]*Quest, len(quests)),
		sellToTrader: make(map[string][]Condition),
	}
	for id, q := range quests {
		if q == nil {
			continue
		}
		if q.ID == "" {
			q.ID = id
		}
		d.byID[id] = q
		d.order = append(d.order, id)
		if sells := filterKind(q.Conditions.AvailableForFinish, KindSellItemToTrader); len(sells) > 0 {
			d.sellToTrader[id] = sells
		}
	}
	sort.Strings(d.order)
	return d
}

// Get returns the definition for id.
func (d *Definitions) Get(id string) (*Quest, bool) {
	q, ok := d.byID[id]
	return q, ok
}

// All returns every definition in id order.
func (d *Definitions) All() []*Quest {
	out := make([]*Quest, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Len returns the number of definitions.
func (d *Definitions) Len() int { return len(d.order) }

// SellToTraderConditions returns the SellItemToTrader finish conditions of
// questID.
func (d *Definitions) SellToTraderConditions(questID string) []Condition {
	return d.sellToTrader[questID]
}
