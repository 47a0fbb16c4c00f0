package quest

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/raidsim/server/game/profile"
)

// ConditionKind is the closed set of condition variants the engine knows.
type ConditionKind int

const (
	KindUnknown ConditionKind = iota
	KindLevel
	KindQuest
	KindTraderLoyalty
	KindTraderStanding
	KindFindItem
	KindHandoverItem
	KindSellItemToTrader
	KindCounterCreator
)

var kindNames = map[ConditionKind]string{
	KindUnknown:          "Unknown",
	KindLevel:            "Level",
	KindQuest:            "Quest",
	KindTraderLoyalty:    "TraderLoyalty",
	KindTraderStanding:   "TraderStanding",
	KindFindItem:         "FindItem",
	KindHandoverItem:     "HandoverItem",
	KindSellItemToTrader: "SellItemToTrader",
	KindCounterCreator:   "CounterCreator",
}

func (k ConditionKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// ParseConditionKind maps a definition's conditionType to a kind. Unrecognised
// names become KindUnknown.
func ParseConditionKind(name string) ConditionKind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

func (k ConditionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ConditionKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("condition kind: %w", err)
	}
	*k = ParseConditionKind(name)
	return nil
}

// Target is a condition target that may be written as a single id or a list.
type Target struct {
	IDs    []string
	IsList bool
}

// Single returns a one-id target.
func Single(id string) Target { return Target{IDs: []string{id}} }

// List returns a list target.
func List(ids ...string) Target { return Target{IDs: ids, IsList: true} }

// First returns the first id, or "".
func (t Target) First() string {
	if len(t.IDs) == 0 {
		return ""
	}
	return t.IDs[0]
}

// Contains reports whether id is one of the target ids.
func (t Target) Contains(id string) bool {
	for _, v := range t.IDs {
		if v == id {
			return true
		}
	}
	return false
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsList {
		if t.IDs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(t.IDs)
	}
	return json.Marshal(t.First())
}

func (t *Target) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		t.IsList = true
		return json.Unmarshal(data, &t.IDs)
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("condition target: %w", err)
	}
	t.IsList = false
	t.IDs = nil
	if id != "" {
		t.IDs = []string{id}
	}
	return nil
}

// Condition is one requirement attached to a quest. Which fields matter
// depends on Kind.
type Condition struct {
	ID             string               `json:"id"`
	Kind           ConditionKind        `json:"conditionType"`
	CompareMethod  string               `json:"compareMethod,omitempty"`
	Value          float64              `json:"value,omitempty"`
	Target         Target               `json:"target"`
	Status         []profile.QuestState `json:"status,omitempty"`
	AvailableAfter int64                `json:"availableAfter,omitempty"`
	DynamicLocale  bool                 `json:"dynamicLocale,omitempty"`
}

// HasStatus reports whether s is one of the condition's accepted states.
func (c Condition) HasStatus(s profile.QuestState) bool {
	for _, v := range c.Status {
		if v == s {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c.
func (c Condition) Clone() Condition {
	out := c
	out.Target.IDs = append([]string(nil), c.Target.IDs...)
	out.Status = append([]profile.QuestState(nil), c.Status...)
	return out
}

func cloneConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	out := make([]Condition, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func filterKind(in []Condition, kind ConditionKind) []Condition {
	var out []Condition
	for _, c := range in {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
