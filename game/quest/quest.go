package quest

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/profile"
)

// RewardKind is the closed set of reward variants.
type RewardKind int

const (
	RewardUnknown RewardKind = iota
	RewardExperience
	RewardTraderStanding
	RewardItem
	RewardSkill
)

var rewardNames = map[RewardKind]string{
	RewardUnknown:        "Unknown",
	RewardExperience:     "Experience",
	RewardTraderStanding: "TraderStanding",
	RewardItem:           "Item",
	RewardSkill:          "Skill",
}

func (k RewardKind) String() string {
	if n, ok := rewardNames[k]; ok {
		return n
	}
	return "Unknown"
}

func (k RewardKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *RewardKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("reward kind: %w", err)
	}
	*k = RewardUnknown
	for kind, n := range rewardNames {
		if n == name {
			*k = kind
		}
	}
	return nil
}

type Reward struct {
	ID     string     `json:"id"`
	Kind   RewardKind `json:"type"`
	Value  float64    `json:"value,omitempty"`
	Target string     `json:"target,omitempty"`
	// Items holds an item tree whose first element is the root.
	Items                      []item.Item `json:"items,omitempty"`
	FindInRaid                 bool        `json:"findInRaid,omitempty"`
	AvailableInGameEditions    []string    `json:"availableInGameEditions,omitempty"`
	NotAvailableInGameEditions []string    `json:"notAvailableInGameEditions,omitempty"`
}

// ForGameEdition reports whether the reward is granted to gameVersion.
func (r Reward) ForGameEdition(gameVersion string) bool {
	if len(r.AvailableInGameEditions) > 0 && !slices.Contains(r.AvailableInGameEditions, gameVersion) {
		return false
	}
	return !slices.Contains(r.NotAvailableInGameEditions, gameVersion)
}

type Rewards struct {
	Started []Reward `json:"Started,omitempty"`
	Success []Reward `json:"Success,omitempty"`
	Fail    []Reward `json:"Fail,omitempty"`
}

// For returns the rewards granted on entering state s.
func (r Rewards) For(s profile.QuestState) []Reward {
	switch s {
	case profile.QuestStarted:
		return r.Started
	case profile.QuestSuccess:
		return r.Success
	case profile.QuestFail:
		return r.Fail
	}
	return nil
}

type Conditions struct {
	AvailableForStart  []Condition `json:"AvailableForStart"`
	AvailableForFinish []Condition `json:"AvailableForFinish"`
	Fail               []Condition `json:"Fail"`
}

// Quest is a static quest definition. Status is only set on copies handed
// to clients and carries the player's state for that quest.
type Quest struct {
	ID                 string     `json:"_id"`
	Name               string     `json:"QuestName"`
	TraderID           string     `json:"traderId"`
	Location           string     `json:"location,omitempty"`
	Type               string     `json:"type,omitempty"`
	Repeatable         bool       `json:"repeatable,omitempty"`
	Description        string     `json:"description,omitempty"`
	StartedMessageText string     `json:"startedMessageText,omitempty"`
	SuccessMessageText string     `json:"successMessageText,omitempty"`
	FailMessageText    string     `json:"failMessageText,omitempty"`
	Conditions         Conditions `json:"conditions"`
	Rewards            Rewards    `json:"rewards"`

	Status profile.QuestState `json:"sptStatus,omitempty"`
}

// Clone returns a deep copy of q.
func (q *Quest) Clone() *Quest {
	out := *q
	out.Conditions = Conditions{
		AvailableForStart:  cloneConditions(q.Conditions.AvailableForStart),
		AvailableForFinish: cloneConditions(q.Conditions.AvailableForFinish),
		Fail:               cloneConditions(q.Conditions.Fail),
	}
	out.Rewards = Rewards{
		Started: cloneRewards(q.Rewards.Started),
		Success: cloneRewards(q.Rewards.Success),
		Fail:    cloneRewards(q.Rewards.Fail),
	}
	return &out
}

// WithLevelConditionsOnly returns a copy whose start conditions keep only
// level requirements.
func (q *Quest) WithLevelConditionsOnly() *Quest {
	out := q.Clone()
	out.Conditions.AvailableForStart = filterKind(out.Conditions.AvailableForStart, KindLevel)
	return out
}

// WithEditionRewards returns a copy without rewards gameVersion does not get.
func (q *Quest) WithEditionRewards(gameVersion string) *Quest {
	out := q.Clone()
	keep := func(in []Reward) []Reward {
		var res []Reward
		for _, r := range in {
			if r.ForGameEdition(gameVersion) {
				res = append(res, r)
			}
		}
		return res
	}
	out.Rewards.Started = keep(out.Rewards.Started)
	out.Rewards.Success = keep(out.Rewards.Success)
	out.Rewards.Fail = keep(out.Rewards.Fail)
	return out
}

func cloneRewards(in []Reward) []Reward {
	if in == nil {
		return nil
	}
	out := make([]Reward, len(in))
	for i, r := range in {
		out[i] = r
		out[i].Items = item.Clone(r.Items)
		out[i].AvailableInGameEditions = slices.Clone(r.AvailableInGameEditions)
		out[i].NotAvailableInGameEditions = slices.Clone(r.NotAvailableInGameEditions)
	}
	return out
}
