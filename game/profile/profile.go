// Package profile holds the per-player snapshot and the machinery that
// serialises access to it.
package profile

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kasuganosora/raidsim/server/game/item"
)

const (
	SideUsec = "Usec"
	SideBear = "Bear"
)

// QuestState is a quest's per-player lifecycle state. The numeric values are
// persisted and must not change.
type QuestState int

const (
	QuestLocked             QuestState = 0
	QuestAvailableForStart  QuestState = 1
	QuestStarted            QuestState = 2
	QuestAvailableForFinish QuestState = 3
	QuestSuccess            QuestState = 4
	QuestFail               QuestState = 5
	QuestFailRestartable    QuestState = 6
	QuestMarkedAsFailed     QuestState = 7
	QuestExpired            QuestState = 8
	QuestAvailableAfter     QuestState = 9
)

var questStateNames = map[QuestState]string{
	QuestLocked:             "Locked",
	QuestAvailableForStart:  "AvailableForStart",
	QuestStarted:            "Started",
	QuestAvailableForFinish: "AvailableForFinish",
	QuestSuccess:            "Success",
	QuestFail:               "Fail",
	QuestFailRestartable:    "FailRestartable",
	QuestMarkedAsFailed:     "MarkedAsFailed",
	QuestExpired:            "Expired",
	QuestAvailableAfter:     "AvailableAfter",
}

func (s QuestState) String() string {
	if n, ok := questStateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// ParseQuestState accepts a state name (case-insensitive) or its numeric value.
func ParseQuestState(name string) (QuestState, bool) {
	if n, err := strconv.Atoi(name); err == nil {
		_, ok := questStateNames[QuestState(n)]
		return QuestState(n), ok
	}
	for s, n := range questStateNames {
		if strings.EqualFold(n, name) {
			return s, true
		}
	}
	return 0, false
}

// QuestStatus is the profile's row for one quest.
type QuestStatus struct {
	QID                 string               `json:"qid"`
	Status              QuestState           `json:"status"`
	StartTime           int64                `json:"startTime"`
	StatusTimers        map[QuestState]int64 `json:"statusTimers"`
	AvailableAfter      int64                `json:"availableAfter,omitempty"`
	CompletedConditions []string             `json:"completedConditions"`
}

// Clone returns a deep copy of q.
func (q QuestStatus) Clone() QuestStatus {
	out := q
	out.StatusTimers = make(map[QuestState]int64, len(q.StatusTimers))
	for k, v := range q.StatusTimers {
		out.StatusTimers[k] = v
	}
	if q.CompletedConditions != nil {
		out.CompletedConditions = append([]string(nil), q.CompletedConditions...)
	}
	return out
}

type Info struct {
	Nickname         string `json:"nickname"`
	Side             string `json:"side"`
	Level            int    `json:"level"`
	Experience       int64  `json:"experience"`
	GameVersion      string `json:"gameVersion"`
	Language         string `json:"language,omitempty"`
	RegistrationDate int64  `json:"registrationDate"`
}

type TraderInfo struct {
	LoyaltyLevel int      `json:"loyaltyLevel"`
	Standing     *float64 `json:"standing,omitempty"`
	SalesSum     float64  `json:"salesSum"`
	Unlocked     bool     `json:"unlocked"`
}

type Skill struct {
	ID                        string  `json:"id"`
	Progress                  float64 `json:"progress"`
	PointsEarnedDuringSession float64 `json:"pointsEarnedDuringSession"`
	LastAccess                int64   `json:"lastAccess"`
}

// TaskConditionCounter tracks progress toward one quest condition.
type TaskConditionCounter struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	SourceID string  `json:"sourceId"`
	Value    float64 `json:"value"`
}

type InsuranceSystemData struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// InsurancePackage is a bundle of lost insured items awaiting return.
type InsurancePackage struct {
	TraderID          string              `json:"traderId"`
	ScheduledTime     int64               `json:"scheduledTime"`
	MaxStorageTime    int64               `json:"maxStorageTime"`
	MessageType       int                 `json:"messageType,omitempty"`
	MessageTemplateID string              `json:"messageTemplateId,omitempty"`
	SystemData        InsuranceSystemData `json:"systemData"`
	Items             []item.Item         `json:"items"`
}

// Matches reports whether p identifies the same package as other.
func (p InsurancePackage) Matches(other InsurancePackage) bool {
	return p.TraderID == other.TraderID &&
		p.SystemData.Date == other.SystemData.Date &&
		p.SystemData.Time == other.SystemData.Time &&
		p.SystemData.Location == other.SystemData.Location
}

type InsuredItem struct {
	TraderID string `json:"tid"`
	ItemID   string `json:"itemId"`
}

type Inventory struct {
	Stash string      `json:"stash"`
	Items []item.Item `json:"items"`
}

// Profile is one player's full persisted state.
type Profile struct {
	ID                    string                           `json:"id"`
	Info                  Info                             `json:"info"`
	TradersInfo           map[string]*TraderInfo           `json:"tradersInfo"`
	Quests                []QuestStatus                    `json:"quests"`
	InsuranceList         []InsurancePackage               `json:"insurance"`
	InsuredItems          []InsuredItem                    `json:"insuredItems"`
	Skills                []Skill                          `json:"skills"`
	TaskConditionCounters map[string]*TaskConditionCounter `json:"taskConditionCounters"`
	Inventory             Inventory                        `json:"inventory"`
}

// DefaultSkills are created for every new profile.
var DefaultSkills = []string{
	"Endurance", "Strength", "Vitality", "Health", "StressResistance", "Metabolism",
	"Immunity", "Perception", "Intellect", "Attention", "Charisma", "Memory",
	"Search", "Surgery", "CovertMovement",
}

// New builds a level-1 profile that knows the given traders.
func New(id, nickname, side, gameVersion string, traderIDs []string, now int64) *Profile {
	p := &Profile{
		ID: id,
		Info: Info{
			Nickname:         nickname,
			Side:             side,
			Level:            1,
			GameVersion:      gameVersion,
			RegistrationDate: now,
		},
		TradersInfo:           make(map[string]*TraderInfo, len(traderIDs)),
		TaskConditionCounters: make(map[string]*TaskConditionCounter),
		Inventory:             Inventory{Stash: id + "-stash"},
	}
	for _, tid := range traderIDs {
		p.TradersInfo[tid] = &TraderInfo{LoyaltyLevel: 1, Unlocked: true}
	}
	for _, s := range DefaultSkills {
		p.Skills = append(p.Skills, Skill{ID: s})
	}
	return p
}

// Quest returns the status row for questID.
func (p *Profile) Quest(questID string) (*QuestStatus, bool) {
	for i := range p.Quests {
		if p.Quests[i].QID == questID {
			return &p.Quests[i], true
		}
	}
	return nil, false
}

// SetQuest replaces the row with the same quest id, or appends it.
func (p *Profile) SetQuest(row QuestStatus) {
	for i := range p.Quests {
		if p.Quests[i].QID == row.QID {
			p.Quests[i] = row
			return
		}
	}
	p.Quests = append(p.Quests, row)
}

func (p *Profile) Skill(id string) (*Skill, bool) {
	for i := range p.Skills {
		if p.Skills[i].ID == id {
			return &p.Skills[i], true
		}
	}
	return nil, false
}

func (p *Profile) Trader(id string) (*TraderInfo, bool) {
	t, ok := p.TradersInfo[id]
	return t, ok && t != nil
}

// IsUsec reports whether the profile plays the Usec side.
func (p *Profile) IsUsec() bool {
	return strings.EqualFold(p.Info.Side, SideUsec)
}

// RemoveInsurancePackage drops the package matching pkg. It reports whether
// one was found.
func (p *Profile) RemoveInsurancePackage(pkg InsurancePackage) bool {
	for i := range p.InsuranceList {
		if p.InsuranceList[i].Matches(pkg) {
			p.InsuranceList = append(p.InsuranceList[:i], p.InsuranceList[i+1:]...)
			return true
		}
	}
	return false
}

// IsInsured reports whether itemID is already insured with any trader.
func (p *Profile) IsInsured(itemID string) bool {
	for _, ins := range p.InsuredItems {
		if ins.ItemID == itemID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy via the persisted encoding.
func (p *Profile) Clone() (*Profile, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	out := &Profile{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
