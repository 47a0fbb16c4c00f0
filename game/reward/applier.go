// Package reward grants quest rewards to a profile.
package reward

import (
	"github.com/google/uuid"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/game/skill"
	"go.uber.org/zap"
)

// Applier implements quest.RewardApplier.
type Applier struct {
	skills *skill.Service
	// expTable[i] is the total experience needed to reach level i+1.
	expTable []int64
	newID    func() string
	logger   *zap.Logger
}

func NewApplier(skills *skill.Service, expTable []int64, logger *zap.Logger) *Applier {
	return &Applier{skills: skills, expTable: expTable, newID: uuid.NewString, logger: logger}
}

// ApplyReward grants the quest's rewards for state to p and returns the item
// rewards, freshly identified, for delivery by mail. The caller holds the
// profile lock.
func (a *Applier) ApplyReward(p *profile.Profile, q *quest.Quest, state profile.QuestState) []item.Item {
	var items []item.Item
	for _, r := range q.Rewards.For(state) {
		if !r.ForGameEdition(p.Info.GameVersion) {
			continue
		}
		switch r.Kind {
		case quest.RewardExperience:
			a.addExperience(p, int64(r.Value))
		case quest.RewardTraderStanding:
			a.addStanding(p, r.Target, r.Value)
		case quest.RewardSkill:
			a.skills.AddSkillPoints(p, r.Target, r.Value, false)
		case quest.RewardItem:
			items = append(items, a.reidentify(r.Items, r.FindInRaid)...)
		default:
			a.logger.Warn("unhandled reward kind",
				zap.String("quest_id", q.ID), zap.String("reward_id", r.ID), zap.Stringer("kind", r.Kind))
		}
	}
	return items
}

func (a *Applier) addExperience(p *profile.Profile, xp int64) {
	p.Info.Experience += xp
	if p.Info.Experience < 0 {
		p.Info.Experience = 0
	}
	if len(a.expTable) > 0 {
		p.Info.Level = LevelForExperience(a.expTable, p.Info.Experience)
	}
}

func (a *Applier) addStanding(p *profile.Profile, traderID string, delta float64) {
	tr, ok := p.Trader(traderID)
	if !ok {
		a.logger.Error("standing reward for trader missing from profile",
			zap.String("profile_id", p.ID), zap.String("trader_id", traderID))
		return
	}
	standing := delta
	if tr.Standing != nil {
		standing += *tr.Standing
	}
	tr.Standing = &standing
}

// reidentify copies an item tree giving every item a new id while keeping
// parent links inside the tree.
func (a *Applier) reidentify(items []item.Item, foundInRaid bool) []item.Item {
	out := item.Clone(items)
	ids := make(map[string]string, len(out))
	for i := range out {
		fresh := a.newID()
		ids[out[i].ID] = fresh
		out[i].ID = fresh
	}
	for i := range out {
		if np, ok := ids[out[i].ParentID]; ok {
			out[i].ParentID = np
		}
		if foundInRaid {
			if out[i].Upd == nil {
				out[i].Upd = &item.Upd{}
			}
			out[i].Upd.SpawnedInSession = true
		}
	}
	return out
}

// LevelForExperience returns the level reached with xp total experience.
func LevelForExperience(expTable []int64, xp int64) int {
	level := 0
	for _, need := range expTable {
		if xp < need {
			break
		}
		level++
	}
	if level < 1 {
		level = 1
	}
	return level
}
