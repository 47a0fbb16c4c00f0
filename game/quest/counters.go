package quest

import (
	"context"
	"fmt"

	"github.com/kasuganosora/raidsim/server/game/profile"
	"go.uber.org/zap"
)

// CounterSellItemToTrader is the counter type bumped by trader sales.
const CounterSellItemToTrader = "SellItemToTrader"

// SoldItem is one inventory item sold to a trader.
type SoldItem struct {
	ItemID string `json:"id" binding:"required"`
	Count  int64  `json:"count" binding:"min=1"`
}

// IncrementSoldToTraderCounters adds sold counts to every active sell
// counter whose quest accepts the sold item's template.
func (s *Service) IncrementSoldToTraderCounters(ctx context.Context, profileID string, sold []SoldItem) error {
	err := s.profiles.Update(ctx, profileID, func(p *profile.Profile) error {
		s.incrementSoldCounters(p, sold)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment sell counters: %w", err)
	}
	return nil
}

func (s *Service) incrementSoldCounters(p *profile.Profile, sold []SoldItem) {
	for _, counter := range p.TaskConditionCounters {
		if counter.Type != CounterSellItemToTrader {
			continue
		}
		for _, cond := range s.defs.SellToTraderConditions(counter.SourceID) {
			for _, si := range sold {
				tpl, ok := inventoryTemplate(p, si.ItemID)
				if !ok {
					s.logger.Error("sold item missing from inventory",
						zap.String("profile_id", p.ID), zap.String("item_id", si.ItemID))
					continue
				}
				if cond.Target.Contains(tpl) {
					counter.Value += float64(si.Count)
				}
			}
		}
	}
}

func inventoryTemplate(p *profile.Profile, itemID string) (string, bool) {
	for _, it := range p.Inventory.Items {
		if it.ID == itemID {
			return it.Template, true
		}
	}
	return "", false
}

// FindItemConditionByQuestItem returns, for the first of questIDs with a
// FindItem finish condition targeting itemTpl, quest id to condition id.
func (s *Service) FindItemConditionByQuestItem(itemTpl string, questIDs []string) map[string]string {
	out := make(map[string]string)
	for _, id := range questIDs {
		q, ok := s.defs.Get(id)
		if !ok {
			s.logger.Debug("quest not found for FindItem lookup", zap.String("quest_id", id))
			continue
		}
		for _, c := range q.Conditions.AvailableForFinish {
			if c.Kind == KindFindItem && c.Target.Contains(itemTpl) {
				out[id] = c.ID
				return out
			}
		}
	}
	return out
}

// AddAllQuestsToProfile adds every quest missing from p. Each new row gets
// a timer per status and is left in the last one.
func (s *Service) AddAllQuestsToProfile(p *profile.Profile, statuses []profile.QuestState) {
	if len(statuses) == 0 {
		return
	}
	now := s.now().Unix()
	for _, q := range s.defs.All() {
		if _, ok := p.Quest(q.ID); ok {
			continue
		}
		row := newRow(q.ID, statuses[len(statuses)-1], now)
		for _, st := range statuses {
			row.StatusTimers[st] = now
		}
		p.SetQuest(row)
	}
}
