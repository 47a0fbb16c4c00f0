package insurance

import (
	"math"
	"sort"
	"strings"

	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/rng"
	"github.com/kasuganosora/raidsim/server/game/weighted"
	"go.uber.org/zap"
)

const (
	maxRoll          = 9999
	conversionFactor = 100
)

// findItemsToDelete returns the ids of insured items that another player
// took off the body. Regular items are rolled one by one; attachments are
// drawn per main parent, weighted by price.
func (s *Service) findItemsToDelete(rootID, traderID string, items []item.Item) map[string]struct{} {
	toDelete := make(map[string]struct{})
	byID := item.Map(items)
	attachments := s.parentAttachments(rootID, items, byID)

	s.processRegularItems(traderID, items, attachments, toDelete)
	if len(attachments) > 0 {
		attachments = s.removeNonModdable(attachments, byID)
		s.processAttachments(traderID, attachments, toDelete)
	}
	if len(toDelete) > 0 {
		s.logger.Debug("insured items marked for deletion", zap.Int("count", len(toDelete)))
	}
	return toDelete
}

// parentAttachments maps each main parent id to the attachments mounted on
// it, directly or through other attachments.
func (s *Service) parentAttachments(rootID string, items []item.Item, byID map[string]item.Item) map[string][]item.Item {
	out := make(map[string][]item.Item)
	for _, it := range items {
		if _, ok := byID[it.ParentID]; !ok && it.ParentID != rootID {
			s.logger.Warn("insured item parent not found",
				zap.String("item_id", it.ID), zap.String("tpl", it.Template), zap.String("parent_id", it.ParentID))
			continue
		}
		if !item.IsAttachmentAttached(it) {
			continue
		}
		if _, ok := s.catalog.GetItem(it.Template); !ok {
			s.logger.Warn("insured attachment template not found",
				zap.String("item_id", it.ID), zap.String("tpl", it.Template))
			continue
		}
		main, ok := item.MainParent(it.ID, byID)
		if !ok {
			s.logger.Warn("insured attachment main parent not found",
				zap.String("item_id", it.ID), zap.String("parent_id", it.ParentID))
			continue
		}
		out[main.ID] = append(out[main.ID], it)
	}
	return out
}

// removeNonModdable keeps only attachments that can be removed in raid from
// their direct parent.
func (s *Service) removeNonModdable(attachments map[string][]item.Item, byID map[string]item.Item) map[string][]item.Item {
	out := make(map[string][]item.Item, len(attachments))
	for parentID, list := range attachments {
		var moddable []item.Item
		for _, a := range list {
			parent := byID[parentID]
			if direct, ok := byID[a.ParentID]; ok {
				parent = direct
			}
			if ok, _ := item.IsRaidModdable(s.catalog, a, parent); ok {
				moddable = append(moddable, a)
			}
		}
		if len(moddable) > 0 {
			out[parentID] = moddable
		}
	}
	return out
}

func (s *Service) processRegularItems(traderID string, items []item.Item, attachments map[string][]item.Item, toDelete map[string]struct{}) {
	for _, it := range items {
		if item.IsAttachmentAttached(it) {
			continue
		}
		if !s.rollForDelete(traderID, it.Template) {
			continue
		}
		if _, isParent := attachments[it.ID]; isParent {
			for _, child := range item.WithChildren(items, it.ID) {
				toDelete[child.ID] = struct{}{}
			}
			delete(attachments, it.ID)
			continue
		}
		toDelete[it.ID] = struct{}{}
	}
}

func (s *Service) processAttachments(traderID string, attachments map[string][]item.Item, toDelete map[string]struct{}) {
	parents := make([]string, 0, len(attachments))
	for id := range attachments {
		parents = append(parents, id)
	}
	sort.Strings(parents)
	for _, parentID := range parents {
		if _, gone := toDelete[parentID]; gone {
			continue
		}
		for _, id := range s.drawAttachments(traderID, attachments[parentID]) {
			toDelete[id] = struct{}{}
		}
	}
}

// drawAttachments prices the attachments of one parent, decides how many
// are lost and draws that many without replacement, favouring the
// expensive ones.
func (s *Service) drawAttachments(traderID string, list []item.Item) []string {
	prices := make(map[string]float64, len(list))
	for _, a := range list {
		if price, ok := s.catalog.GetItemPrice(a.Template); ok {
			prices[a.ID] = math.Round(price)
		}
	}
	count := s.attachmentCountToRemove(traderID, prices)

	weights := make(map[string]float64, len(prices))
	for id, p := range prices {
		weights[id] = p
	}
	weighted.ReduceWeightValues(weights)
	drawn := weighted.New(weights, s.rng).DrawAndRemove(count)
	for _, id := range drawn {
		s.logger.Debug("insured attachment lost", zap.String("item_id", id), zap.Float64("price", prices[id]))
	}
	return drawn
}

func (s *Service) attachmentCountToRemove(traderID string, prices map[string]float64) int {
	if rng.Chance100(s.rng, s.cfg.ChanceNoAttachmentsTakenPercent) {
		return 0
	}
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	count := 0
	for _, id := range ids {
		if prices[id] < s.cfg.MinAttachmentRoublePriceToBeTaken {
			continue
		}
		if s.rollForDelete(traderID, "") {
			count++
		}
	}
	return count
}

// rollForDelete reports whether an item insured with traderID is lost. The
// roll is an integer in [0, 9999] truncated by 100, so it lands in [0, 99].
// Unknown traders and traders without a configured chance never lose items.
func (s *Service) rollForDelete(traderID, tpl string) bool {
	if !s.data.TraderExists(traderID) {
		return false
	}
	returnChance, ok := s.returnChance(traderID)
	if !ok {
		s.logger.Warn("no insurance return chance configured", zap.String("trader_id", traderID))
		return false
	}
	roll := rng.Int(s.rng, 0, maxRoll) / conversionFactor
	lost := float64(roll) >= returnChance
	s.logger.Debug("insurance roll",
		zap.String("trader_id", traderID), zap.String("tpl", tpl),
		zap.Float64("return_chance", returnChance), zap.Int("roll", roll), zap.Bool("lost", lost))
	return lost
}

// returnChance looks traderID up as written and lower-cased, since viper
// lower-cases map keys read from a file.
func (s *Service) returnChance(traderID string) (float64, bool) {
	if v, ok := s.cfg.ReturnChancePercent[traderID]; ok {
		return v, true
	}
	v, ok := s.cfg.ReturnChancePercent[strings.ToLower(traderID)]
	return v, ok
}
