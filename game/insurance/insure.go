package insurance

import (
	"context"
	"math"
	"sort"

	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/rng"
	"go.uber.org/zap"
)

// Insure marks inventory items as insured with traderID, along with the soft
// armor inserts mounted on them. Already insured items are skipped. The
// player earns Charisma for every 200000 roubles of insured value.
func (s *Service) Insure(ctx context.Context, profileID, traderID string, itemIDs []string) error {
	offer, ok := s.data.TraderInsurance(traderID)
	if !ok || !offer.Availability {
		return ErrTraderNotInsuring
	}
	return s.profiles.Update(ctx, profileID, func(p *profile.Profile) error {
		inv := item.Map(p.Inventory.Items)
		for _, id := range itemIDs {
			if _, ok := inv[id]; !ok {
				return ErrItemNotFound
			}
		}

		total := 0.0
		for _, id := range itemIDs {
			it := inv[id]
			if p.IsInsured(id) {
				continue
			}
			total += s.insurePrice(it.Template, offer.PriceCoef)
			p.InsuredItems = append(p.InsuredItems, profile.InsuredItem{TraderID: traderID, ItemID: id})

			for _, child := range p.Inventory.Items {
				if child.ParentID != id || !item.IsSoftInsertSlot(child.SlotID) || p.IsInsured(child.ID) {
					continue
				}
				p.InsuredItems = append(p.InsuredItems, profile.InsuredItem{TraderID: traderID, ItemID: child.ID})
			}
		}

		points := total * charismaPointsPerRouble
		s.logger.Debug("items insured",
			zap.String("profile_id", p.ID), zap.String("trader_id", traderID),
			zap.Float64("value", total), zap.Float64("charisma_points", points))
		if points > 0 && s.skills != nil {
			s.skills.AddSkillPoints(p, charismaSkill, points, true)
		}
		return nil
	})
}

// Cost returns, per trader, the price to insure each requested item keyed by
// item template. Items missing from the inventory are skipped.
func (s *Service) Cost(ctx context.Context, profileID string, traderIDs, itemIDs []string) (map[string]map[string]float64, error) {
	p, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	inv := item.Map(p.Inventory.Items)
	out := make(map[string]map[string]float64, len(traderIDs))
	for _, traderID := range traderIDs {
		offer, ok := s.data.TraderInsurance(traderID)
		if !ok {
			s.logger.Debug("insurance cost for unknown trader", zap.String("trader_id", traderID))
			continue
		}
		prices := make(map[string]float64, len(itemIDs))
		for _, id := range itemIDs {
			it, ok := inv[id]
			if !ok {
				s.logger.Debug("insurance cost: item missing from inventory", zap.String("item_id", id))
				continue
			}
			if _, dup := prices[it.Template]; dup {
				continue
			}
			prices[it.Template] = s.insurePrice(it.Template, offer.PriceCoef)
		}
		out[traderID] = prices
	}
	return out, nil
}

func (s *Service) insurePrice(tpl string, coef float64) float64 {
	price, ok := s.catalog.GetItemPrice(tpl)
	if !ok {
		return 0
	}
	if coef <= 0 {
		coef = 1
	}
	return math.Round(price * coef)
}

// Schedule turns insured items lost in a raid on location into one package
// per insuring trader, due back after a random number of hours inside the
// trader's return window. Lost items that were not insured are dropped, and
// the insured entries of packaged items are cleared.
func (s *Service) Schedule(ctx context.Context, profileID, location string, lost []item.Item) (int, error) {
	created := 0
	err := s.profiles.Update(ctx, profileID, func(p *profile.Profile) error {
		insurer := make(map[string]string, len(p.InsuredItems))
		for _, ins := range p.InsuredItems {
			insurer[ins.ItemID] = ins.TraderID
		}
		byTrader := make(map[string][]item.Item)
		for _, it := range lost {
			if tid, ok := insurer[it.ID]; ok {
				byTrader[tid] = append(byTrader[tid], it)
			}
		}
		if len(byTrader) == 0 {
			return nil
		}

		traders := make([]string, 0, len(byTrader))
		for tid := range byTrader {
			traders = append(traders, tid)
		}
		sort.Strings(traders)

		now := s.now()
		for _, tid := range traders {
			offer, _ := s.data.TraderInsurance(tid)
			minH, maxH := offer.MinReturnHours, offer.MaxReturnHours
			if maxH <= 0 {
				minH, maxH = defaultReturnWindowHours, defaultReturnWindowHours
			}
			storage := int64(offer.MaxStorageTime) * 3600
			if storage <= 0 {
				storage = int64(s.cfg.StorageTime.Seconds())
			}
			p.InsuranceList = append(p.InsuranceList, profile.InsurancePackage{
				TraderID:          tid,
				ScheduledTime:     now.Unix() + int64(rng.Int(s.rng, minH, maxH))*3600,
				MaxStorageTime:    storage,
				MessageType:       int(mail.InsuranceReturn),
				MessageTemplateID: rng.Pick(s.rng, s.data.TraderDialogue(tid, DialogueFound)),
				SystemData: profile.InsuranceSystemData{
					Date:     now.Format("01.02.2006"),
					Time:     now.Format("15:04"),
					Location: location,
				},
				Items: item.Clone(byTrader[tid]),
			})
			created++
		}

		kept := p.InsuredItems[:0]
		for _, ins := range p.InsuredItems {
			if _, packaged := byTrader[ins.TraderID]; packaged && containsID(byTrader[ins.TraderID], ins.ItemID) {
				continue
			}
			kept = append(kept, ins)
		}
		p.InsuredItems = kept
		s.logger.Info("insurance packages scheduled",
			zap.String("profile_id", p.ID), zap.String("location", location), zap.Int("packages", created))
		return nil
	})
	return created, err
}

func containsID(items []item.Item, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
