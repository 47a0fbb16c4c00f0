package quest

import (
	"context"
	"fmt"

	"github.com/kasuganosora/raidsim/server/game/profile"
	"go.uber.org/zap"
)

// GetVisibleQuests lists every quest the player can see, each carrying the
// player's status and only the rewards their game edition receives.
func (s *Service) GetVisibleQuests(ctx context.Context, profileID string) ([]*Quest, error) {
	p, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get visible quests: %w", err)
	}
	return s.visibleQuests(p, s.now().Unix()), nil
}

func (s *Service) visibleQuests(p *profile.Profile, now int64) []*Quest {
	var out []*Quest
	for _, q := range s.defs.All() {
		if row, ok := p.Quest(q.ID); ok {
			c := q.WithEditionRewards(p.Info.GameVersion)
			c.Status = row.Status
			out = append(out, c)
			continue
		}
		state, ok := s.availability(p, q, now)
		if !ok {
			continue
		}
		c := q.WithEditionRewards(p.Info.GameVersion)
		c.Status = state
		out = append(out, c)
	}
	return out
}

// availability decides whether a quest missing from the profile is shown,
// and with which status.
func (s *Service) availability(p *profile.Profile, q *Quest, now int64) (profile.QuestState, bool) {
	if !s.eligible(p, q) {
		return 0, false
	}
	if !s.eval.PlayerLevelFulfils(p.Info.Level, q.Conditions.AvailableForStart) {
		return 0, false
	}
	if _, ok := p.Trader(q.TraderID); !ok {
		s.logger.Debug("quest hidden, trader not in profile",
			zap.String("quest_id", q.ID), zap.String("trader_id", q.TraderID))
		return 0, false
	}

	for _, c := range filterKind(q.Conditions.AvailableForStart, KindQuest) {
		res := s.eval.QuestPrerequisite(p, c, now)
		if !res.Visible() {
			return 0, false
		}
		if res.Remaining > 0 {
			// the wait is enforced by the row CompleteQuest parks, not here
			s.logger.Debug("quest prerequisite still waiting",
				zap.String("quest_id", q.ID), zap.Int64("remaining_seconds", res.Remaining))
		}
	}
	for _, c := range filterKind(q.Conditions.AvailableForStart, KindTraderLoyalty) {
		if !s.eval.TraderLoyaltyCheck(p, c) {
			return 0, false
		}
	}
	for _, c := range filterKind(q.Conditions.AvailableForStart, KindTraderStanding) {
		if !s.eval.TraderStandingCheck(p, c) {
			return 0, false
		}
	}
	return profile.QuestAvailableForStart, true
}

// eligible applies the side, seasonal event and game version filters.
func (s *Service) eligible(p *profile.Profile, q *Quest) bool {
	return !s.QuestIsForOtherSide(p, q.ID) && s.ShowEventQuest(q.ID) && !s.HiddenForGameVersion(p, q.ID)
}

// deltaQuests returns quests in after whose id was not in before.
func deltaQuests(before, after []*Quest) []*Quest {
	seen := make(map[string]struct{}, len(before))
	for _, q := range before {
		seen[q.ID] = struct{}{}
	}
	var out []*Quest
	for _, q := range after {
		if _, ok := seen[q.ID]; !ok {
			out = append(out, q)
		}
	}
	return out
}
