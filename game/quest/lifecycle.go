package quest

import (
	"context"
	"fmt"
	"strings"

	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/metrics"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"go.uber.org/zap"
)

func (s *Service) quest(questID string) (*Quest, error) {
	q, ok := s.defs.Get(questID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestNotFound, questID)
	}
	return q, nil
}

// AcceptQuest starts a quest. A quest new to the profile with a delayed
// start condition is parked as AvailableAfter instead, unless acceptType is
// AcceptRepeatable.
func (s *Service) AcceptQuest(ctx context.Context, profileID, questID, acceptType string) (*Result, error) {
	q, err := s.quest(questID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var status profile.QuestState
	err = s.profiles.UpdateCommit(ctx, profileID, func(p *profile.Profile) ([]profile.Commit, error) {
		now := s.now().Unix()
		before := snapshotStatuses(p)
		var mails outbox

		var row profile.QuestStatus
		if existing, ok := p.Quest(questID); ok {
			row = startedRow(*existing, now)
		} else if wait := startDelay(q); wait > 0 && acceptType != AcceptRepeatable {
			row = pendingRow(questID, now, wait)
		} else {
			row = newRow(questID, profile.QuestStarted, now)
		}
		p.SetQuest(row)
		status = row.Status
		metrics.QuestTransitions.WithLabelValues(row.Status.String()).Inc()

		if row.Status == profile.QuestStarted {
			res.Items = s.rewards.ApplyReward(p, q, profile.QuestStarted)
			mails.add(s, p, q, mail.QuestStart, startMessage(q), res.Items)
			res.Quests = s.newlyAccessible(p, questID)
		}
		res.QuestStatuses = changedStatuses(before, p)
		return mails.commits(s.mailer), nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept quest %s: %w", questID, err)
	}
	s.logger.Info("quest accepted", zap.String("profile_id", profileID), zap.String("quest_id", questID))
	s.trigger(ctx, hook.QuestAccepted, profileID, questID, status, res)
	return res, nil
}

// CompleteQuest marks a quest successful, grants its rewards, fails the
// quests its completion excludes and reports what became visible.
func (s *Service) CompleteQuest(ctx context.Context, profileID, questID string) (*Result, error) {
	q, err := s.quest(questID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = s.profiles.UpdateCommit(ctx, profileID, func(p *profile.Profile) ([]profile.Commit, error) {
		row, ok := p.Quest(questID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrQuestNotInProfile, questID)
		}
		now := s.now().Unix()
		before := snapshotStatuses(p)
		var mails outbox
		visibleBefore := s.visibleQuests(p, now)

		p.SetQuest(withStatus(*row, profile.QuestSuccess, now))
		metrics.QuestTransitions.WithLabelValues(profile.QuestSuccess.String()).Inc()
		items := s.rewards.ApplyReward(p, q, profile.QuestSuccess)
		res.Items = append(res.Items, items...)

		for _, other := range s.questsFailedBy(p, questID) {
			unlocked, failItems := s.failByCompletion(&mails, p, other, now)
			res.Quests = append(res.Quests, unlocked...)
			res.Items = append(res.Items, failItems...)
		}

		if strings.TrimSpace(q.SuccessMessageText) != "" {
			mails.add(s, p, q, mail.QuestSuccess, q.SuccessMessageText, items)
		}

		delta := deltaQuests(visibleBefore, s.visibleQuests(p, now))
		s.addTimeLocked(p, delta, questID, now)
		res.Quests = append(res.Quests, delta...)
		res.QuestStatuses = changedStatuses(before, p)
		return mails.commits(s.mailer), nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete quest %s: %w", questID, err)
	}
	s.logger.Info("quest completed", zap.String("profile_id", profileID), zap.String("quest_id", questID),
		zap.Int("new_quests", len(res.Quests)), zap.Int("reward_items", len(res.Items)))
	s.trigger(ctx, hook.QuestCompleted, profileID, questID, profile.QuestSuccess, res)
	return res, nil
}

// FailQuest marks a quest failed and returns the quests the failure unlocks.
func (s *Service) FailQuest(ctx context.Context, profileID, questID string) (*Result, error) {
	q, err := s.quest(questID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = s.profiles.UpdateCommit(ctx, profileID, func(p *profile.Profile) ([]profile.Commit, error) {
		if _, ok := p.Quest(questID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrQuestNotInProfile, questID)
		}
		before := snapshotStatuses(p)
		var mails outbox
		res.Quests, res.Items = s.failInProfile(&mails, p, q, s.now().Unix())
		res.QuestStatuses = changedStatuses(before, p)
		return mails.commits(s.mailer), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail quest %s: %w", questID, err)
	}
	s.logger.Info("quest failed", zap.String("profile_id", profileID), zap.String("quest_id", questID))
	s.trigger(ctx, hook.QuestFailed, profileID, questID, profile.QuestFail, res)
	return res, nil
}

// ResetQuestState forces a quest row back to state for repair tooling. The
// profile is backed up first.
func (s *Service) ResetQuestState(ctx context.Context, profileID, questID string, state profile.QuestState) error {
	err := s.profiles.Update(ctx, profileID, func(p *profile.Profile) error {
		row, ok := p.Quest(questID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrQuestNotInProfile, questID)
		}
		if err := s.profiles.Backup(ctx, p, "reset quest "+questID); err != nil {
			return err
		}
		p.SetQuest(resetRow(*row, state, s.now().Unix()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset quest %s: %w", questID, err)
	}
	s.logger.Warn("quest state reset", zap.String("profile_id", profileID),
		zap.String("quest_id", questID), zap.Stringer("state", state))
	return nil
}

// failInProfile moves an existing row to Fail, grants fail rewards and
// queues the fail mail. It never cascades.
func (s *Service) failInProfile(mails *outbox, p *profile.Profile, q *Quest, now int64) ([]*Quest, []item.Item) {
	row, _ := p.Quest(q.ID)
	p.SetQuest(withStatus(*row, profile.QuestFail, now))
	metrics.QuestTransitions.WithLabelValues(profile.QuestFail.String()).Inc()

	items := s.rewards.ApplyReward(p, q, profile.QuestFail)
	if !q.Repeatable && strings.TrimSpace(q.FailMessageText) != "" {
		mails.add(s, p, q, mail.QuestFail, q.FailMessageText, items)
	}
	return s.failedUnlocked(p, q.ID), items
}

// failByCompletion fails a quest excluded by another quest's success.
// Quests whose fail conditions wait on anything but Success are left alone.
func (s *Service) failByCompletion(mails *outbox, p *profile.Profile, q *Quest, now int64) ([]*Quest, []item.Item) {
	for _, c := range q.Conditions.Fail {
		for _, st := range c.Status {
			if st != profile.QuestSuccess {
				return nil, nil
			}
		}
	}
	row, ok := p.Quest(q.ID)
	if !ok {
		p.SetQuest(failedRow(q.ID, now))
		metrics.QuestTransitions.WithLabelValues(profile.QuestFail.String()).Inc()
		return nil, nil
	}
	if row.Status == profile.QuestFail {
		return nil, nil
	}
	return s.failInProfile(mails, p, q, now)
}

// questsFailedBy returns quests with a fail condition targeting completedID
// that the profile has not already failed.
func (s *Service) questsFailedBy(p *profile.Profile, completedID string) []*Quest {
	var out []*Quest
	for _, q := range s.defs.All() {
		if row, ok := p.Quest(q.ID); ok && row.Status == profile.QuestFail {
			continue
		}
		for _, c := range q.Conditions.Fail {
			if c.Target.Contains(completedID) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// failedUnlocked returns quests whose start condition needs failedID to be
// failed, provided it is.
func (s *Service) failedUnlocked(p *profile.Profile, failedID string) []*Quest {
	row, ok := p.Quest(failedID)
	if !ok || row.Status != profile.QuestFail {
		return nil
	}
	var out []*Quest
	for _, q := range s.defs.All() {
		for _, c := range filterKind(q.Conditions.AvailableForStart, KindQuest) {
			if c.Target.Contains(failedID) && len(c.Status) > 0 && c.Status[0] == profile.QuestFail {
				if s.eligible(p, q) {
					out = append(out, q.WithLevelConditionsOnly().WithEditionRewards(p.Info.GameVersion))
				}
				break
			}
		}
	}
	return out
}

// newlyAccessible returns quests that starting startedID makes visible,
// stripped to their level conditions.
func (s *Service) newlyAccessible(p *profile.Profile, startedID string) []*Quest {
	started, ok := p.Quest(startedID)
	if !ok || (started.Status != profile.QuestStarted && started.Status != profile.QuestAvailableForFinish) {
		return nil
	}
	var out []*Quest
	for _, q := range s.defs.All() {
		if _, ok := p.Quest(q.ID); ok {
			continue
		}
		if !s.requiresStarted(q, startedID) {
			continue
		}
		if !s.eval.PlayerLevelFulfils(p.Info.Level, q.Conditions.AvailableForStart) || !s.eligible(p, q) {
			continue
		}
		if !s.traderGatesPass(p, q) {
			continue
		}
		c := q.WithLevelConditionsOnly().WithEditionRewards(p.Info.GameVersion)
		c.Status = profile.QuestAvailableForStart
		out = append(out, c)
	}
	return out
}

func (s *Service) requiresStarted(q *Quest, questID string) bool {
	for _, c := range filterKind(q.Conditions.AvailableForStart, KindQuest) {
		if c.Target.Contains(questID) && c.HasStatus(profile.QuestStarted) {
			return true
		}
	}
	return false
}

func (s *Service) traderGatesPass(p *profile.Profile, q *Quest) bool {
	for _, c := range filterKind(q.Conditions.AvailableForStart, KindTraderStanding) {
		if !s.eval.TraderStandingCheck(p, c) {
			return false
		}
	}
	for _, c := range filterKind(q.Conditions.AvailableForStart, KindTraderLoyalty) {
		if !s.eval.TraderLoyaltyCheck(p, c) {
			return false
		}
	}
	return true
}

// addTimeLocked parks quests gated on completedID behind their delay.
func (s *Service) addTimeLocked(p *profile.Profile, quests []*Quest, completedID string, now int64) {
	for _, q := range quests {
		var wait int64
		for _, c := range q.Conditions.AvailableForStart {
			if c.Target.Contains(completedID) && c.AvailableAfter > 0 {
				wait = c.AvailableAfter
				break
			}
		}
		if wait == 0 {
			continue
		}
		p.SetQuest(pendingRow(q.ID, now, wait))
		q.Status = profile.QuestAvailableAfter
	}
}

// startDelay returns the first positive AvailableAfter among the quest's
// start conditions.
func startDelay(q *Quest) int64 {
	for _, c := range q.Conditions.AvailableForStart {
		if c.AvailableAfter > 0 {
			return c.AvailableAfter
		}
	}
	return 0
}

// startMessage picks the start mail text, falling back to the description
// when the started text is blank or a placeholder.
func startMessage(q *Quest) string {
	text := strings.TrimSpace(q.StartedMessageText)
	if text == "" || strings.EqualFold(text, "test") {
		return q.Description
	}
	return q.StartedMessageText
}
