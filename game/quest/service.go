// Package quest adjudicates quest visibility and lifecycle transitions for
// player profiles.
package quest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"go.uber.org/zap"
)

var (
	ErrQuestNotFound     = errors.New("quest: not found")
	ErrQuestNotInProfile = errors.New("quest: not in profile")
)

// AcceptRepeatable is the accept type that bypasses start time gates.
const AcceptRepeatable = "repeatable"

// RewardApplier grants quest rewards and returns the item rewards to mail.
type RewardApplier interface {
	ApplyReward(p *profile.Profile, q *Quest, state profile.QuestState) []item.Item
}

// Mailer delivers messages to a profile.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Result is returned by lifecycle operations.
type Result struct {
	// Quests are quests the player can now see, or that were unlocked.
	Quests []*Quest `json:"quests"`
	// QuestStatuses are the profile rows whose status changed.
	QuestStatuses []profile.QuestStatus `json:"questsStatus"`
	// Items are reward items mailed to the player.
	Items []item.Item `json:"items,omitempty"`
}

// Service handles all quest operations.
type Service struct {
	profiles *profile.Manager
	defs     *Definitions
	eval     *Evaluator
	rewards  RewardApplier
	mailer   Mailer
	cfg      config.QuestConfig
	hooks    *hook.Center
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new quest Service.
func NewService(profiles *profile.Manager, defs *Definitions, rewards RewardApplier, mailer Mailer,
	cfg config.QuestConfig, logger *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		defs:     defs,
		eval:     NewEvaluator(logger),
		rewards:  rewards,
		mailer:   mailer,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// SetHooks makes the service trigger the quest events on hc once a change
// has been saved.
func (s *Service) SetHooks(hc *hook.Center) { s.hooks = hc }

func (s *Service) trigger(ctx context.Context, event, profileID, questID string, status profile.QuestState, res *Result) {
	_, _ = s.hooks.Trigger(ctx, event, hook.QuestEvent{
		ProfileID: profileID,
		QuestID:   questID,
		Status:    status.String(),
		NewQuests: len(res.Quests),
	})
}

// Definitions returns the quest database the service uses.
func (s *Service) Definitions() *Definitions { return s.defs }

// MailRedeemHours returns how long mailed quest items stay claimable for
// gameVersion.
func (s *Service) MailRedeemHours(gameVersion string) int {
	if h, ok := s.cfg.MailRedeemTimeHours[strings.ToLower(gameVersion)]; ok {
		return h
	}
	return s.cfg.MailRedeemTimeHours["default"]
}

// QuestIsForOtherSide reports whether questID is restricted to the side the
// profile does not play.
func (s *Service) QuestIsForOtherSide(p *profile.Profile, questID string) bool {
	if p.IsUsec() {
		return slices.Contains(s.cfg.BearOnlyQuests, questID)
	}
	return slices.Contains(s.cfg.UsecOnlyQuests, questID)
}

// ShowEventQuest reports whether an event quest should be visible. Quests
// tied to no event are always shown.
func (s *Service) ShowEventQuest(questID string) bool {
	for event, ids := range s.cfg.EventQuests {
		if !slices.Contains(ids, questID) {
			continue
		}
		if event == "none" {
			if !s.cfg.ShowNonSeasonalEventQuests {
				return false
			}
			continue
		}
		if !slices.ContainsFunc(s.cfg.ActiveEvents, func(a string) bool { return strings.EqualFold(a, event) }) {
			return false
		}
	}
	return true
}

// HiddenForGameVersion reports whether the profile's game version is barred
// from questID by the black or white list.
func (s *Service) HiddenForGameVersion(p *profile.Profile, questID string) bool {
	version := strings.ToLower(p.Info.GameVersion)
	if slices.Contains(s.cfg.ProfileBlacklist[version], questID) {
		return true
	}
	if allowed, ok := s.cfg.ProfileWhitelist[strings.ToLower(questID)]; ok {
		return !slices.ContainsFunc(allowed, func(v string) bool { return strings.EqualFold(v, version) })
	}
	return false
}

// outbox collects the mail a transition sends. The mail is stored in the
// transaction that saves the profile, so a failed save sends nothing and a
// failed send keeps the old profile.
type outbox []mail.Message

// add queues a quest message. A message with neither text nor items is
// skipped.
func (o *outbox) add(s *Service, p *profile.Profile, q *Quest, kind mail.MessageType, template string, items []item.Item) {
	if strings.TrimSpace(template) == "" && len(items) == 0 {
		return
	}
	*o = append(*o, mail.Message{
		ProfileID:      p.ID,
		TraderID:       q.TraderID,
		Type:           kind,
		TemplateID:     template,
		Items:          items,
		MaxStorageTime: int64(s.MailRedeemHours(p.Info.GameVersion)) * 3600,
	})
}

func (o outbox) commits(mailer Mailer) []profile.Commit {
	out := make([]profile.Commit, 0, len(o))
	for _, msg := range o {
		out = append(out, func(ctx context.Context) error {
			if err := mailer.Send(ctx, msg); err != nil {
				return fmt.Errorf("quest mail %d: %w", msg.Type, err)
			}
			return nil
		})
	}
	return out
}
