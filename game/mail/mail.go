// Package mail delivers trader and system messages, optionally with items,
// to profile mailboxes.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/db"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/metrics"
	"github.com/kasuganosora/raidsim/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageType values are shared with the client and must not change.
type MessageType int

const (
	UserMessage      MessageType = 1
	NPCTrader        MessageType = 2
	SystemMessage    MessageType = 7
	InsuranceReturn  MessageType = 8
	QuestStart       MessageType = 10
	QuestFail        MessageType = 11
	QuestSuccess     MessageType = 12
	MessageWithItems MessageType = 13
)

var (
	ErrMailNotFound   = errors.New("mail: not found")
	ErrAlreadyClaimed = errors.New("mail: already claimed")
	ErrMailExpired    = errors.New("mail: expired")
)

// Message is an outgoing mail.
type Message struct {
	ProfileID  string
	TraderID   string
	Type       MessageType
	TemplateID string
	Items      []item.Item
	// MaxStorageTime is how long the items can be claimed, in seconds.
	// Zero means forever.
	MaxStorageTime int64
	SystemData     any
}

// Notification is published on mail:<profile id> for every delivered mail.
type Notification struct {
	MailID      int64       `json:"mail_id"`
	TraderID    string      `json:"trader_id"`
	MessageType MessageType `json:"message_type"`
	TemplateID  string      `json:"template_id"`
	HasItems    bool        `json:"has_items"`
}

// Channel returns the pub/sub channel for a profile's mail notifications.
func Channel(profileID string) string { return "mail:" + profileID }

func unreadKey(profileID string) string { return "mail:unread:" + profileID }

// Service stores mail and notifies subscribers.
type Service struct {
	db       *gorm.DB
	cache    cache.Cache
	pubsub   cache.PubSub
	profiles *profile.Manager
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new mail Service.
func NewService(conn *gorm.DB, c cache.Cache, ps cache.PubSub, profiles *profile.Manager, logger *zap.Logger) *Service {
	return &Service{db: conn, cache: c, pubsub: ps, profiles: profiles, now: time.Now, logger: logger}
}

// Send stores msg. Notification failures are logged, not returned. Inside a
// db.Transaction the row commits with the transaction and subscribers are
// notified only after it does.
func (s *Service) Send(ctx context.Context, msg Message) error {
	itemsJSON, err := json.Marshal(msg.Items)
	if err != nil {
		return err
	}
	rec := &model.Mail{
		ProfileID:   msg.ProfileID,
		TraderID:    msg.TraderID,
		MessageType: int(msg.Type),
		TemplateID:  msg.TemplateID,
		Items:       datatypes.JSON(itemsJSON),
	}
	if msg.SystemData != nil {
		sd, err := json.Marshal(msg.SystemData)
		if err != nil {
			return err
		}
		rec.SystemData = datatypes.JSON(sd)
	}
	if msg.MaxStorageTime > 0 {
		exp := s.now().Add(time.Duration(msg.MaxStorageTime) * time.Second)
		rec.ExpireAt = &exp
	}
	if err := db.Conn(ctx, s.db).Create(rec).Error; err != nil {
		return fmt.Errorf("mail: store: %w", err)
	}
	db.AfterCommit(ctx, func() { s.notify(ctx, msg, rec) })
	return nil
}

func (s *Service) notify(ctx context.Context, msg Message, rec *model.Mail) {
	metrics.MailSent.WithLabelValues(strconv.Itoa(int(msg.Type))).Inc()

	if _, err := s.cache.Incr(ctx, unreadKey(msg.ProfileID)); err != nil {
		s.logger.Warn("mail unread counter", zap.String("profile_id", msg.ProfileID), zap.Error(err))
	}
	payload, _ := json.Marshal(Notification{
		MailID:      rec.ID,
		TraderID:    rec.TraderID,
		MessageType: msg.Type,
		TemplateID:  rec.TemplateID,
		HasItems:    len(msg.Items) > 0,
	})
	if err := s.pubsub.Publish(ctx, Channel(msg.ProfileID), string(payload)); err != nil {
		s.logger.Warn("mail notify", zap.String("profile_id", msg.ProfileID), zap.Error(err))
	}
	s.logger.Debug("mail sent",
		zap.String("profile_id", msg.ProfileID), zap.String("trader_id", msg.TraderID),
		zap.Int("type", int(msg.Type)), zap.String("template_id", msg.TemplateID),
		zap.Int("items", len(msg.Items)))
}

// List returns the profile's mail that has not expired, newest first, and
// resets the unread counter.
func (s *Service) List(ctx context.Context, profileID string) ([]model.Mail, error) {
	var mails []model.Mail
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND (expire_at IS NULL OR expire_at > ?)", profileID, s.now()).
		Order("id DESC").Find(&mails).Error
	if err != nil {
		return nil, err
	}
	if err := s.cache.Del(ctx, unreadKey(profileID)); err != nil {
		s.logger.Warn("mail unread reset", zap.String("profile_id", profileID), zap.Error(err))
	}
	return mails, nil
}

// Unread returns the number of mails delivered since the last List.
func (s *Service) Unread(ctx context.Context, profileID string) (int64, error) {
	v, err := s.cache.Get(ctx, unreadKey(profileID))
	if err != nil {
		return 0, nil
	}
	var n int64
	_, err = fmt.Sscan(v, &n)
	return n, err
}

// Claim moves a mail's items into the profile stash. A mail can be claimed
// once; the claimed flag is set with a conditional update in the same
// transaction that saves the items into the profile.
func (s *Service) Claim(ctx context.Context, profileID string, mailID int64) ([]item.Item, error) {
	var claimed []item.Item
	err := s.profiles.UpdateCommit(ctx, profileID, func(p *profile.Profile) ([]profile.Commit, error) {
		var rec model.Mail
		err := s.db.WithContext(ctx).Where("id = ? AND profile_id = ?", mailID, profileID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMailNotFound
		}
		if err != nil {
			return nil, err
		}
		if rec.Claimed {
			return nil, ErrAlreadyClaimed
		}
		if rec.ExpireAt != nil && !rec.ExpireAt.After(s.now()) {
			return nil, ErrMailExpired
		}
		var items []item.Item
		if len(rec.Items) > 0 {
			if err := json.Unmarshal(rec.Items, &items); err != nil {
				return nil, fmt.Errorf("mail %d: decode items: %w", mailID, err)
			}
		}

		claimed = placeInStash(items, p.Inventory.Stash)
		p.Inventory.Items = append(p.Inventory.Items, claimed...)
		return []profile.Commit{func(ctx context.Context) error {
			res := db.Conn(ctx, s.db).Model(&model.Mail{}).
				Where("id = ? AND claimed = ?", mailID, false).Update("claimed", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrAlreadyClaimed
			}
			return nil
		}}, nil
	})
	if err != nil {
		claimed = nil
	}
	return claimed, err
}

// placeInStash re-parents every root of the item trees onto the stash.
func placeInStash(items []item.Item, stash string) []item.Item {
	out := item.Clone(items)
	ids := make(map[string]struct{}, len(out))
	for _, it := range out {
		ids[it.ID] = struct{}{}
	}
	for i := range out {
		if _, ok := ids[out[i].ParentID]; !ok {
			out[i].ParentID = stash
			out[i].SlotID = "hideout"
		}
	}
	return out
}
